// Package tasks реализует контракт выполнения асинхронных задач:
// политику повторов, диспетчер по имени задачи, фиксацию окончательных
// отказов и повторный запуск записанных отказов оператором.
package tasks

import (
	"errors"
	"fmt"
)

// terminalError помечает ошибку, при которой повторять задачу бессмысленно:
// плохие параметры, неизвестный идентификатор сообщения, отсутствие
// получателей. Всё остальное считается временным сбоем.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal помечает ошибку как фатальную для задачи.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// Terminalf создаёт фатальную ошибку из форматной строки.
func Terminalf(format string, args ...any) error {
	return &terminalError{err: fmt.Errorf(format, args...)}
}

// IsTerminal сообщает, помечена ли ошибка как фатальная.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
