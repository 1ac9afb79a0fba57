package models

import (
	"encoding/json"
	"time"
)

// FailedTask хранит асинхронную задачу, исчерпавшую попытки выполнения
// или завершившуюся фатальной ошибкой. Запись создаётся воркером и
// удаляется только после успешного повторного запуска оператором.
type FailedTask struct {
	ID     int
	When   time.Time       // Момент фиксации отказа
	TaskID string          // Уникальный идентификатор задачи
	Name   string          // Имя задачи
	Args   json.RawMessage // Аргументы задачи в JSON
	Exc    string          // Текст ошибки
}
