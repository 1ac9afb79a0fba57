package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

// CreateFailedTask сохраняет запись об окончательно отказавшей задаче.
func (s *Storage) CreateFailedTask(ctx context.Context, task models.FailedTask) (int, error) {
	const op = "repository.CreateFailedTask"
	var id int
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO failed_tasks (occurred_at, task_id, name, args, exc)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		task.When, task.TaskID, task.Name, string(task.Args), task.Exc,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetFailedTask возвращает запись по идентификатору или nil, если её нет.
func (s *Storage) GetFailedTask(ctx context.Context, id int) (*models.FailedTask, error) {
	const op = "repository.GetFailedTask"
	var task models.FailedTask
	var args string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, occurred_at, task_id, name, args, exc FROM failed_tasks WHERE id = $1`, id,
	).Scan(&task.ID, &task.When, &task.TaskID, &task.Name, &args, &task.Exc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	task.Args = json.RawMessage(args)
	return &task, nil
}

// ListFailedTasks возвращает записи об отказах, новые первыми.
func (s *Storage) ListFailedTasks(ctx context.Context, limit, offset int) ([]*models.FailedTask, error) {
	const op = "repository.ListFailedTasks"
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, occurred_at, task_id, name, args, exc
		FROM failed_tasks ORDER BY occurred_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.FailedTask
	for rows.Next() {
		var task models.FailedTask
		var args string
		if err := rows.Scan(&task.ID, &task.When, &task.TaskID, &task.Name, &args, &task.Exc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		task.Args = json.RawMessage(args)
		result = append(result, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteFailedTask удаляет запись после успешного повторного запуска.
func (s *Storage) DeleteFailedTask(ctx context.Context, id int) (int, error) {
	const op = "repository.DeleteFailedTask"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM failed_tasks WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(count), nil
}
