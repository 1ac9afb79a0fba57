// Package repository реализует хранилище конфигурационных данных на основе
// PostgreSQL: рассылки, подписчики, клиенты API и записи об отказавших
// задачах. Состояние пользователя на стороне ESP здесь не хранится.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB

	// onNewsletterChange вызывается синхронно после каждой зафиксированной
	// записи в таблицу рассылок. Используется реестром для сброса кеша.
	onNewsletterChange func()
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "repository.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// OnNewsletterChange регистрирует обработчик изменения рассылок.
func (s *Storage) OnNewsletterChange(fn func()) {
	s.onNewsletterChange = fn
}

func (s *Storage) notifyNewsletterChange() {
	if s.onNewsletterChange != nil {
		s.onNewsletterChange()
	}
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'newsletters'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table newsletters missing or query error: %w", err)
	}
	return nil
}
