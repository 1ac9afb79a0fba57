package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

// GetSubscriberByEmail возвращает подписчика по email или nil, если его нет.
func (s *Storage) GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	const op = "repository.GetSubscriberByEmail"
	var sub models.Subscriber
	err := s.DB.QueryRowContext(ctx,
		`SELECT email, token, account_id FROM subscribers WHERE email = $1`, email,
	).Scan(&sub.Email, &sub.Token, &sub.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// GetSubscriberByToken возвращает подписчика по токену или nil, если его нет.
func (s *Storage) GetSubscriberByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	const op = "repository.GetSubscriberByToken"
	var sub models.Subscriber
	err := s.DB.QueryRowContext(ctx,
		`SELECT email, token, account_id FROM subscribers WHERE token = $1`, token,
	).Scan(&sub.Email, &sub.Token, &sub.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// GetOrCreateSubscriber возвращает подписчика по email, создавая запись
// с новым токеном, если её ещё нет. Второе значение — признак создания.
func (s *Storage) GetOrCreateSubscriber(ctx context.Context, email string) (*models.Subscriber, bool, error) {
	const op = "repository.GetOrCreateSubscriber"
	sub, err := s.GetSubscriberByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if sub != nil {
		return sub, false, nil
	}

	created := &models.Subscriber{Email: email, Token: uuid.NewString()}
	// ON CONFLICT защищает от гонки двух одновременных запросов на один email.
	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO subscribers (email, token, account_id)
		VALUES ($1, $2, '')
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING email, token, account_id`,
		email, created.Token,
	).Scan(&created.Email, &created.Token, &created.AccountID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return created, true, nil
}

// SyncSubscriber приводит локальную запись подписчика к данным ESP:
// создаёт её при отсутствии, иначе обновляет токен и идентификатор
// внешней учётной записи.
func (s *Storage) SyncSubscriber(ctx context.Context, email, token, accountID string) (*models.Subscriber, error) {
	const op = "repository.SyncSubscriber"
	sub := &models.Subscriber{Email: email, Token: token, AccountID: accountID}
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO subscribers (email, token, account_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET token = EXCLUDED.token,
		    account_id = CASE WHEN EXCLUDED.account_id <> '' THEN EXCLUDED.account_id
		                      ELSE subscribers.account_id END
		RETURNING email, token, account_id`,
		email, token, accountID,
	).Scan(&sub.Email, &sub.Token, &sub.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// IsValidAPIKey проверяет, что api-ключ существует и включён.
func (s *Storage) IsValidAPIKey(ctx context.Context, apiKey string) (bool, error) {
	const op = "repository.IsValidAPIKey"
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM api_users WHERE api_key = $1 AND enabled)`, apiKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
