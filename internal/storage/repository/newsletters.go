package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

const newsletterColumns = `id, slug, title, description, show_in_lists, active,
	welcome, vendor_id, languages, requires_double_optin, display_order, confirm_message`

func scanNewsletter(row interface{ Scan(dest ...any) error }) (*models.Newsletter, error) {
	var n models.Newsletter
	err := row.Scan(&n.ID, &n.Slug, &n.Title, &n.Description, &n.Show, &n.Active,
		&n.Welcome, &n.VendorID, &n.Languages, &n.RequiresDoubleOptin, &n.Order, &n.ConfirmMessage)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNewsletters возвращает все рассылки в порядке отображения.
func (s *Storage) ListNewsletters(ctx context.Context) ([]*models.Newsletter, error) {
	const op = "repository.ListNewsletters"
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters ORDER BY display_order, slug`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetNewsletter возвращает рассылку по слагу или nil, если её нет.
func (s *Storage) GetNewsletter(ctx context.Context, slug string) (*models.Newsletter, error) {
	const op = "repository.GetNewsletter"
	n, err := scanNewsletter(s.DB.QueryRowContext(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CreateNewsletter добавляет рассылку и уведомляет подписчиков изменения.
func (s *Storage) CreateNewsletter(ctx context.Context, n models.Newsletter) (int, error) {
	const op = "repository.CreateNewsletter"
	n.Normalize()
	var id int
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO newsletters (slug, title, description, show_in_lists, active,
			welcome, vendor_id, languages, requires_double_optin, display_order, confirm_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		n.Slug, n.Title, n.Description, n.Show, n.Active,
		n.Welcome, n.VendorID, n.Languages, n.RequiresDoubleOptin, n.Order, n.ConfirmMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.notifyNewsletterChange()
	return id, nil
}

// UpdateNewsletter обновляет рассылку по слагу и возвращает число затронутых строк.
func (s *Storage) UpdateNewsletter(ctx context.Context, n models.Newsletter) (int, error) {
	const op = "repository.UpdateNewsletter"
	n.Normalize()
	res, err := s.DB.ExecContext(ctx, `
		UPDATE newsletters SET title = $2, description = $3, show_in_lists = $4,
			active = $5, welcome = $6, vendor_id = $7, languages = $8,
			requires_double_optin = $9, display_order = $10, confirm_message = $11
		WHERE slug = $1`,
		n.Slug, n.Title, n.Description, n.Show, n.Active,
		n.Welcome, n.VendorID, n.Languages, n.RequiresDoubleOptin, n.Order, n.ConfirmMessage)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.notifyNewsletterChange()
	return int(count), nil
}

// DeleteNewsletter удаляет рассылку по слагу.
func (s *Storage) DeleteNewsletter(ctx context.Context, slug string) (int, error) {
	const op = "repository.DeleteNewsletter"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM newsletters WHERE slug = $1`, slug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.notifyNewsletterChange()
	return int(count), nil
}
