package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

// LookupUser возвращает текущее состояние пользователя на стороне ESP.
// Запись сначала ищется в основной таблице (найдена — пользователь
// подтверждён), затем в таблице ожидающих подтверждения. Если записи нет
// нигде, возвращается nil — для вызывающего это новый пользователь.
// Состояние не кешируется: оно живёт не дольше одного запроса.
func (e *Engine) LookupUser(ctx context.Context, email, token string) (*models.UserData, error) {
	const op = "reconcile.LookupUser"

	key := token
	byToken := true
	if key == "" {
		key = email
		byToken = false
	}

	fields := []string{FieldEmail, FieldFormat, FieldCountry, FieldLang, FieldToken}
	slugs, err := e.registry.Slugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fieldBySlug := make(map[string]string, len(slugs))
	for _, slug := range slugs {
		name, err := e.registry.VendorFieldName(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if name == "" {
			continue
		}
		fieldBySlug[slug] = name
		fields = append(fields, name+flagSuffix)
	}

	record, err := e.gateway.FetchRecord(ctx, e.vendorCfg.MasterTable, key, byToken, fields)
	if err == nil {
		return e.buildUserData(record, slugs, fieldBySlug, true), nil
	}
	if !errors.Is(err, vendor.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	record, err = e.gateway.FetchRecord(ctx, e.vendorCfg.OptinTable, key, byToken, fields)
	if err == nil {
		return e.buildUserData(record, slugs, fieldBySlug, false), nil
	}
	if !errors.Is(err, vendor.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return nil, nil
}

func (e *Engine) buildUserData(record map[string]string, slugs []string,
	fieldBySlug map[string]string, master bool) *models.UserData {
	user := &models.UserData{
		Email:     record[FieldEmail],
		Token:     record[FieldToken],
		Country:   record[FieldCountry],
		Lang:      record[FieldLang],
		Format:    record[FieldFormat],
		Master:    master,
		Confirmed: master,
		Pending:   !master,
	}
	if user.Format == "" {
		user.Format = models.FormatHTML
	}

	// Newsletters всегда не nil для найденной записи: пустой список
	// означает «подписок нет», а не «состояние неизвестно».
	user.Newsletters = []string{}
	for _, slug := range slugs {
		name, ok := fieldBySlug[slug]
		if !ok {
			continue
		}
		if record[name+flagSuffix] == "Y" {
			user.Newsletters = append(user.Newsletters, slug)
		}
	}
	return user
}
