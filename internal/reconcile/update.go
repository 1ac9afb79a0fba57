package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

// Outcome — результат сверки UpdateUser. Значения различают, по какой
// ветке таблицы решений прошёл пользователь; ими пользуются тесты и логи.
type Outcome int

const (
	// OutcomeUnknown — сверка не завершилась.
	OutcomeUnknown Outcome = iota
	// OutcomeAlreadyConfirmed — пользователь уже подтверждён, изменения
	// применены к таблице, где лежит его запись.
	OutcomeAlreadyConfirmed
	// OutcomeExemptPending — пользователь ждал подтверждения, но получил
	// освобождение: запись обновлена и пользователь подтверждён.
	OutcomeExemptPending
	// OutcomeExemptNew — новый пользователь с освобождением от
	// подтверждения: запись создана сразу в основной таблице.
	OutcomeExemptNew
	// OutcomeMustConfirmPending — пользователь всё ещё ждёт подтверждения,
	// уведомление отправлено повторно.
	OutcomeMustConfirmPending
	// OutcomeMustConfirmNew — создана запись в таблице ожидающих,
	// отправлено уведомление о подтверждении.
	OutcomeMustConfirmNew
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyConfirmed:
		return "already_confirmed"
	case OutcomeExemptPending:
		return "exempt_pending"
	case OutcomeExemptNew:
		return "exempt_new"
	case OutcomeMustConfirmPending:
		return "must_confirm_pending"
	case OutcomeMustConfirmNew:
		return "must_confirm_new"
	}
	return "unknown"
}

// UpdateUser сверяет запрошенное действие с текущим состоянием пользователя
// в ESP и применяет вычисленные изменения: обновляет запись в нужной
// таблице, при необходимости проводит пользователя через double opt-in
// и запускает приветственные или подтверждающие письма.
func (e *Engine) UpdateUser(ctx context.Context, req models.UpdateRequest) (Outcome, error) {
	const op = "reconcile.UpdateUser"
	log := e.log.With(slog.String("op", op), slog.String("token", req.Token))

	rec := &vendor.Record{}
	rec.Set(FieldEmail, req.Email)
	rec.Set(FieldToken, req.Token)
	rec.Set(FieldPermissionStatus, "I")
	rec.Set(FieldModifiedDate, gmtTime())
	if req.Country != "" {
		rec.Set(FieldCountry, req.Country)
	}
	if req.SourceURL != "" {
		rec.Set(FieldSourceURL, req.SourceURL)
	}
	lang := req.Lang
	if lang != "" {
		rec.Set(FieldLang, lang)
	}

	user, err := e.LookupUser(ctx, req.Email, req.Token)
	if err != nil {
		// Ошибка связи с ESP — отдаём наверх, обёртка повторит позже.
		return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		// Записи в ESP ещё нет, это обычный случай для новых подписчиков.
		user = &models.UserData{
			Email: req.Email,
			Token: req.Token,
			Lang:  lang,
		}
	}

	if lang != "" {
		// Пользователь попросил сменить язык, дальше работаем с новым.
		user.Lang = lang
	} else {
		lang = user.Lang
	}

	var format string
	switch {
	case req.Format != "":
		format = models.FormatHTML
		if strings.HasPrefix(strings.ToUpper(req.Format), "T") {
			format = models.FormatText
		}
		// Формат пишем в ESP только когда он явно указан в запросе.
		rec.Set(FieldFormat, format)
	case user.Format != "":
		format = user.Format
	default:
		format = models.FormatHTML
	}

	toSubscribe, _, err := e.Diff(ctx, rec, req.Action, req.Newsletters, user.CurrentSet())
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
	}

	exempt, err := e.exemptFromConfirmation(ctx, req.Optin, toSubscribe)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
	}

	shouldSendWelcomes := req.TriggerWelcome && req.Action == models.ActionSubscribe &&
		len(toSubscribe) > 0

	master := e.vendorCfg.MasterTable
	optin := e.vendorCfg.OptinTable

	switch {
	case user.Confirmed:
		// Пользователь уже подтверждён: просто применяем изменения к той
		// таблице, где лежит его запись, и шлём приветствия.
		target := optin
		if user.Master {
			target = master
		}
		if err := e.applyUpdates(ctx, target, rec); err != nil {
			return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
		}
		if shouldSendWelcomes {
			if err := e.SendWelcomes(ctx, user, toSubscribe, format); err != nil {
				return OutcomeAlreadyConfirmed, fmt.Errorf("%s: %w", op, err)
			}
		}
		return OutcomeAlreadyConfirmed, nil

	case exempt:
		if user.Pending {
			// Мы ждали подтверждения, но оно больше не требуется: обновляем
			// запись в таблице ожидающих и подтверждаем пользователя.
			// Подтверждение само отправит приветствия.
			if err := e.applyUpdates(ctx, optin, rec); err != nil {
				return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
			}
			if err := e.ConfirmUser(ctx, user.Token, user); err != nil {
				return OutcomeExemptPending, fmt.Errorf("%s: %w", op, err)
			}
			return OutcomeExemptPending, nil
		}
		// Совсем новый пользователь: создаём запись сразу в основной таблице.
		rec.Set(FieldCreatedDate, gmtTime())
		if err := e.applyUpdates(ctx, master, rec); err != nil {
			return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
		}
		if shouldSendWelcomes {
			if err := e.SendWelcomes(ctx, user, toSubscribe, format); err != nil {
				return OutcomeExemptNew, fmt.Errorf("%s: %w", op, err)
			}
		}
		return OutcomeExemptNew, nil
	}

	// Пользователь должен подтвердить подписку.
	outcome := OutcomeMustConfirmPending
	if !user.Pending {
		// Новая запись: ESP требует дату создания и идентификационные поля.
		rec.Set(FieldCreatedDate, gmtTime())
		rec.Set(FieldSubscriberKey, req.Token)
		rec.Set(FieldEmailAddress, req.Email)
		outcome = OutcomeMustConfirmNew
	}
	if err := e.applyUpdates(ctx, optin, rec); err != nil {
		return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
	}
	if len(toSubscribe) > 0 {
		log.Info("sending confirmation notice", slog.String("outcome", outcome.String()))
		if err := e.SendConfirmNotice(ctx, req.Email, req.Token, lang, format, toSubscribe); err != nil {
			return outcome, fmt.Errorf("%s: %w", op, err)
		}
	}
	return outcome, nil
}

// exemptFromConfirmation решает, освобождён ли пользователь от double
// opt-in: либо это явно запрошено, либо хотя бы одна из добавляемых
// рассылок не требует подтверждения.
func (e *Engine) exemptFromConfirmation(ctx context.Context, optin bool, toSubscribe []string) (bool, error) {
	if optin {
		return true, nil
	}
	for _, slug := range toSubscribe {
		n, ok, err := e.registry.Resolve(ctx, slug)
		if err != nil {
			return false, err
		}
		if ok && !n.RequiresDoubleOptin {
			return true, nil
		}
	}
	return false, nil
}

// applyUpdates отправляет запись в таблицу ESP. Если ESP отвечает, что
// записи не хватает даты создания (пользователь есть локально, но не в
// ESP), поле заполняется и запрос повторяется один раз.
func (e *Engine) applyUpdates(ctx context.Context, table string, rec *vendor.Record) error {
	const op = "reconcile.applyUpdates"
	err := e.gateway.UpsertRecord(ctx, table, rec)
	if err == nil {
		return nil
	}
	if errors.Is(err, vendor.ErrMissingField) && !rec.Has(FieldCreatedDate) {
		rec.Set(FieldCreatedDate, gmtTime())
		if err := e.gateway.UpsertRecord(ctx, table, rec); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ConfirmUser подтверждает все ожидающие подписки пользователя с данным
// токеном и отправляет приветствия за подписанные рассылки.
func (e *Engine) ConfirmUser(ctx context.Context, token string, user *models.UserData) error {
	const op = "reconcile.ConfirmUser"

	if user == nil {
		var err error
		user, err = e.LookupUser(ctx, "", token)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if user == nil {
		return tasks.Terminalf("user not found for token %q", token)
	}
	if user.Confirmed {
		e.log.Info("user is already confirmed", slog.String("token", token))
		return nil
	}
	if user.Email == "" {
		return tasks.Terminalf("token %q has no email at vendor", token)
	}

	// Токен попадает в таблицу подтверждений ESP; регулярный процесс на
	// стороне ESP переносит запись в основную таблицу.
	rec := &vendor.Record{}
	rec.Set(FieldToken, token)
	if err := e.applyUpdates(ctx, e.vendorCfg.ConfirmationTable, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	format := user.Format
	if format == "" {
		format = models.FormatHTML
	}
	if err := e.SendWelcomes(ctx, user, user.Newsletters, format); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
