package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

// AddSMSUser отправляет SMS по одному из разрешённых шаблонов и, если
// пользователь согласился на рассылку, сохраняет его номер в таблице
// SMS-подписчиков ESP. Неизвестный шаблон — тихий no-op: список разрешённых
// шаблонов задаётся конфигурацией, а не пользовательским вводом.
func (e *Engine) AddSMSUser(ctx context.Context, template, phone string, optin bool) error {
	const op = "reconcile.AddSMSUser"

	allowed := false
	for _, t := range e.msgCfg.SMSTemplates {
		if t == template {
			allowed = true
			break
		}
	}
	if !allowed {
		e.log.Warn("ignoring sms send with unknown template",
			slog.String("template", template))
		return nil
	}

	if err := e.gateway.TriggerSMSSend(ctx, template, phone); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if optin {
		rec := &vendor.Record{}
		rec.Set(FieldPhone, phone)
		rec.Set(FieldSubscriberKey, phone)
		if err := e.gateway.UpsertRecord(ctx, e.vendorCfg.SMSOptinTable, rec); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// SendRecoveryMessage отправляет письмо восстановления со ссылками на
// управление подписками. Если пользователя нет в ESP, писать некуда —
// задача завершается успешно, чтобы не раскрывать наличие адреса повторами.
func (e *Engine) SendRecoveryMessage(ctx context.Context, email string) error {
	const op = "reconcile.SendRecoveryMessage"

	user, err := e.LookupUser(ctx, email, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		e.log.Warn("recovery requested for unknown email")
		return nil
	}

	// Локальная запись нужна, чтобы ссылка из письма вела на действующий токен.
	if _, err := e.subscribers.SyncSubscriber(ctx, user.Email, user.Token, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lang := normalizeLangCode(user.Lang)
	if lang == "" {
		lang = e.msgCfg.DefaultLang
	}
	messageID := Mogrify(e.msgCfg.RecoveryID, lang, user.Format)
	if err := e.messenger.Send(ctx, messageID, user.Email, user.Token, user.Format); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateCustomUnsub записывает причину отписки, указанную пользователем
// в свободной форме, в основную таблицу ESP.
func (e *Engine) UpdateCustomUnsub(ctx context.Context, token, reason string) error {
	const op = "reconcile.UpdateCustomUnsub"

	rec := &vendor.Record{}
	rec.Set(FieldToken, token)
	rec.Set(FieldUnsubReason, reason)
	if err := e.gateway.UpsertRecord(ctx, e.vendorCfg.MasterTable, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateAccountInfo привязывает внешний идентификатор аккаунта к записи
// пользователя в ESP и отправляет приветствие аккаунта. Для адресов без
// записи в ESP создаётся новая подтверждённая запись: регистрация аккаунта
// сама по себе считается согласием.
func (e *Engine) UpdateAccountInfo(ctx context.Context, email, accountID, lang string) error {
	const op = "reconcile.UpdateAccountInfo"

	user, err := e.LookupUser(ctx, email, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var token, format string
	newRecord := user == nil
	if newRecord {
		sub, _, err := e.subscribers.GetOrCreateSubscriber(ctx, email)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		token = sub.Token
		format = models.FormatHTML
	} else {
		token = user.Token
		format = user.Format
		if lang == "" {
			lang = user.Lang
		}
	}
	if lang == "" {
		lang = e.msgCfg.DefaultLang
	}

	if _, err := e.subscribers.SyncSubscriber(ctx, email, token, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rec := &vendor.Record{}
	rec.Set(FieldEmail, email)
	rec.Set(FieldToken, token)
	rec.Set(FieldAccountID, accountID)
	rec.Set(FieldModifiedDate, gmtTime())
	if lang != "" {
		rec.Set(FieldLang, lang)
	}
	if newRecord {
		rec.Set(FieldCreatedDate, gmtTime())
	}
	if err := e.applyUpdates(ctx, e.vendorCfg.MasterTable, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	messageID := Mogrify(e.msgCfg.AccountWelcomeID, normalizeLangCode(lang), format)
	if err := e.messenger.Send(ctx, messageID, email, token, format); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
