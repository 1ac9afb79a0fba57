package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/metrics"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

// Mogrify преобразует базовый идентификатор сообщения в локализованный
// идентификатор нужного формата: язык добавляется префиксом из двух
// строчных букв, текстовый формат — суффиксом "_T".
//
// Примеры: ("WELCOME", "fr", "H") -> "fr_WELCOME";
// ("WELCOME", "pt", "T") -> "pt_WELCOME_T"; ("WELCOME", "", "H") -> "WELCOME".
func Mogrify(messageID, lang, format string) string {
	result := messageID
	if lang != "" {
		lang = strings.ToLower(lang)
		if len(lang) > 2 {
			lang = lang[:2]
		}
		result = lang + "_" + messageID
	}
	if format == "T" {
		result += "_T"
	}
	return result
}

// Cache хранит deny-list идентификаторов сообщений, которые ESP признал
// несуществующими. Кеш разделяется между процессами и живёт несколько дней.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Messenger отправляет шаблонные сообщения через ESP, пропуская
// идентификаторы из deny-list.
type Messenger struct {
	gateway vendor.Gateway
	cache   Cache
	denyTTL time.Duration
	log     *slog.Logger
}

// NewMessenger создаёт отправителя сообщений.
func NewMessenger(gateway vendor.Gateway, cache Cache, denyTTL time.Duration, log *slog.Logger) *Messenger {
	return &Messenger{gateway: gateway, cache: cache, denyTTL: denyTTL, log: log}
}

func denyKey(messageID string) string {
	return "message:denied:" + messageID
}

// Send отправляет сообщение пользователю. Идентификатор из deny-list —
// успешный no-op. Отказ ESP «неизвестный идентификатор» пополняет deny-list
// и фатален; «нет получателей» фатален без кеширования; прочие отказы
// считаются временными.
func (m *Messenger) Send(ctx context.Context, messageID, email, token, format string) error {
	var denied bool
	found, err := m.cache.Get(denyKey(messageID), &denied)
	if err != nil {
		// Недоступность кеша не должна блокировать отправку.
		m.log.Warn("failed to read message deny-list", sl.Err(err))
	}
	if found && denied {
		m.log.Info("skipping send: message id is deny-listed",
			slog.String("message_id", messageID))
		return nil
	}

	m.log.Debug("sending message",
		slog.String("message_id", messageID),
		slog.String("token", token),
		slog.String("format", format))

	rec := &vendor.Record{}
	rec.Set(FieldEmail, email)
	rec.Set(FieldToken, token)
	rec.Set(FieldFormat, format)

	err = m.gateway.TriggerSend(ctx, messageID, rec)
	switch {
	case err == nil:
		metrics.MessagesSent.WithLabelValues("success").Inc()
		return nil
	case errors.Is(err, vendor.ErrInvalidMessageID):
		// Запоминаем плохой идентификатор, чтобы не повторять заведомо
		// неудачный вызов, и отдаём ошибку наверх для разовой фиксации.
		if cacheErr := m.cache.Set(denyKey(messageID), true, m.denyTTL); cacheErr != nil {
			m.log.Warn("failed to write message deny-list", sl.Err(cacheErr))
		}
		metrics.MessagesSent.WithLabelValues("invalid_id").Inc()
		return tasks.Terminalf("vendor says no such message id %q: %w", messageID, err)
	case errors.Is(err, vendor.ErrNoRecipients):
		metrics.MessagesSent.WithLabelValues("no_recipients").Inc()
		return tasks.Terminalf("vendor says there are no valid recipients: %w", err)
	}
	metrics.MessagesSent.WithLabelValues("error").Inc()
	return err
}
