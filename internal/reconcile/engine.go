// Package reconcile содержит ядро сервиса: сверку запрошенных подписок
// с текущим состоянием пользователя на стороне ESP, решение о необходимости
// double opt-in и выбор приветственных и подтверждающих сообщений.
package reconcile

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/magabrotheeeer/newsletter-basket/internal/config"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/newsletters"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

// Имена полей записей ESP.
const (
	FieldEmail            = "EMAIL_ADDRESS_"
	FieldToken            = "TOKEN"
	FieldFormat           = "EMAIL_FORMAT_"
	FieldCountry          = "COUNTRY_"
	FieldLang             = "LANGUAGE_ISO2"
	FieldPermissionStatus = "EMAIL_PERMISSION_STATUS_"
	FieldModifiedDate     = "MODIFIED_DATE_"
	FieldCreatedDate      = "CREATED_DATE_"
	FieldSourceURL        = "SOURCE_URL"
	FieldSubscriberKey    = "SubscriberKey"
	FieldEmailAddress     = "EmailAddress"
	FieldUnsubReason      = "UNSUBSCRIBE_REASON"
	FieldAccountID        = "ACCOUNT_ID"
	FieldPhone            = "Phone"

	flagSuffix = "_FLG"
	dateSuffix = "_DATE"
)

// SubscriberStore синхронизирует локальные записи подписчиков с данными ESP.
type SubscriberStore interface {
	GetOrCreateSubscriber(ctx context.Context, email string) (*models.Subscriber, bool, error)
	SyncSubscriber(ctx context.Context, email, token, accountID string) (*models.Subscriber, error)
}

// Engine выполняет сверку и изменение состояния пользователя в ESP.
type Engine struct {
	gateway     vendor.Gateway
	registry    *newsletters.Registry
	subscribers SubscriberStore
	messenger   *Messenger
	vendorCfg   config.Vendor
	msgCfg      config.Messages
	log         *slog.Logger
}

// NewEngine создаёт ядро сверки.
func NewEngine(gateway vendor.Gateway, registry *newsletters.Registry, subscribers SubscriberStore,
	messenger *Messenger, vendorCfg config.Vendor, msgCfg config.Messages, log *slog.Logger) *Engine {
	return &Engine{
		gateway:     gateway,
		registry:    registry,
		subscribers: subscribers,
		messenger:   messenger,
		vendorCfg:   vendorCfg,
		msgCfg:      msgCfg,
		log:         log,
	}
}

// gmtTime возвращает отметку времени изменения записи в формате ESP.
// Сдвиг на десять минут вперёд сглаживает расхождение часов с ESP.
func gmtTime() string {
	return time.Now().Add(10 * time.Minute).UTC().Format(http.TimeFormat)
}

// dayStamp возвращает дату решения с точностью до дня.
func dayStamp() string {
	return time.Now().UTC().Format("2006-01-02")
}
