package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/magabrotheeeer/newsletter-basket/internal/config"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/newsletters"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

const (
	testMasterTable       = "subscribers_master"
	testOptinTable        = "subscribers_optin"
	testConfirmationTable = "confirmation"
	testSMSTable          = "sms_optin"
)

type upsertCall struct {
	table string
	rec   *vendor.Record
}

type sendCall struct {
	messageID string
	rec       *vendor.Record
}

type smsCall struct {
	template string
	phone    string
}

type fakeGateway struct {
	masterRecord map[string]string
	optinRecord  map[string]string
	fetchErr     error
	upsertErrs   []error // очередь ошибок UpsertRecord, по одной на вызов
	sendErr      error

	upserts []upsertCall
	sends   []sendCall
	sms     []smsCall
}

func (g *fakeGateway) FetchRecord(_ context.Context, table, _ string, _ bool, _ []string) (map[string]string, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	switch table {
	case testMasterTable:
		if g.masterRecord != nil {
			return g.masterRecord, nil
		}
	case testOptinTable:
		if g.optinRecord != nil {
			return g.optinRecord, nil
		}
	}
	return nil, vendor.ErrNotFound
}

func (g *fakeGateway) UpsertRecord(_ context.Context, table string, rec *vendor.Record) error {
	g.upserts = append(g.upserts, upsertCall{table: table, rec: rec})
	if len(g.upsertErrs) > 0 {
		err := g.upsertErrs[0]
		g.upsertErrs = g.upsertErrs[1:]
		return err
	}
	return nil
}

func (g *fakeGateway) TriggerSend(_ context.Context, messageID string, rec *vendor.Record) error {
	g.sends = append(g.sends, sendCall{messageID: messageID, rec: rec})
	return g.sendErr
}

func (g *fakeGateway) TriggerSMSSend(_ context.Context, template, phone string) error {
	g.sms = append(g.sms, smsCall{template: template, phone: phone})
	return nil
}

func (g *fakeGateway) sentIDs() []string {
	ids := make([]string, 0, len(g.sends))
	for _, s := range g.sends {
		ids = append(ids, s.messageID)
	}
	return ids
}

type fakeLoader struct {
	defs []*models.Newsletter
	err  error
}

func (l *fakeLoader) ListNewsletters(context.Context) ([]*models.Newsletter, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.defs, nil
}

type fakeCache struct {
	values map[string]bool
	getErr error
	setErr error
}

func (c *fakeCache) Get(key string, result any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	if p, isBool := result.(*bool); isBool {
		*p = v
	}
	return true, nil
}

func (c *fakeCache) Set(key string, value any, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	if c.values == nil {
		c.values = make(map[string]bool)
	}
	b, _ := value.(bool)
	c.values[key] = b
	return nil
}

type syncCall struct {
	email     string
	token     string
	accountID string
}

type fakeSubscribers struct {
	syncCalls []syncCall
}

func (s *fakeSubscribers) GetOrCreateSubscriber(_ context.Context, email string) (*models.Subscriber, bool, error) {
	return &models.Subscriber{Email: email, Token: "new-token"}, true, nil
}

func (s *fakeSubscribers) SyncSubscriber(_ context.Context, email, token, accountID string) (*models.Subscriber, error) {
	s.syncCalls = append(s.syncCalls, syncCall{email: email, token: token, accountID: accountID})
	return &models.Subscriber{Email: email, Token: token, AccountID: accountID}, nil
}

func testNewsletters() []*models.Newsletter {
	return []*models.Newsletter{
		{Slug: "daily-news", Title: "Daily News", Active: true, Show: true,
			Welcome: "WELCOME_DAILY", Languages: "en,fr,de", Order: 1},
		{Slug: "beta-program", Title: "Beta Program", Active: true,
			Languages: "en", RequiresDoubleOptin: true, ConfirmMessage: "CONFIRM_BETA", Order: 2},
		{Slug: "os-news", Title: "OS News", Active: true,
			Welcome: "WELCOME_OS", VendorID: "MOBILE_OS", Languages: "en", Order: 3},
		{Slug: "general-news", Title: "General News", Active: true,
			Welcome: "WELCOME_GENERAL", VendorID: "COMPANY_AND_YOU", Languages: "en,fr", Order: 4},
		{Slug: "retired", Title: "Retired", Languages: "en", Order: 5},
	}
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestEngine(t *testing.T, gw *fakeGateway) (*Engine, *fakeCache, *fakeSubscribers) {
	t.Helper()

	registry := newsletters.NewRegistry(&fakeLoader{defs: testNewsletters()})
	cache := &fakeCache{}
	subs := &fakeSubscribers{}
	vendorCfg := config.Vendor{
		MasterTable:       testMasterTable,
		OptinTable:        testOptinTable,
		ConfirmationTable: testConfirmationTable,
		SMSOptinTable:     testSMSTable,
	}
	msgCfg := config.Messages{
		ConfirmationID:   "confirmation_email",
		RecoveryID:       "recovery_message",
		AccountWelcomeID: "account_welcome",
		DefaultLang:      "en",
		MobileOSVendorID: "MOBILE_OS",
		GeneralVendorID:  "COMPANY_AND_YOU",
		SMSTemplates:     []string{"SMS_Android"},
		DenyListTTL:      time.Hour,
	}
	log := newNoopLogger()
	messenger := NewMessenger(gw, cache, msgCfg.DenyListTTL, log)
	return NewEngine(gw, registry, subs, messenger, vendorCfg, msgCfg, log), cache, subs
}
