package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

func masterRecord(flags map[string]string) map[string]string {
	rec := map[string]string{
		FieldEmail:  "user@example.com",
		FieldToken:  "tok-1",
		FieldFormat: "H",
		FieldLang:   "en",
	}
	for k, v := range flags {
		rec[k] = v
	}
	return rec
}

func TestUpdateUserAlreadyConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("subscribe updates master record and sends welcome", func(t *testing.T) {
		gw := &fakeGateway{masterRecord: masterRecord(map[string]string{
			"DAILY_NEWS_FLG": "N",
		})}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:          "user@example.com",
			Token:          "tok-1",
			Action:         models.ActionSubscribe,
			Newsletters:    []string{"daily-news"},
			TriggerWelcome: true,
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyConfirmed, outcome)
		require.Len(t, gw.upserts, 1)
		assert.Equal(t, testMasterTable, gw.upserts[0].table)
		flag, _ := gw.upserts[0].rec.Get("DAILY_NEWS_FLG")
		assert.Equal(t, "Y", flag)
		assert.False(t, gw.upserts[0].rec.Has(FieldCreatedDate))
		assert.Equal(t, []string{"en_WELCOME_DAILY"}, gw.sentIDs())
	})

	t.Run("set replaces the subscription set without welcomes", func(t *testing.T) {
		gw := &fakeGateway{masterRecord: masterRecord(map[string]string{
			"DAILY_NEWS_FLG":   "Y",
			"BETA_PROGRAM_FLG": "N",
		})}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:          "user@example.com",
			Token:          "tok-1",
			Action:         models.ActionSet,
			Newsletters:    []string{"beta-program"},
			Optin:          true,
			TriggerWelcome: true,
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyConfirmed, outcome)
		require.Len(t, gw.upserts, 1)
		rec := gw.upserts[0].rec
		beta, _ := rec.Get("BETA_PROGRAM_FLG")
		daily, _ := rec.Get("DAILY_NEWS_FLG")
		assert.Equal(t, "Y", beta)
		assert.Equal(t, "N", daily)
		assert.Empty(t, gw.sends)
	})
}

func TestUpdateUserExempt(t *testing.T) {
	ctx := context.Background()

	t.Run("new user without double opt-in goes straight to master", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:          "new@example.com",
			Token:          "tok-new",
			Action:         models.ActionSubscribe,
			Newsletters:    []string{"daily-news"},
			Lang:           "fr",
			TriggerWelcome: true,
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeExemptNew, outcome)
		require.Len(t, gw.upserts, 1)
		assert.Equal(t, testMasterTable, gw.upserts[0].table)
		assert.True(t, gw.upserts[0].rec.Has(FieldCreatedDate))
		assert.Equal(t, []string{"fr_WELCOME_DAILY"}, gw.sentIDs())
	})

	t.Run("pending user with explicit optin is confirmed", func(t *testing.T) {
		gw := &fakeGateway{optinRecord: map[string]string{
			FieldEmail:         "user@example.com",
			FieldToken:         "tok-1",
			FieldFormat:        "H",
			FieldLang:          "en",
			"BETA_PROGRAM_FLG": "Y",
		}}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:       "user@example.com",
			Token:       "tok-1",
			Action:      models.ActionSubscribe,
			Newsletters: []string{"daily-news"},
			Optin:       true,
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeExemptPending, outcome)
		require.Len(t, gw.upserts, 2)
		assert.Equal(t, testOptinTable, gw.upserts[0].table)
		assert.Equal(t, testConfirmationTable, gw.upserts[1].table)
		token, _ := gw.upserts[1].rec.Get(FieldToken)
		assert.Equal(t, "tok-1", token)
	})
}

func TestUpdateUserMustConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("new user lands in the opt-in table with a notice", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:          "new@example.com",
			Token:          "tok-new",
			Action:         models.ActionSubscribe,
			Newsletters:    []string{"beta-program"},
			TriggerWelcome: true,
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeMustConfirmNew, outcome)
		require.Len(t, gw.upserts, 1)
		assert.Equal(t, testOptinTable, gw.upserts[0].table)
		rec := gw.upserts[0].rec
		assert.True(t, rec.Has(FieldCreatedDate))
		key, _ := rec.Get(FieldSubscriberKey)
		assert.Equal(t, "tok-new", key)
		addr, _ := rec.Get(FieldEmailAddress)
		assert.Equal(t, "new@example.com", addr)
		assert.Equal(t, []string{"en_CONFIRM_BETA"}, gw.sentIDs())
	})

	t.Run("pending user gets the notice again without welcomes", func(t *testing.T) {
		gw := &fakeGateway{optinRecord: map[string]string{
			FieldEmail:         "user@example.com",
			FieldToken:         "tok-1",
			FieldFormat:        "H",
			FieldLang:          "en",
			"BETA_PROGRAM_FLG": "N",
		}}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:          "user@example.com",
			Token:          "tok-1",
			Action:         models.ActionSubscribe,
			Newsletters:    []string{"beta-program"},
			TriggerWelcome: true,
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeMustConfirmPending, outcome)
		require.Len(t, gw.upserts, 1)
		assert.Equal(t, testOptinTable, gw.upserts[0].table)
		assert.False(t, gw.upserts[0].rec.Has(FieldSubscriberKey))
		assert.Equal(t, []string{"en_CONFIRM_BETA"}, gw.sentIDs())
	})

	t.Run("nothing newly requested sends no notice", func(t *testing.T) {
		gw := &fakeGateway{optinRecord: map[string]string{
			FieldEmail:         "user@example.com",
			FieldToken:         "tok-1",
			FieldFormat:        "H",
			FieldLang:          "en",
			"BETA_PROGRAM_FLG": "Y",
		}}
		eng, _, _ := newTestEngine(t, gw)

		outcome, err := eng.UpdateUser(ctx, models.UpdateRequest{
			Email:       "user@example.com",
			Token:       "tok-1",
			Action:      models.ActionSubscribe,
			Newsletters: []string{"beta-program"},
		})

		require.NoError(t, err)
		assert.Equal(t, OutcomeMustConfirmPending, outcome)
		assert.Empty(t, gw.sends)
	})
}

func TestApplyUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("missing created date is fixed and retried once", func(t *testing.T) {
		gw := &fakeGateway{upsertErrs: []error{vendor.ErrMissingField}}
		eng, _, _ := newTestEngine(t, gw)

		rec := &vendor.Record{}
		rec.Set(FieldToken, "tok-1")
		err := eng.applyUpdates(ctx, testMasterTable, rec)

		require.NoError(t, err)
		assert.Len(t, gw.upserts, 2)
		assert.True(t, rec.Has(FieldCreatedDate))
	})

	t.Run("missing field with date already set is not retried", func(t *testing.T) {
		gw := &fakeGateway{upsertErrs: []error{vendor.ErrMissingField}}
		eng, _, _ := newTestEngine(t, gw)

		rec := &vendor.Record{}
		rec.Set(FieldToken, "tok-1")
		rec.Set(FieldCreatedDate, gmtTime())
		err := eng.applyUpdates(ctx, testMasterTable, rec)

		require.Error(t, err)
		assert.Len(t, gw.upserts, 1)
	})
}

func TestConfirmUser(t *testing.T) {
	ctx := context.Background()

	t.Run("pending user is confirmed and welcomed", func(t *testing.T) {
		gw := &fakeGateway{optinRecord: map[string]string{
			FieldEmail:       "user@example.com",
			FieldToken:       "tok-1",
			FieldFormat:      "T",
			FieldLang:        "fr",
			"DAILY_NEWS_FLG": "Y",
		}}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.ConfirmUser(ctx, "tok-1", nil)

		require.NoError(t, err)
		require.Len(t, gw.upserts, 1)
		assert.Equal(t, testConfirmationTable, gw.upserts[0].table)
		assert.Equal(t, []string{"fr_WELCOME_DAILY_T"}, gw.sentIDs())
	})

	t.Run("already confirmed user is a no-op", func(t *testing.T) {
		gw := &fakeGateway{masterRecord: masterRecord(nil)}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.ConfirmUser(ctx, "tok-1", nil)

		require.NoError(t, err)
		assert.Empty(t, gw.upserts)
		assert.Empty(t, gw.sends)
	})

	t.Run("unknown token is terminal", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.ConfirmUser(ctx, "tok-missing", nil)

		require.Error(t, err)
		assert.True(t, tasks.IsTerminal(err))
	})
}

func TestSendWelcomes(t *testing.T) {
	ctx := context.Background()

	user := &models.UserData{
		Email:  "user@example.com",
		Token:  "tok-1",
		Lang:   "en",
		Format: "H",
	}

	t.Run("mobile os welcome suppresses the general one", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.SendWelcomes(ctx, user, []string{"os-news", "general-news"}, "H")

		require.NoError(t, err)
		assert.Equal(t, []string{"en_WELCOME_OS"}, gw.sentIDs())
	})

	t.Run("unsupported language falls back to default", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		jaUser := &models.UserData{Email: "user@example.com", Token: "tok-1", Lang: "ja"}
		err := eng.SendWelcomes(ctx, jaUser, []string{"daily-news"}, "H")

		require.NoError(t, err)
		assert.Equal(t, []string{"en_WELCOME_DAILY"}, gw.sentIDs())
	})

	t.Run("duplicate message ids are sent once", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.SendWelcomes(ctx, user, []string{"general-news", "general-news"}, "H")

		require.NoError(t, err)
		assert.Equal(t, []string{"en_WELCOME_GENERAL"}, gw.sentIDs())
	})

	t.Run("no configured welcomes is a success", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.SendWelcomes(ctx, user, []string{"beta-program"}, "H")

		require.NoError(t, err)
		assert.Empty(t, gw.sends)
	})
}

func TestSendConfirmNotice(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported language is terminal", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.SendConfirmNotice(ctx, "user@example.com", "tok-1", "xx", "H",
			[]string{"beta-program"})

		require.Error(t, err)
		assert.True(t, tasks.IsTerminal(err))
		assert.Empty(t, gw.sends)
	})

	t.Run("default template when no list overrides it", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.SendConfirmNotice(ctx, "user@example.com", "tok-1", "", "H",
			[]string{"daily-news"})

		require.NoError(t, err)
		assert.Equal(t, []string{"en_confirmation_email"}, gw.sentIDs())
	})
}
