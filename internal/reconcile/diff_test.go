package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

func fieldValue(t *testing.T, rec *vendor.Record, name string) string {
	t.Helper()
	v, ok := rec.Get(name)
	require.True(t, ok, "field %s is not set", name)
	return v
}

func TestDiffSubscribe(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, &fakeGateway{})

	t.Run("new user gets flags for every target", func(t *testing.T) {
		rec := &vendor.Record{}
		toSub, toUnsub, err := eng.Diff(ctx, rec, models.ActionSubscribe,
			[]string{"daily-news", "beta-program"}, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"daily-news", "beta-program"}, toSub)
		assert.Empty(t, toUnsub)
		assert.Equal(t, "Y", fieldValue(t, rec, "DAILY_NEWS_FLG"))
		assert.Equal(t, "Y", fieldValue(t, rec, "BETA_PROGRAM_FLG"))
		assert.True(t, rec.Has("DAILY_NEWS_DATE"))
	})

	t.Run("existing subscription is not re-flagged", func(t *testing.T) {
		rec := &vendor.Record{}
		current := map[string]struct{}{"daily-news": {}}
		toSub, _, err := eng.Diff(ctx, rec, models.ActionSubscribe,
			[]string{"daily-news", "beta-program"}, current)

		require.NoError(t, err)
		assert.Equal(t, []string{"beta-program"}, toSub)
		assert.False(t, rec.Has("DAILY_NEWS_FLG"))
	})

	t.Run("unknown and inactive slugs are skipped", func(t *testing.T) {
		rec := &vendor.Record{}
		toSub, _, err := eng.Diff(ctx, rec, models.ActionSubscribe,
			[]string{"no-such-list", "retired", "daily-news"}, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"daily-news"}, toSub)
		assert.Equal(t, 2, len(rec.Fields()))
	})

	t.Run("vendor id override names the field", func(t *testing.T) {
		rec := &vendor.Record{}
		_, _, err := eng.Diff(ctx, rec, models.ActionSubscribe, []string{"os-news"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "Y", fieldValue(t, rec, "MOBILE_OS_FLG"))
	})
}

func TestDiffUnsubscribe(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, &fakeGateway{})

	t.Run("current subscription is cleared", func(t *testing.T) {
		rec := &vendor.Record{}
		current := map[string]struct{}{"daily-news": {}}
		toSub, toUnsub, err := eng.Diff(ctx, rec, models.ActionUnsubscribe,
			[]string{"daily-news"}, current)

		require.NoError(t, err)
		assert.Empty(t, toSub)
		assert.Equal(t, []string{"daily-news"}, toUnsub)
		assert.Equal(t, "N", fieldValue(t, rec, "DAILY_NEWS_FLG"))
	})

	t.Run("not-subscribed target is a no-op", func(t *testing.T) {
		rec := &vendor.Record{}
		current := map[string]struct{}{"beta-program": {}}
		_, toUnsub, err := eng.Diff(ctx, rec, models.ActionUnsubscribe,
			[]string{"daily-news"}, current)

		require.NoError(t, err)
		assert.Empty(t, toUnsub)
		assert.Empty(t, rec.Fields())
	})

	t.Run("unknown current state clears unconditionally", func(t *testing.T) {
		rec := &vendor.Record{}
		_, toUnsub, err := eng.Diff(ctx, rec, models.ActionUnsubscribe,
			[]string{"daily-news"}, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"daily-news"}, toUnsub)
		assert.Equal(t, "N", fieldValue(t, rec, "DAILY_NEWS_FLG"))
	})
}

func TestDiffSet(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, &fakeGateway{})

	t.Run("replaces the known current set", func(t *testing.T) {
		rec := &vendor.Record{}
		current := map[string]struct{}{"daily-news": {}, "general-news": {}}
		toSub, toUnsub, err := eng.Diff(ctx, rec, models.ActionSet,
			[]string{"beta-program", "general-news"}, current)

		require.NoError(t, err)
		assert.Equal(t, []string{"beta-program"}, toSub)
		assert.Equal(t, []string{"daily-news"}, toUnsub)
		assert.Equal(t, "Y", fieldValue(t, rec, "BETA_PROGRAM_FLG"))
		assert.Equal(t, "N", fieldValue(t, rec, "DAILY_NEWS_FLG"))
		assert.False(t, rec.Has("COMPANY_AND_YOU_FLG"))
	})

	t.Run("unknown current state clears every other active list", func(t *testing.T) {
		rec := &vendor.Record{}
		toSub, toUnsub, err := eng.Diff(ctx, rec, models.ActionSet,
			[]string{"daily-news"}, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"daily-news"}, toSub)
		assert.Equal(t, []string{"beta-program", "os-news", "general-news"}, toUnsub)
	})

	t.Run("idempotent when state already matches", func(t *testing.T) {
		rec := &vendor.Record{}
		current := map[string]struct{}{"daily-news": {}}
		toSub, toUnsub, err := eng.Diff(ctx, rec, models.ActionSet,
			[]string{"daily-news"}, current)

		require.NoError(t, err)
		assert.Empty(t, toSub)
		assert.Empty(t, toUnsub)
		assert.Empty(t, rec.Fields())
	})
}
