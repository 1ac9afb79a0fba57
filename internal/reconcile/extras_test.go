package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSMSUser(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown template is silently dropped", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.AddSMSUser(ctx, "SMS_Unknown", "+15551234567", true)

		require.NoError(t, err)
		assert.Empty(t, gw.sms)
		assert.Empty(t, gw.upserts)
	})

	t.Run("send without optin leaves no record", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.AddSMSUser(ctx, "SMS_Android", "+15551234567", false)

		require.NoError(t, err)
		require.Len(t, gw.sms, 1)
		assert.Equal(t, "SMS_Android", gw.sms[0].template)
		assert.Empty(t, gw.upserts)
	})

	t.Run("optin stores the phone number", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, _ := newTestEngine(t, gw)

		err := eng.AddSMSUser(ctx, "SMS_Android", "+15551234567", true)

		require.NoError(t, err)
		require.Len(t, gw.upserts, 1)
		assert.Equal(t, testSMSTable, gw.upserts[0].table)
		phone, _ := gw.upserts[0].rec.Get(FieldPhone)
		assert.Equal(t, "+15551234567", phone)
	})
}

func TestSendRecoveryMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email is a quiet success", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, subs := newTestEngine(t, gw)

		err := eng.SendRecoveryMessage(ctx, "nobody@example.com")

		require.NoError(t, err)
		assert.Empty(t, gw.sends)
		assert.Empty(t, subs.syncCalls)
	})

	t.Run("known user gets the recovery message", func(t *testing.T) {
		gw := &fakeGateway{masterRecord: masterRecord(nil)}
		eng, _, subs := newTestEngine(t, gw)

		err := eng.SendRecoveryMessage(ctx, "user@example.com")

		require.NoError(t, err)
		require.Len(t, subs.syncCalls, 1)
		assert.Equal(t, "tok-1", subs.syncCalls[0].token)
		assert.Equal(t, []string{"en_recovery_message"}, gw.sentIDs())
	})
}

func TestUpdateCustomUnsub(t *testing.T) {
	gw := &fakeGateway{}
	eng, _, _ := newTestEngine(t, gw)

	err := eng.UpdateCustomUnsub(context.Background(), "tok-1", "too much email")

	require.NoError(t, err)
	require.Len(t, gw.upserts, 1)
	assert.Equal(t, testMasterTable, gw.upserts[0].table)
	reason, _ := gw.upserts[0].rec.Get(FieldUnsubReason)
	assert.Equal(t, "too much email", reason)
}

func TestUpdateAccountInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("new email gets a fresh confirmed record", func(t *testing.T) {
		gw := &fakeGateway{}
		eng, _, subs := newTestEngine(t, gw)

		err := eng.UpdateAccountInfo(ctx, "new@example.com", "acct-42", "fr")

		require.NoError(t, err)
		require.Len(t, gw.upserts, 1)
		rec := gw.upserts[0].rec
		assert.Equal(t, testMasterTable, gw.upserts[0].table)
		accountID, _ := rec.Get(FieldAccountID)
		assert.Equal(t, "acct-42", accountID)
		assert.True(t, rec.Has(FieldCreatedDate))
		require.Len(t, subs.syncCalls, 1)
		assert.Equal(t, "acct-42", subs.syncCalls[0].accountID)
		assert.Equal(t, "new-token", subs.syncCalls[0].token)
		assert.Equal(t, []string{"fr_account_welcome"}, gw.sentIDs())
	})

	t.Run("existing user keeps the vendor token", func(t *testing.T) {
		gw := &fakeGateway{masterRecord: masterRecord(nil)}
		eng, _, subs := newTestEngine(t, gw)

		err := eng.UpdateAccountInfo(ctx, "user@example.com", "acct-42", "")

		require.NoError(t, err)
		require.Len(t, subs.syncCalls, 1)
		assert.Equal(t, "tok-1", subs.syncCalls[0].token)
		rec := gw.upserts[0].rec
		assert.False(t, rec.Has(FieldCreatedDate))
		assert.Equal(t, []string{"en_account_welcome"}, gw.sentIDs())
	})
}
