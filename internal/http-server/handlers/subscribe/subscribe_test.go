package subscribe_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/subscribe"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
)

type mockSubscribers struct {
	GetOrCreateFunc func(ctx context.Context, email string) (*models.Subscriber, bool, error)
}

func (m *mockSubscribers) GetOrCreateSubscriber(ctx context.Context, email string) (*models.Subscriber, bool, error) {
	return m.GetOrCreateFunc(ctx, email)
}

type mockQueue struct {
	EnqueueFunc func(name string, args any) (string, error)
}

func (m *mockQueue) Enqueue(name string, args any) (string, error) {
	return m.EnqueueFunc(name, args)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func TestSubscribeHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns the subscriber token", func(t *testing.T) {
		body, _ := json.Marshal(subscribe.Request{
			Email:       "user@example.com",
			Newsletters: "daily-news, beta-program",
			Lang:        "fr",
		})

		subscribers := &mockSubscribers{
			GetOrCreateFunc: func(_ context.Context, email string) (*models.Subscriber, bool, error) {
				require.Equal(t, "user@example.com", email)
				return &models.Subscriber{Email: email, Token: "tok-1"}, true, nil
			},
		}
		queue := &mockQueue{
			EnqueueFunc: func(name string, args any) (string, error) {
				require.Equal(t, reconcile.TaskUpdateUser, name)
				req := args.(models.UpdateRequest)
				require.Equal(t, models.ActionSubscribe, req.Action)
				require.Equal(t, []string{"daily-news", "beta-program"}, req.Newsletters)
				require.Equal(t, "tok-1", req.Token)
				require.True(t, req.TriggerWelcome)
				return "task-1", nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
		w := httptest.NewRecorder()

		subscribe.New(ctx, makeLogger(), subscribers, queue).ServeHTTP(w, req)

		var resp response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, response.StatusOK, resp.Status)
		assert.Equal(t, "tok-1", resp.Token)
	})

	t.Run("invalid email", func(t *testing.T) {
		body, _ := json.Marshal(subscribe.Request{
			Email:       "not-an-email",
			Newsletters: "daily-news",
		})

		subscribers := &mockSubscribers{
			GetOrCreateFunc: func(context.Context, string) (*models.Subscriber, bool, error) {
				t.Fatal("storage should not be called on validation error")
				return nil, false, nil
			},
		}
		queue := &mockQueue{
			EnqueueFunc: func(string, any) (string, error) {
				t.Fatal("queue should not be called on validation error")
				return "", nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
		w := httptest.NewRecorder()

		subscribe.New(ctx, makeLogger(), subscribers, queue).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must be a valid email address")
	})

	t.Run("empty newsletter list", func(t *testing.T) {
		body, _ := json.Marshal(subscribe.Request{
			Email:       "user@example.com",
			Newsletters: " , ,",
		})

		subscribers := &mockSubscribers{
			GetOrCreateFunc: func(context.Context, string) (*models.Subscriber, bool, error) {
				t.Fatal("storage should not be called without newsletters")
				return nil, false, nil
			},
		}
		queue := &mockQueue{}

		req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
		w := httptest.NewRecorder()

		subscribe.New(ctx, makeLogger(), subscribers, queue).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no newsletters requested")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		subscribers := &mockSubscribers{}
		queue := &mockQueue{}

		req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader([]byte("{bad json")))
		w := httptest.NewRecorder()

		subscribe.New(ctx, makeLogger(), subscribers, queue).ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), "failed to decode request")
	})

	t.Run("enqueue error", func(t *testing.T) {
		body, _ := json.Marshal(subscribe.Request{
			Email:       "user@example.com",
			Newsletters: "daily-news",
		})

		subscribers := &mockSubscribers{
			GetOrCreateFunc: func(_ context.Context, email string) (*models.Subscriber, bool, error) {
				return &models.Subscriber{Email: email, Token: "tok-1"}, false, nil
			},
		}
		queue := &mockQueue{
			EnqueueFunc: func(string, any) (string, error) {
				return "", errors.New("broker down")
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
		w := httptest.NewRecorder()

		subscribe.New(ctx, makeLogger(), subscribers, queue).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "internal error")
	})
}
