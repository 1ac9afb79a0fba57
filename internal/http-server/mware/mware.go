// Package mware содержит middleware для HTTP-сервера: проверку API-ключа
// для служебных маршрутов и ограничение частоты запросов публичного API.
package mware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
)

// APIKeyChecker проверяет API-ключ по таблице api_users.
type APIKeyChecker interface {
	IsValidAPIKey(ctx context.Context, key string) (bool, error)
}

// APIKeyMiddleware возвращает middleware, пропускающее запрос только
// с действующим ключом в заголовке X-Api-Key.
func APIKeyMiddleware(checker APIKeyChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "mware.APIKeyMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			key := r.Header.Get("X-Api-Key")
			if key == "" {
				log.Warn("missing api key header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing api key"))

				return
			}

			valid, err := checker.IsValidAPIKey(r.Context(), key)
			if err != nil {
				log.Error("failed to check api key", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))

				return
			}
			if !valid {
				log.Warn("invalid api key")
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("invalid api key"))

				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware ограничивает общий поток запросов публичного API.
func RateLimitMiddleware(rps float64, burst int, log *slog.Logger) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Warn("request rate limited",
					slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))

				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
