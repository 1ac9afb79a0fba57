package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
)

// SendWelcomes отправляет приветственные письма за каждую рассылку из
// newsletterSlugs, у которой настроен приветственный шаблон. Если среди
// выбранных рассылок есть продукт мобильной ОС, приветствие общей рассылки
// не отправляется — его покрывает специализированное письмо. Язык шаблона
// откатывается на язык по умолчанию, когда рассылка не поддерживает язык
// пользователя. Повторяющиеся идентификаторы отправляются один раз.
// Отсутствие настроенных приветствий — успех, а не ошибка.
func (e *Engine) SendWelcomes(ctx context.Context, user *models.UserData,
	newsletterSlugs []string, format string) error {
	const op = "reconcile.SendWelcomes"

	if len(newsletterSlugs) == 0 {
		e.log.Debug("no newsletters to welcome for", slog.String("token", user.Token))
		return nil
	}

	var selected []*models.Newsletter
	hasMobileOS := false
	for _, slug := range newsletterSlugs {
		n, ok, err := e.registry.Resolve(ctx, slug)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			continue
		}
		selected = append(selected, n)
		if e.msgCfg.MobileOSVendorID != "" && n.VendorID == e.msgCfg.MobileOSVendorID {
			hasMobileOS = true
		}
	}

	seen := make(map[string]struct{})
	var welcomes []string
	for _, n := range selected {
		if hasMobileOS && n.VendorID == e.msgCfg.GeneralVendorID {
			continue
		}
		welcome := strings.TrimSpace(n.Welcome)
		if welcome == "" {
			continue
		}
		langCode := normalizeLangCode(user.Lang)
		if langCode == "" {
			langCode = e.msgCfg.DefaultLang
		}
		if !newsletterSupportsLang(n, langCode) {
			// Рассылка не поддерживает язык пользователя, приветствие
			// уходит на языке по умолчанию, как и сама рассылка.
			langCode = e.msgCfg.DefaultLang
		}
		welcome = Mogrify(welcome, langCode, format)
		if _, ok := seen[welcome]; ok {
			continue
		}
		seen[welcome] = struct{}{}
		welcomes = append(welcomes, welcome)
	}

	for _, welcome := range welcomes {
		e.log.Info("sending welcome",
			slog.String("message_id", welcome),
			slog.String("token", user.Token))
		if err := e.messenger.Send(ctx, welcome, user.Email, user.Token, format); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// SendConfirmNotice отправляет пользователю письмо со ссылкой для
// подтверждения подписки. Используется первый настроенный кастомный шаблон
// среди целевых рассылок, иначе общий шаблон подтверждения.
func (e *Engine) SendConfirmNotice(ctx context.Context, email, token, lang, format string,
	newsletterSlugs []string) error {
	const op = "reconcile.SendConfirmNotice"

	if lang == "" {
		lang = e.msgCfg.DefaultLang
	}

	supported, err := e.registry.LanguageSupported(ctx, lang)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !supported {
		return tasks.Terminalf("cannot send confirmation in unsupported language %q", lang)
	}

	messageID := e.msgCfg.ConfirmationID
	for _, slug := range newsletterSlugs {
		n, ok, resolveErr := e.registry.Resolve(ctx, slug)
		if resolveErr != nil {
			return fmt.Errorf("%s: %w", op, resolveErr)
		}
		if ok && n.ConfirmMessage != "" {
			messageID = n.ConfirmMessage
			break
		}
	}

	messageID = Mogrify(messageID, lang, format)
	return e.messenger.Send(ctx, messageID, email, token, format)
}

func normalizeLangCode(lang string) string {
	if len(lang) > 2 {
		lang = lang[:2]
	}
	return strings.ToLower(lang)
}

func newsletterSupportsLang(n *models.Newsletter, langCode string) bool {
	for _, l := range n.LanguageList() {
		if normalizeLangCode(l) == langCode {
			return true
		}
	}
	return false
}
