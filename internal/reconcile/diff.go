package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

// Diff сравнивает запрошенные рассылки с текущими подписками пользователя
// и проставляет в записи ESP флаги и даты только для тех рассылок, чей
// статус действительно меняется. current равен nil, когда текущее состояние
// неизвестно — это не то же самое, что пустое множество: подписки тогда
// проставляются все, а отписки выполняются без проверки текущего состояния.
//
// Возвращает слаги рассылок, на которые пользователь подписывается
// и от которых отписывается.
func (e *Engine) Diff(ctx context.Context, rec *vendor.Record, action string,
	targets []string, current map[string]struct{}) (toSubscribe, toUnsubscribe []string, err error) {
	const op = "reconcile.Diff"

	inCurrent := func(slug string) bool {
		_, ok := current[slug]
		return ok
	}

	if action == models.ActionSubscribe || action == models.ActionSet {
		for _, slug := range targets {
			name, err := e.registry.VendorFieldName(ctx, slug)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", op, err)
			}
			// Неизвестные слаги молча пропускаются.
			if name == "" {
				continue
			}
			if current == nil || !inCurrent(slug) {
				rec.Set(name+flagSuffix, "Y")
				rec.Set(name+dateSuffix, dayStamp())
				toSubscribe = append(toSubscribe, slug)
			}
		}
	}

	if action == models.ActionUnsubscribe || action == models.ActionSet {
		var unsubs []string
		if action == models.ActionSet {
			targetSet := make(map[string]struct{}, len(targets))
			for _, slug := range targets {
				targetSet[slug] = struct{}{}
			}
			if current != nil {
				for slug := range current {
					if _, ok := targetSet[slug]; !ok {
						unsubs = append(unsubs, slug)
					}
				}
				sort.Strings(unsubs)
			} else {
				// Текущее состояние неизвестно: консервативно снимаем все
				// известные активные рассылки, не попавшие в целевой набор.
				all, err := e.registry.ActiveSlugs(ctx)
				if err != nil {
					return nil, nil, fmt.Errorf("%s: %w", op, err)
				}
				for _, slug := range all {
					if _, ok := targetSet[slug]; !ok {
						unsubs = append(unsubs, slug)
					}
				}
			}
		} else {
			unsubs = targets
		}

		for _, slug := range unsubs {
			name, err := e.registry.VendorFieldName(ctx, slug)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", op, err)
			}
			if name == "" {
				continue
			}
			if current == nil || inCurrent(slug) {
				rec.Set(name+flagSuffix, "N")
				rec.Set(name+dateSuffix, dayStamp())
				toUnsubscribe = append(toUnsubscribe, slug)
			}
		}
	}

	return toSubscribe, toUnsubscribe, nil
}
