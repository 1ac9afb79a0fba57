// Package newsletters реализует реестр определений рассылок — общий для
// процесса кеш над конфигурационным хранилищем. Кеш сбрасывается синхронно
// при каждой записи в таблицу рассылок, поэтому читатели никогда не видят
// устаревшее определение после фиксации изменения.
package newsletters

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

// Loader загружает определения рассылок из конфигурационного хранилища.
type Loader interface {
	ListNewsletters(ctx context.Context) ([]*models.Newsletter, error)
}

// Registry — кеш определений рассылок с явным сбросом.
type Registry struct {
	loader Loader

	mu     sync.RWMutex
	bySlug map[string]*models.Newsletter
	order  []string // слаги в порядке отображения
}

// NewRegistry создаёт реестр над переданным хранилищем.
func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader}
}

// Invalidate сбрасывает кеш. Вызывается хранилищем синхронно после каждой
// зафиксированной записи в таблицу рассылок.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.bySlug = nil
	r.order = nil
	r.mu.Unlock()
}

func (r *Registry) load(ctx context.Context) (map[string]*models.Newsletter, []string, error) {
	const op = "newsletters.load"

	r.mu.RLock()
	bySlug, order := r.bySlug, r.order
	r.mu.RUnlock()
	if bySlug != nil {
		return bySlug, order, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bySlug != nil {
		return r.bySlug, r.order, nil
	}

	defs, err := r.loader.ListNewsletters(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	bySlug = make(map[string]*models.Newsletter, len(defs))
	order = make([]string, 0, len(defs))
	for _, n := range defs {
		bySlug[n.Slug] = n
		order = append(order, n.Slug)
	}
	r.bySlug = bySlug
	r.order = order
	return bySlug, order, nil
}

// Resolve возвращает определение рассылки по слагу.
func (r *Registry) Resolve(ctx context.Context, slug string) (*models.Newsletter, bool, error) {
	bySlug, _, err := r.load(ctx)
	if err != nil {
		return nil, false, err
	}
	n, ok := bySlug[slug]
	return n, ok, nil
}

// Slugs возвращает слаги всех известных рассылок в порядке отображения.
func (r *Registry) Slugs(ctx context.Context) ([]string, error) {
	_, order, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), order...), nil
}

// ActiveSlugs возвращает слаги активных рассылок.
func (r *Registry) ActiveSlugs(ctx context.Context) ([]string, error) {
	bySlug, order, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	var slugs []string
	for _, slug := range order {
		if bySlug[slug].Active {
			slugs = append(slugs, slug)
		}
	}
	return slugs, nil
}

// VendorFieldName возвращает имя поля ESP для рассылки или пустую строку,
// если слаг неизвестен или рассылка неактивна для записи.
func (r *Registry) VendorFieldName(ctx context.Context, slug string) (string, error) {
	n, ok, err := r.Resolve(ctx, slug)
	if err != nil {
		return "", err
	}
	if !ok || !n.Active {
		return "", nil
	}
	if n.VendorID != "" {
		return n.VendorID, nil
	}
	return DeriveFieldName(slug), nil
}

// LanguageSupported сообщает, поддерживает ли хоть одна рассылка язык.
func (r *Registry) LanguageSupported(ctx context.Context, lang string) (bool, error) {
	bySlug, _, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	lang = normalizeLang(lang)
	for _, n := range bySlug {
		for _, l := range n.LanguageList() {
			if normalizeLang(l) == lang {
				return true, nil
			}
		}
	}
	return false, nil
}

// DeriveFieldName выводит имя поля ESP из слага: слаг приводится
// к верхнему регистру, все не буквенно-цифровые символы заменяются на '_'.
func DeriveFieldName(slug string) string {
	upper := strings.ToUpper(slug)
	return strings.Map(func(ch rune) rune {
		if ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' {
			return ch
		}
		return '_'
	}, upper)
}

func normalizeLang(lang string) string {
	if len(lang) > 2 {
		lang = lang[:2]
	}
	return strings.ToLower(lang)
}
