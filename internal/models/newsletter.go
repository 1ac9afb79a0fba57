// Package models содержит доменные структуры рассылок, подписчиков
// и служебных записей, а также вспомогательные типы для приёма данных
// из JSON-запросов.
package models

import "strings"

// Newsletter описывает рассылку, на которую можно подписаться.
// Slug уникален и служит ключом для клиентов; VendorID — идентификатор
// рассылки на стороне ESP (если пуст, выводится из Slug).
type Newsletter struct {
	ID                  int    // Внутренний идентификатор
	Slug                string // Уникальный ключ рассылки
	Title               string // Публичное название
	Description         string // Краткое описание
	Show                bool   // Показывать ли рассылку неподписанным
	Active              bool   // Активна ли рассылка
	Welcome             string // ID приветственного сообщения (пусто — не отправлять)
	VendorID            string // Идентификатор рассылки у ESP
	Languages           string // Список поддерживаемых языков через запятую
	RequiresDoubleOptin bool   // Требуется ли подтверждение подписки
	Order               int    // Порядок отображения
	ConfirmMessage      string // ID письма подтверждения (пусто — использовать общее)
}

// LanguageList возвращает поддерживаемые языки рассылки в виде списка.
func (n *Newsletter) LanguageList() []string {
	if n.Languages == "" {
		return nil
	}
	parts := strings.Split(n.Languages, ",")
	langs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}

// Normalize убирает пробелы из полей перед сохранением,
// как это делает админка при записи рассылки.
func (n *Newsletter) Normalize() {
	n.Languages = strings.ReplaceAll(n.Languages, " ", "")
	n.Welcome = strings.TrimSpace(n.Welcome)
	n.ConfirmMessage = strings.TrimSpace(n.ConfirmMessage)
}

// ParseNewsletterList разбирает список слагов, переданный клиентом
// через запятую, отбрасывая пустые элементы.
func ParseNewsletterList(s string) []string {
	var slugs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			slugs = append(slugs, part)
		}
	}
	return slugs
}

// DummyNewsletter используется для приёма данных рассылки из JSON-запроса
// до валидации и преобразования в Newsletter.
type DummyNewsletter struct {
	Slug                string `json:"slug" validate:"required"`
	Title               string `json:"title" validate:"required"`
	Description         string `json:"description,omitempty"`
	Show                bool   `json:"show"`
	Active              bool   `json:"active"`
	Welcome             string `json:"welcome,omitempty"`
	VendorID            string `json:"vendor_id,omitempty"`
	Languages           string `json:"languages" validate:"required"`
	RequiresDoubleOptin bool   `json:"requires_double_optin"`
	Order               int    `json:"order"`
	ConfirmMessage      string `json:"confirm_message,omitempty"`
}
