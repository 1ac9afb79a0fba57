package models

// Действия над набором подписок пользователя.
// Значения — строки, чтобы аргументы задач читались в логах.
const (
	ActionSubscribe   = "SUBSCRIBE"
	ActionUnsubscribe = "UNSUBSCRIBE"
	ActionSet         = "SET"
)

// Форматы писем, которые понимает ESP.
const (
	FormatHTML = "H"
	FormatText = "T"
)

// UserData представляет текущее состояние пользователя на стороне ESP.
// Newsletters равен nil, если состояние неизвестно (ошибка выборки или
// новый пользователь) — это отличается от пустого списка.
type UserData struct {
	Email       string
	Token       string
	Format      string   // "H" или "T"
	Country     string
	Lang        string
	Newsletters []string // Слаги текущих подписок, nil — состояние неизвестно
	Master      bool     // Запись найдена в основной таблице
	Pending     bool     // Запись найдена в таблице ожидающих подтверждения
	Confirmed   bool     // Подписка подтверждена
}

// CurrentSet возвращает текущие подписки пользователя как множество
// или nil, если состояние неизвестно.
func (u *UserData) CurrentSet() map[string]struct{} {
	if u.Newsletters == nil {
		return nil
	}
	set := make(map[string]struct{}, len(u.Newsletters))
	for _, slug := range u.Newsletters {
		set[slug] = struct{}{}
	}
	return set
}

// UpdateRequest описывает запрос на изменение подписок пользователя,
// передаваемый из HTTP-слоя в задачу update_user.
type UpdateRequest struct {
	Email          string   `json:"email"`
	Token          string   `json:"token"`
	Action         string   `json:"action"`
	Newsletters    []string `json:"newsletters"`
	Lang           string   `json:"lang,omitempty"`
	Country        string   `json:"country,omitempty"`
	Format         string   `json:"format,omitempty"`
	SourceURL      string   `json:"source_url,omitempty"`
	Optin          bool     `json:"optin"`           // true — пропустить double opt-in
	TriggerWelcome bool     `json:"trigger_welcome"` // слать ли приветственные письма
}
