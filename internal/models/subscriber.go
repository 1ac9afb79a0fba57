package models

// Subscriber представляет локальную запись подписчика: email является
// первичным идентификатором, токен — стабильный вторичный идентификатор,
// который не меняется при смене email. AccountID — необязательная привязка
// к внешней учётной записи.
type Subscriber struct {
	Email     string // Адрес электронной почты (первичный ключ)
	Token     string // Стабильный непрозрачный идентификатор (uuid)
	AccountID string // Идентификатор внешней учётной записи, может быть пуст
}

// APIUser описывает клиента API. Запросы с изменением данных принимаются
// только с включённым api-ключом из этой таблицы.
type APIUser struct {
	ID      int
	Name    string // Описательное имя клиента
	APIKey  string // Ключ доступа (uuid)
	Enabled bool
}
