// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек сервиса.
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RabbitConnectionString  string `yaml:"rabbit_connection_string"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Vendor                  `yaml:"vendor"`
	Messages                `yaml:"messages"`
	Tasks                   `yaml:"tasks"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP    string        `yaml:"addresshttp"`
	TimeoutHTTP    time.Duration `yaml:"timeouthttp"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// Vendor структура с настройками внешнего ESP: адрес API, учётные данные
// и имена таблиц, в которых ESP хранит подписчиков.
type Vendor struct {
	APIURL            string        `yaml:"api_url"`
	APIUser           string        `yaml:"api_user"`
	APIPass           string        `yaml:"api_pass" env:"VENDOR_API_PASS"`
	Timeout           time.Duration `yaml:"timeout"`
	MasterTable       string        `yaml:"master_table"`
	OptinTable        string        `yaml:"optin_table"`
	ConfirmationTable string        `yaml:"confirmation_table"`
	SMSOptinTable     string        `yaml:"sms_optin_table"`
}

// Messages структура с идентификаторами шаблонов сообщений ESP
// и специальными vendor id, влияющими на выбор приветственных писем.
type Messages struct {
	ConfirmationID   string        `yaml:"confirmation_id"`
	RecoveryID       string        `yaml:"recovery_id"`
	AccountWelcomeID string        `yaml:"account_welcome_id"`
	DefaultLang      string        `yaml:"default_lang"`
	MobileOSVendorID string        `yaml:"mobile_os_vendor_id"`
	GeneralVendorID  string        `yaml:"general_vendor_id"`
	SMSTemplates     []string      `yaml:"sms_templates"`
	DenyListTTL      time.Duration `yaml:"deny_list_ttl"`
}

// Tasks структура с параметрами повторного выполнения асинхронных задач.
type Tasks struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// MustLoad функция для загрузки конфига, завершает процесс при любой ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Tasks.MaxAttempts == 0 {
		c.Tasks.MaxAttempts = 6
	}
	if c.Tasks.RetryDelay == 0 {
		c.Tasks.RetryDelay = 5 * time.Minute
	}
	if c.Messages.DefaultLang == "" {
		c.Messages.DefaultLang = "en"
	}
	if c.Messages.ConfirmationID == "" {
		c.Messages.ConfirmationID = "confirmation_email"
	}
	if c.Messages.RecoveryID == "" {
		c.Messages.RecoveryID = "recovery_message"
	}
	if c.Messages.AccountWelcomeID == "" {
		c.Messages.AccountWelcomeID = "account_welcome"
	}
	if c.Messages.DenyListTTL == 0 {
		c.Messages.DenyListTTL = 72 * time.Hour
	}
	if c.Vendor.Timeout == 0 {
		c.Vendor.Timeout = 10 * time.Second
	}
	if c.HTTPServer.RateLimitRPS == 0 {
		c.HTTPServer.RateLimitRPS = 50
	}
	if c.HTTPServer.RateLimitBurst == 0 {
		c.HTTPServer.RateLimitBurst = 100
	}
}
