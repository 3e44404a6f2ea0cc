package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	StoreBackendSheets = "sheets"
	StoreBackendMemory = "memory"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

// Enabled reports whether enough R2 settings are present to upload images.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != "" && r.PublicURL != ""
}

type Telegram struct {
	Token         string `validate:"required"`
	WebhookURL    string `validate:"omitempty,url"`
	WebhookSecret string
	ChannelID     string
	APIBaseURL    string `validate:"required,url"`
}

type Sheets struct {
	SpreadsheetID      string `validate:"required_if=Backend sheets"`
	ServiceAccountJSON string `validate:"required_if=Backend sheets"`
	SheetName          string `validate:"required"`
	Backend            string `validate:"oneof=sheets memory"`
}

type OpenAI struct {
	APIKey     string
	BaseURL    string `validate:"required,url"`
	TextModel  string `validate:"required"`
	PromptFile string
}

type Config struct {
	Port             string `validate:"required,numeric"`
	Telegram         Telegram
	Sheets           Sheets
	OpenAI           OpenAI
	ImageProviders   []string
	StabilityAPIKey  string
	R2               R2
	RedisURI         string `validate:"required_if=SessionStore redis"`
	SessionStore     string `validate:"oneof=memory redis"`
	SessionTTL       time.Duration
	PostgresURI      string
	ScheduleTimezone string `validate:"required"`
	ListLimit        int    `validate:"min=1,max=50"`
}

func LoadConfig() *Config {
	return &Config{
		Port: getEnv("PORT", "3000"),
		Telegram: Telegram{
			Token:         getEnv("TELEGRAM_TOKEN", ""),
			WebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			ChannelID:     getEnv("TELEGRAM_CHANNEL_ID", ""),
			APIBaseURL:    getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		},
		Sheets: Sheets{
			SpreadsheetID:      getEnv("GOOGLE_SHEETS_SPREADSHEET_ID", ""),
			ServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
			SheetName:          getEnv("SHEET_NAME", "posts"),
			Backend:            getEnv("STORE_BACKEND", StoreBackendSheets),
		},
		OpenAI: OpenAI{
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			TextModel:  getEnv("OPENAI_TEXT_MODEL", "gpt-4o-mini"),
			PromptFile: getEnv("GENERATION_PROMPT_FILE", ""),
		},
		ImageProviders:  splitList(getEnv("IMAGE_PROVIDERS", "openai:gpt-image-1,openai:dall-e-3,stability")),
		StabilityAPIKey: getEnv("STABILITY_API_KEY", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  strings.TrimRight(getEnv("R2_PUBLIC_URL", ""), "/"),
		},
		RedisURI:         getEnv("REDIS_URI", "localhost:6379"),
		SessionStore:     getEnv("SESSION_STORE", SessionStoreMemory),
		SessionTTL:       getDuration("SESSION_TTL", 30*time.Minute),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", "UTC"),
		ListLimit:        getInt("LIST_LIMIT", 10),
	}
}

var validate = validator.New()

// Validate reports the first configuration field that fails its rule.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			first := vErrs[0]
			return fmt.Errorf("config field %s failed rule %q", first.Namespace(), first.Tag())
		}
		return err
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		return fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the timezone used to read /schedule times.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
