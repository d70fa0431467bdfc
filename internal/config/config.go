package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Letterhead holds the fixed texts printed on the check-request form.
type Letterhead struct {
	Company           string `yaml:"company"`
	TaxID             string `yaml:"tax_id"`
	Title             string `yaml:"title"`
	Beneficiary       string `yaml:"beneficiary"`
	BeneficiaryTaxID  string `yaml:"beneficiary_tax_id"`
	City              string `yaml:"city"`
	Country           string `yaml:"country"`
	Description       string `yaml:"description"`
	RequestedByLabel  string `yaml:"requested_by_label"`
	ApprovedByLabel   string `yaml:"approved_by_label"`
	ApprovedByTitle   string `yaml:"approved_by_title"`
	ControllerLabel   string `yaml:"controller_label"`
	ControllerTitle   string `yaml:"controller_title"`
	SpecialInstrLabel string `yaml:"special_instructions_label"`
}

// Config is the process configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`
	Store       string `yaml:"store"`
	Timezone    string `yaml:"timezone"`

	DailyRate         float64 `yaml:"daily_rate"`
	CardSoonDays      int     `yaml:"card_soon_days"`
	ReportSoonDays    int     `yaml:"report_soon_days"`
	ReportHorizonDays int     `yaml:"report_horizon_days"`

	LocalCurrency       string        `yaml:"local_currency"`
	ForeignCurrency     string        `yaml:"foreign_currency"`
	ExchangeRateURL     string        `yaml:"exchange_rate_url"`
	ExchangeRateTTL     time.Duration `yaml:"exchange_rate_ttl"`
	ExchangeRateTimeout time.Duration `yaml:"exchange_rate_timeout"`
	ReminderPhone       string        `yaml:"reminder_phone"`

	JWTSecret      string  `yaml:"jwt_secret"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Letterhead Letterhead `yaml:"letterhead"`
}

// DefaultLetterhead returns the hotel's check-request texts.
func DefaultLetterhead() Letterhead {
	return Letterhead{
		Company:           "HOTEL KARIBIK PLAYA CARDON C.A",
		TaxID:             "RIF J-00221700-6",
		Title:             "SOLICITUD DE CHEQUE",
		Beneficiary:       "SIMPLE TV",
		City:              "PORLAMAR",
		Country:           "VENEZUELA",
		Description:       "Pago de servicio SimpleTV, cuentas varias:",
		RequestedByLabel:  "SOLICITADO POR",
		ApprovedByLabel:   "APROBADO POR",
		ApprovedByTitle:   "Jefe de Departamento",
		ControllerLabel:   "APROBADO POR",
		ControllerTitle:   "Contralor General o Gerente General",
		SpecialInstrLabel: "INSTRUCCIONES ESPECIALES",
	}
}

// Load reads the environment and overlays the YAML file named by DECODER_LEDGER_CONFIG.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		Store:               strings.ToLower(getenvDefault("STORE", StorePostgres)),
		Timezone:            getenvDefault("TIMEZONE", "America/Caracas"),
		DailyRate:           getenvFloatDefault("DAILY_RATE", 0.8),
		CardSoonDays:        getenvIntDefault("CARD_SOON_DAYS", 5),
		ReportSoonDays:      getenvIntDefault("REPORT_SOON_DAYS", 7),
		ReportHorizonDays:   getenvIntDefault("REPORT_HORIZON_DAYS", 30),
		LocalCurrency:       getenvDefault("LOCAL_CURRENCY", "VES"),
		ForeignCurrency:     getenvDefault("FOREIGN_CURRENCY", "USD"),
		ExchangeRateURL:     getenvDefault("EXCHANGE_RATE_URL", ""),
		ExchangeRateTTL:     getenvDuration("EXCHANGE_RATE_TTL", time.Hour),
		ExchangeRateTimeout: getenvDuration("EXCHANGE_RATE_TIMEOUT", 10*time.Second),
		ReminderPhone:       getenvDefault("REMINDER_PHONE", ""),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		RateLimitRPS:        getenvFloatDefault("RATE_LIMIT_RPS", 10),
		RateLimitBurst:      getenvIntDefault("RATE_LIMIT_BURST", 20),
		LogLevel:            getenvDefault("LOG_LEVEL", "info"),
		LogFormat:           getenvDefault("LOG_FORMAT", "json"),
		Letterhead:          DefaultLetterhead(),
	}

	if path := os.Getenv("DECODER_LEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		cfg.Letterhead = mergeLetterhead(DefaultLetterhead(), cfg.Letterhead)
	}

	return cfg, cfg.Validate()
}

// Validate checks required keys and ranges.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required")
		}
	case StoreMemory:
	default:
		return errors.New("config: STORE must be postgres or memory")
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.DailyRate < 0 {
		return errors.New("config: DAILY_RATE must not be negative")
	}
	if c.CardSoonDays < 0 || c.ReportSoonDays < 0 || c.ReportHorizonDays < 0 {
		return errors.New("config: day thresholds must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("config: rate limit must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.New("config: unknown TIMEZONE " + c.Timezone)
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mergeLetterhead(base, override Letterhead) Letterhead {
	pick := func(dst *string, value string) {
		if strings.TrimSpace(value) != "" {
			*dst = value
		}
	}
	pick(&base.Company, override.Company)
	pick(&base.TaxID, override.TaxID)
	pick(&base.Title, override.Title)
	pick(&base.Beneficiary, override.Beneficiary)
	pick(&base.BeneficiaryTaxID, override.BeneficiaryTaxID)
	pick(&base.City, override.City)
	pick(&base.Country, override.Country)
	pick(&base.Description, override.Description)
	pick(&base.RequestedByLabel, override.RequestedByLabel)
	pick(&base.ApprovedByLabel, override.ApprovedByLabel)
	pick(&base.ApprovedByTitle, override.ApprovedByTitle)
	pick(&base.ControllerLabel, override.ControllerLabel)
	pick(&base.ControllerTitle, override.ControllerTitle)
	pick(&base.SpecialInstrLabel, override.SpecialInstrLabel)
	return base
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
