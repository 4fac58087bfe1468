package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config agrupa toda la configuración del servicio, leída de env.
// cmd/api carga un .env opcional (godotenv) antes de llamar Load.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseDSN string

	AuthBaseURL string
	AuthAPIKey  string

	DirectoryBaseURL string
	DirectoryAPIKey  string

	// Ventana de atención de la clínica para la grilla de slots.
	ClinicOpenHour    int
	ClinicCloseHour   int
	ClinicSlotMinutes int
	ClinicTimezone    string

	HTTPTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DB_DSN", ""),

		AuthBaseURL: getEnv("AUTH_BASE_URL", ""),
		AuthAPIKey:  getEnv("AUTH_API_KEY", ""),

		DirectoryBaseURL: getEnv("DIRECTORY_BASE_URL", ""),
		DirectoryAPIKey:  getEnv("DIRECTORY_API_KEY", ""),

		ClinicOpenHour:    getEnvInt("CLINIC_OPEN_HOUR", 8),
		ClinicCloseHour:   getEnvInt("CLINIC_CLOSE_HOUR", 20),
		ClinicSlotMinutes: getEnvInt("CLINIC_SLOT_MINUTES", 30),
		ClinicTimezone:    getEnv("CLINIC_TIMEZONE", "UTC"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
	}
}

// Location resuelve la timezone de la clínica; cae a UTC si es inválida.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
