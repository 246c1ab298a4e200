// Package config loads service settings from the environment and the receipt layout file
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	ServerPort string

	DBType     string
	DBPath     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	LogLevel  string
	LogFormat string

	PrinterConnectTimeout time.Duration
	PrinterProbeTimeout   time.Duration
	PrinterWriteTimeout   time.Duration
	SerialBaud            int

	JobHistorySize    int
	ReceiptLayoutFile string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "printbridge"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		ServerPort: getenv("SERVER_PORT", "12212"),

		DBType:     strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBPath:     getenv("DATABASE_PATH", "printbridge.db"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "printbridge"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		PrinterConnectTimeout: getenvDuration("PRINTER_CONNECT_TIMEOUT", 5*time.Second),
		PrinterProbeTimeout:   getenvDuration("PRINTER_PROBE_TIMEOUT", 2*time.Second),
		PrinterWriteTimeout:   getenvDuration("PRINTER_WRITE_TIMEOUT", 10*time.Second),
		SerialBaud:            getenvInt("PRINTER_SERIAL_BAUD", 9600),

		JobHistorySize:    getenvInt("JOB_HISTORY_SIZE", 200),
		ReceiptLayoutFile: strings.TrimSpace(getenv("RECEIPT_LAYOUT_FILE", "")),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("5s") or plain milliseconds ("5000")
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
