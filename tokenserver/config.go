package tokenserver

import (
	"os"

	"github.com/joho/godotenv"
)

// Defaults for the session endpoint.
const (
	DefaultPort  = "3001"
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice = "verse"
)

// Config holds server settings read from the environment.
type Config struct {
	APIKey             string
	Port               string
	Model              string
	Voice              string
	BaseURL            string // optional API base override
	CORSAllowedOrigins string
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		APIKey:             os.Getenv("OPENAI_API_KEY"),
		Port:               getEnv("PORT", DefaultPort),
		Model:              getEnv("REALTIME_MODEL", DefaultModel),
		Voice:              getEnv("REALTIME_VOICE", DefaultVoice),
		BaseURL:            os.Getenv("OPENAI_BASE_URL"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
