package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode     Mode
	Port     string
	LogLevel string

	// HTTP
	BasePath    string   // prefix for the chat routes
	APIKeys     []string // accepted X-API-Key values
	CORSOrigins []string
	AuthBackend string // "firebase" or "header"

	// GCP / Vertex
	GCPProjectID string
	GCPLocation  string
	VertexModel  string

	// OpenAI
	OpenAIAPIKey       string
	OpenAIOrganization string
	OpenAIModel        string

	// Upstage (OpenAI-compatible)
	UpstageAPIKey  string
	UpstageBaseURL string
	UpstageModel   string

	// Chat
	MaxOutputTokens int
	ChatBackend     domain.BackendName
	ChatLanguage    string
	ChatTemperature float64
	UseMockLLM      bool // true = mock backends even on GCP

	// Agent tools
	WikipediaURL string
	WebSearchURL string

	// Storage
	StorageBackend string // "memory" o "firestore"
	PlacesBackend  string // "memory" o "postgres"
	DatabaseURL    string

	// Events
	NatsURL   string
	NatsToken string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getListEnv splits a comma separated variable, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads a .env file when present, then all env vars, and builds the config.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	modeStr := getEnv("DOCENT_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	backend, err := domain.ParseBackendName(getEnv("DOCENT_CHAT_BACKEND", string(domain.BackendUpstage)))
	if err != nil {
		return nil, fmt.Errorf("config: DOCENT_CHAT_BACKEND: %w", err)
	}

	cfg := &Config{
		Mode:     mode,
		Port:     getEnv("DOCENT_PORT", "8080"),
		LogLevel: getEnv("DOCENT_LOG_LEVEL", "info"),

		BasePath:    strings.TrimRight(getEnv("DOCENT_HTTP_BASE_PATH", "/api/v1/chat"), "/"),
		APIKeys:     getListEnv("DOCENT_API_KEYS"),
		CORSOrigins: getListEnv("DOCENT_CORS_ORIGINS"),
		AuthBackend: getEnv("DOCENT_AUTH_BACKEND", defaultAuthBackend(mode)),

		GCPProjectID: getEnv("DOCENT_GCP_PROJECT", ""),
		GCPLocation:  getEnv("DOCENT_GCP_LOCATION", "us-central1"),
		VertexModel:  getEnv("DOCENT_VERTEX_MODEL", "gemini-2.5-flash"),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIOrganization: getEnv("OPENAI_ORGANIZATION_ID", ""),
		OpenAIModel:        getEnv("DOCENT_OPENAI_MODEL", "gpt-3.5-turbo"),

		UpstageAPIKey:  getEnv("UPSTAGE_API_KEY", ""),
		UpstageBaseURL: getEnv("DOCENT_UPSTAGE_BASE_URL", "https://api.upstage.ai/v1/solar"),
		UpstageModel:   getEnv("DOCENT_UPSTAGE_MODEL", "solar-1-mini-chat"),

		MaxOutputTokens: getIntEnv("DOCENT_MAX_OUTPUT_TOKENS", 2048),
		ChatBackend:     backend,
		ChatLanguage:    getEnv("DOCENT_CHAT_LANGUAGE", "English"),
		ChatTemperature: getFloatEnv("DOCENT_CHAT_TEMPERATURE", 0.3),
		UseMockLLM:      getBoolEnv("DOCENT_USE_MOCK_LLM", mode == ModeLocal),

		WikipediaURL: getEnv("DOCENT_WIKIPEDIA_URL", "https://en.wikipedia.org/w/api.php"),
		WebSearchURL: getEnv("DOCENT_WEB_SEARCH_URL", "https://api.duckduckgo.com/"),

		StorageBackend: getEnv("DOCENT_STORAGE_BACKEND", "memory"),
		PlacesBackend:  getEnv("DOCENT_PLACES_BACKEND", "memory"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		NatsURL:   getEnv("NATS_URL", ""),
		NatsToken: getEnv("NATS_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultAuthBackend(mode Mode) string {
	if mode == ModeGCP {
		return "firebase"
	}
	return "header"
}

// Warnings lists settings that are accepted but leave the API open. Only local
// mode can produce them, since Validate rejects them elsewhere.
func (c *Config) Warnings() []string {
	var out []string
	if len(c.APIKeys) == 0 {
		out = append(out, "DOCENT_API_KEYS is empty, the X-API-Key check is disabled")
	}
	if c.AuthBackend == "header" {
		out = append(out, "DOCENT_AUTH_BACKEND=header trusts the X-User-ID header for caller identity")
	}
	return out
}

// Validate checks the combinations that would only fail later at wiring time.
func (c *Config) Validate() error {
	var errs []error

	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		errs = append(errs, errors.New("DOCENT_GCP_PROJECT must be set in gcp mode"))
	}
	if (c.StorageBackend == "firestore" || c.AuthBackend == "firebase") && c.GCPProjectID == "" {
		errs = append(errs, errors.New("DOCENT_GCP_PROJECT is required for firestore storage and firebase auth"))
	}
	if c.PlacesBackend == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres places backend"))
	}
	if c.Mode != ModeLocal && len(c.APIKeys) == 0 {
		errs = append(errs, errors.New("DOCENT_API_KEYS must list at least one key outside local mode"))
	}
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("DOCENT_MAX_OUTPUT_TOKENS must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
