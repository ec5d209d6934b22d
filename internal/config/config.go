package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort                = "8080"
	defaultFrontendOrigin      = "http://localhost:3000"
	defaultDatabaseURL         = "file:research.db"
	defaultOpenRouterModel     = "google/gemini-2.0-flash-001"
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1"
	defaultDuneBaseURL         = "https://api.dune.com"
	defaultEtherscanBaseURL    = "https://api.etherscan.io/api"
	defaultCMCBaseURL          = "https://pro-api.coinmarketcap.com/v1"
	defaultLlamaBaseURL        = "https://api.llama.fi"
	defaultLlamaYieldsURL      = "https://yields.llama.fi"
	defaultLlamaStablecoinsURL = "https://stablecoins.llama.fi"
	defaultLlamaBridgesURL     = "https://bridges.llama.fi"
	defaultMaxSessions         = 100
	defaultSessionTimeoutHours = 24
	defaultToolTimeoutSecs     = 20
	defaultResearchTimeoutSecs = 120
)

type Config struct {
	Port                   string
	Environment            string
	FrontendOrigin         string
	AllowedOrigins         []string
	DatabaseURL            string
	DatabaseAuthToken      string
	DuneAPIKey             string
	DuneBaseURL            string
	EtherscanAPIKey        string
	EtherscanBaseURL       string
	CoinMarketCapAPIKey    string
	CoinMarketCapBaseURL   string
	LlamaBaseURL           string
	LlamaYieldsURL         string
	LlamaStablecoinsURL    string
	LlamaBridgesURL        string
	OpenRouterAPIKey       string
	OpenRouterBaseURL      string
	OpenRouterModel        string
	MaxSessions            int
	SessionTimeout         time.Duration
	ToolTimeout            time.Duration
	ResearchTimeoutSeconds int
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func Load() (Config, error) {
	cfg := Config{
		Port:                   envOrDefault("PORT", defaultPort),
		Environment:            envOrDefault("APP_ENV", "development"),
		FrontendOrigin:         envOrDefault("FRONTEND_ORIGIN", defaultFrontendOrigin),
		DatabaseURL:            envOrDefault("RESEARCH_DATABASE_URL", defaultDatabaseURL),
		DatabaseAuthToken:      strings.TrimSpace(os.Getenv("RESEARCH_DATABASE_AUTH_TOKEN")),
		DuneAPIKey:             strings.TrimSpace(os.Getenv("DUNE_API_KEY")),
		DuneBaseURL:            envOrDefault("DUNE_BASE_URL", defaultDuneBaseURL),
		EtherscanAPIKey:        strings.TrimSpace(os.Getenv("ETHERSCAN_API_KEY")),
		EtherscanBaseURL:       envOrDefault("ETHERSCAN_BASE_URL", defaultEtherscanBaseURL),
		CoinMarketCapAPIKey:    strings.TrimSpace(os.Getenv("COINMARKETCAP_API_KEY")),
		CoinMarketCapBaseURL:   envOrDefault("COINMARKETCAP_BASE_URL", defaultCMCBaseURL),
		LlamaBaseURL:           envOrDefault("DEFILLAMA_BASE_URL", defaultLlamaBaseURL),
		LlamaYieldsURL:         envOrDefault("DEFILLAMA_YIELDS_URL", defaultLlamaYieldsURL),
		LlamaStablecoinsURL:    envOrDefault("DEFILLAMA_STABLECOINS_URL", defaultLlamaStablecoinsURL),
		LlamaBridgesURL:        envOrDefault("DEFILLAMA_BRIDGES_URL", defaultLlamaBridgesURL),
		OpenRouterAPIKey:       strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL:      envOrDefault("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL),
		OpenRouterModel:        envOrDefault("OPENROUTER_MODEL", defaultOpenRouterModel),
		MaxSessions:            intOrDefault("SESSION_MAX_SESSIONS", defaultMaxSessions),
		ResearchTimeoutSeconds: intOrDefault("RESEARCH_TIMEOUT_SECONDS", defaultResearchTimeoutSecs),
	}

	sessionTimeoutHours := intOrDefault("SESSION_TIMEOUT_HOURS", defaultSessionTimeoutHours)
	cfg.SessionTimeout = time.Duration(sessionTimeoutHours) * time.Hour
	if cfg.SessionTimeout <= 0 {
		return Config{}, errors.New("SESSION_TIMEOUT_HOURS must be > 0")
	}

	toolTimeoutSecs := intOrDefault("RESEARCH_TOOL_TIMEOUT_SECONDS", defaultToolTimeoutSecs)
	cfg.ToolTimeout = time.Duration(toolTimeoutSecs) * time.Second
	if cfg.ToolTimeout <= 0 {
		return Config{}, errors.New("RESEARCH_TOOL_TIMEOUT_SECONDS must be > 0")
	}

	if cfg.MaxSessions <= 0 {
		return Config{}, errors.New("SESSION_MAX_SESSIONS must be > 0")
	}
	if cfg.ResearchTimeoutSeconds <= 0 {
		return Config{}, errors.New("RESEARCH_TIMEOUT_SECONDS must be > 0")
	}

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", cfg.FrontendOrigin+",http://localhost:5173"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	if strings.HasPrefix(cfg.DatabaseURL, "libsql://") && cfg.DatabaseAuthToken == "" {
		return Config{}, errors.New("RESEARCH_DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
