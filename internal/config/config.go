package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	StoreDSN          string
	JWTIssuer         string
	JWTSecret         string
	JWTTTL            time.Duration
	CORSOrigins       []string
	WebSocketOrigin   string
	LogLevel          string
	LogPretty         bool
	MarketDataBaseURL string
	RefreshCron       string
	RateLimitRPS      float64
	RateLimitBurst    int
}

// Load reads the environment after merging a .env file from the working
// directory, if there is one. Variables already set win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.StoreDSN = os.Getenv("STORE_DSN")
	if c.StoreDSN == "" {
		missing = append(missing, "STORE_DSN")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	c.JWTIssuer = envOr("JWT_ISSUER", "notes-stocks")
	d, err := time.ParseDuration(envOr("JWT_TTL", "30m"))
	if err != nil {
		return c, errors.New("invalid JWT_TTL: " + err.Error())
	}
	if d <= 0 {
		return c, errors.New("invalid JWT_TTL: must be positive")
	}
	c.JWTTTL = d
	c.CORSOrigins = splitList(envOr("CORS_ORIGINS", "http://localhost:5173"))
	c.WebSocketOrigin = envOr("WS_ORIGIN", "*")
	c.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	if raw := os.Getenv("LOG_PRETTY"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return c, errors.New("invalid LOG_PRETTY")
		}
		c.LogPretty = b
	}
	c.MarketDataBaseURL = os.Getenv("MARKETDATA_BASE_URL")
	c.RefreshCron = strings.TrimSpace(os.Getenv("MARKETDATA_REFRESH_CRON"))
	rps, err := strconv.ParseFloat(envOr("RATE_LIMIT_RPS", "10"), 64)
	if err != nil || rps <= 0 {
		return c, errors.New("invalid RATE_LIMIT_RPS")
	}
	c.RateLimitRPS = rps
	burst, err := strconv.Atoi(envOr("RATE_LIMIT_BURST", "30"))
	if err != nil || burst < 1 {
		return c, errors.New("invalid RATE_LIMIT_BURST")
	}
	c.RateLimitBurst = burst
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
