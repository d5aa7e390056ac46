package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"settlement-service/internal/db"
	"settlement-service/internal/gateway"
	"settlement-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server
	HTTPAddr    string
	Environment string

	// Redis
	Redis db.RedisConfig

	// Payment gateway
	Gateway       gateway.Config
	GatewayIPs    []string
	NotifyURL     string
	ClientBackURL string

	// Activation
	ActivationBaseURL string
	LoginURL          string
	// ChannelSecrets holds per-partner webhook credentials as
	// "channel:hashkey:hashiv", comma-separated.
	ChannelSecrets map[string][2]string

	// JWT
	JWT jwt.Config

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
	SMTPFromName string
	SMTPSecure   bool
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		Redis: db.RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},

		Gateway: gateway.Config{
			MerchantID:  getEnv("GATEWAY_MERCHANT_ID", ""),
			HashKey:     getEnv("GATEWAY_HASH_KEY", ""),
			HashIV:      getEnv("GATEWAY_HASH_IV", ""),
			CheckoutURL: getEnv("GATEWAY_CHECKOUT_URL", "https://payment-stage.example.com/Cashier/AioCheckOut/V5"),
			ActionURL:   getEnv("GATEWAY_ACTION_URL", "https://payment-stage.example.com/CreditDetail/DoAction"),
			InvoiceURL:  getEnv("GATEWAY_INVOICE_URL", ""),
			Timeout:     getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		GatewayIPs:    getEnvSlice("GATEWAY_ALLOWED_IPS", []string{}),
		NotifyURL:     getEnv("GATEWAY_NOTIFY_URL", ""),
		ClientBackURL: getEnv("GATEWAY_CLIENT_BACK_URL", ""),

		ActivationBaseURL: getEnv("ACTIVATION_BASE_URL", "http://localhost:8000/activate"),
		LoginURL:          getEnv("LOGIN_URL", "http://localhost:8000/login"),
		ChannelSecrets:    parseChannelSecrets(getEnv("CHANNEL_SECRETS", "")),

		JWT: jwt.Config{
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   getEnv("JWT_ISSUER", "settlement-service"),
			Audience: getEnv("JWT_AUDIENCE", "settlement-users"),
		},

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "465"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPass:     getEnv("SMTP_PASS", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Settlement Service"),
		SMTPSecure:   strings.ToLower(getEnv("SMTP_SECURE", "true")) == "true",
	}
}

// IsProduction reports whether the service runs with production safeguards.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// parseChannelSecrets splits "channel:hashkey:hashiv,channel2:..." into a map.
// Malformed entries are skipped rather than half-parsed.
func parseChannelSecrets(raw string) map[string][2]string {
	out := make(map[string][2]string)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			continue
		}
		out[parts[0]] = [2]string{parts[1], parts[2]}
	}
	return out
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
