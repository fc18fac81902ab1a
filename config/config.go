package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	Mpesa    MpesaConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ServerURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type SMTPConfig struct {
	Addr      string
	Host      string
	FromEmail string
	Password  string
	// AdminEmail receives the new-order notification for every paid order.
	AdminEmail string
}

// MpesaConfig carries the Daraja credentials plus the callback surface this
// deployment exposes back to the gateway.
type MpesaConfig struct {
	Env                string // sandbox | production
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	Shortcode          string
	Passkey            string
	InitiatorName      string
	SecurityCredential string
	CallbackBaseURL    string
	// CallbackToken, when set, must match the ?token= query on every inbound
	// webhook. RegisterToken and ReconcileToken protect the administrative
	// endpoints via headers.
	CallbackToken  string
	RegisterToken  string
	ReconcileToken string
}

type CheckoutConfig struct {
	// StatusQueryGrace is how long a payment may sit pending before the
	// status endpoint actively queries the gateway, giving the webhook a
	// head start.
	StatusQueryGrace time.Duration
	OTPTTL           time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         env("PORT", "8080"),
			Env:          env("ENV", "development"),
			ServerURL:    env("SERVER_URL", "http://localhost:8080"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             env("DB_DSN", "root:@tcp(localhost:3306)/galactic?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  env("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: env("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "galacticelectricals",
		},
		SMTP: SMTPConfig{
			Addr:       env("SMTP_ADDRESS", ""),
			Host:       env("FROM_EMAIL_SMTP", ""),
			FromEmail:  env("FROM_EMAIL", ""),
			Password:   env("FROM_EMAIL_PASSWORD", ""),
			AdminEmail: env("TO_EMAIL", ""),
		},
		Mpesa:    loadMpesa(),
		Checkout: CheckoutConfig{StatusQueryGrace: 15 * time.Second, OTPTTL: 10 * time.Minute},
	}
}

func loadMpesa() MpesaConfig {
	mpesaEnv := env("MPESA_ENV", "sandbox")
	baseURL := os.Getenv("MPESA_BASE_URL")
	if baseURL == "" {
		baseURL = daraja.SandboxBaseURL
		if mpesaEnv == "production" {
			baseURL = daraja.ProductionBaseURL
		}
	}
	return MpesaConfig{
		Env:                mpesaEnv,
		BaseURL:            baseURL,
		ConsumerKey:        os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret:     os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:          os.Getenv("MPESA_SHORTCODE"),
		Passkey:            os.Getenv("MPESA_PASSKEY"),
		InitiatorName:      os.Getenv("MPESA_INITIATOR_NAME"),
		SecurityCredential: os.Getenv("MPESA_SECURITY_CREDENTIAL"),
		CallbackBaseURL:    env("MPESA_CALLBACK_BASE_URL", env("SERVER_URL", "")),
		CallbackToken:      os.Getenv("MPESA_CALLBACK_TOKEN"),
		RegisterToken:      os.Getenv("MPESA_REGISTER_TOKEN"),
		ReconcileToken:     os.Getenv("MPESA_RECONCILE_TOKEN"),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
