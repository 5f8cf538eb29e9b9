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
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	VNPay    VNPayConfig
	AWS      AWSConfig
	Mail     MailConfig
	Log      LogConfig
	Admin    AdminConfig
	Orders   OrdersConfig
}

type ServerConfig struct {
	Port           string
	RunLocal       bool
	AllowedOrigins []string
	GinMode        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type DatabaseConfig struct {
	Path string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	APIURL     string
	ReturnURL  string
	Timeout    time.Duration
}

type AWSConfig struct {
	Region              string
	OrderEventsQueueURL string
	ResetChallengeTable string
	MetricsNamespace    string
	DeliveryTable       string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// AdminConfig describes the account created on first start. Empty username
// skips the bootstrap.
type AdminConfig struct {
	Username string
	Password string
	Email    string
}

type OrdersConfig struct {
	IdempotencyTTL time.Duration
	PurgeInterval  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtTTL, err := getDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	vnpTimeout, err := getDuration("VNP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idemTTL, err := getDuration("IDEMPOTENCY_TTL", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	purgeEvery, err := getDuration("IDEMPOTENCY_PURGE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, errors.New("SMTP_PORT must be a number")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RunLocal:       getEnv("RUN_LOCAL", "false") == "true",
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			GinMode:        getEnv("GIN_MODE", "release"),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: getEnv("SQLITE_PATH", "food.db"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    jwtTTL,
		},
		VNPay: VNPayConfig{
			TmnCode:    getEnv("VNP_TMN_CODE", ""),
			HashSecret: getEnv("VNP_HASH_SECRET", ""),
			PayURL:     getEnv("VNP_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			APIURL:     getEnv("VNP_API_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),
			ReturnURL:  getEnv("VNP_RETURN_URL", ""),
			Timeout:    vnpTimeout,
		},
		AWS: AWSConfig{
			Region:              getEnv("AWS_REGION", "us-east-1"),
			OrderEventsQueueURL: getEnv("ORDER_EVENTS_QUEUE_URL", ""),
			ResetChallengeTable: getEnv("RESET_CHALLENGE_TABLE", ""),
			MetricsNamespace:    getEnv("METRICS_NAMESPACE", ""),
			DeliveryTable:       getEnv("DELIVERY_TABLE", ""),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     smtpPort,
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "no-reply@foodorder.local"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
		},
		Orders: OrdersConfig{
			IdempotencyTTL: idemTTL,
			PurgeInterval:  purgeEvery,
		},
	}
	return cfg, nil
}

// Validate reports settings the API cannot start without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Admin.Username != "" && (len(c.Admin.Password) < 8 || c.Admin.Email == "") {
		return errors.New("ADMIN_PASSWORD (8+ characters) and ADMIN_EMAIL are required with ADMIN_USERNAME")
	}
	v := c.VNPay
	if v.TmnCode != "" || v.HashSecret != "" {
		if v.TmnCode == "" || v.HashSecret == "" || v.ReturnURL == "" {
			return errors.New("VNP_TMN_CODE, VNP_HASH_SECRET and VNP_RETURN_URL must be set together")
		}
	}
	return nil
}

// PaymentsEnabled reports whether the VNPay section is configured.
func (c *Config) PaymentsEnabled() bool {
	return c.VNPay.TmnCode != "" && c.VNPay.HashSecret != ""
}

// AWSEnabled reports whether any AWS-backed integration is configured.
func (c *Config) AWSEnabled() bool {
	return c.AWS.OrderEventsQueueURL != "" || c.AWS.ResetChallengeTable != "" || c.AWS.MetricsNamespace != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New(key + " must be a duration such as 10s or 24h")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
