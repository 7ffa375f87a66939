package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewStorefrontHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	JWTSecret     string
	SessionSecret string
	FrontendURL   string
	CookieSecure  bool
	UploadDir     string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	VNPay     VNPayConfig
	Redis     RedisConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	URL        string
	ReturnURL  string
	IPNURL     string
	// AllowUnsignedConfirm enables the frontend confirmation endpoint that
	// trusts client-supplied response codes.
	AllowUnsignedConfirm bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type RateLimitConfig struct {
	LoginRate  float64
	LoginBurst int
	OTPRate    float64
	OTPBurst   int
	LockTTLSec int
}

type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("COOKIE_SECURE", false)
	}

	return Config{
		AppName:       getenv("APP_SERVICE", "qatech"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   environment,
		HTTPAddr:      getenv("HTTP_ADDR", ":5000"),
		JWTSecret:     strings.TrimSpace(getenv("JWT_SECRET", "")),
		SessionSecret: strings.TrimSpace(getenv("SESSION_SECRET", "")),
		FrontendURL:   strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/"),
		CookieSecure:  cookieSecure,
		UploadDir:     getenv("UPLOAD_DIR", "uploads"),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "qatech"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		VNPay: VNPayConfig{
			TmnCode:              strings.TrimSpace(getenv("VNP_TMN_CODE", "")),
			HashSecret:           strings.TrimSpace(getenv("VNP_HASH_SECRET", "")),
			URL:                  getenv("VNP_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			ReturnURL:            getenv("VNP_RETURN_URL", "http://localhost:5000/api/payments/vnpay-return"),
			IPNURL:               getenv("VNP_IPN_URL", "http://localhost:5000/api/payments/vnpay-ipn"),
			AllowUnsignedConfirm: getenvBool("VNP_ALLOW_UNSIGNED_CONFIRM", false),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@qatech.vn"),
		},
		RateLimit: RateLimitConfig{
			LoginRate:  getenvFloat("RATE_LIMIT_LOGIN_RATE", 0.2),
			LoginBurst: getenvInt("RATE_LIMIT_LOGIN_BURST", 5),
			OTPRate:    getenvFloat("RATE_LIMIT_OTP_RATE", 0.02),
			OTPBurst:   getenvInt("RATE_LIMIT_OTP_BURST", 3),
			LockTTLSec: getenvInt("RATE_LIMIT_LOCK_TTL_SECONDS", 10),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    strings.ToLower(strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", ""))),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
			AdminName:     getenv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
