package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/internal/eligibility"
	"github.com/zatyrani/zatyrani-backend/internal/fees"
)

type Config struct {
	Port        string
	AppEnv      string
	BaseURL     string
	FrontendURL string
	CORSOrigins []string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// ✅ Redis Config (rate limiter store, code throttle)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ✅ NieboCross session token
	NieboCrossJWTSecret  string
	NieboCrossJWTTTLDays int

	// ✅ Member session
	MemberSessionTTLDays int

	// ✅ GitHub-hosted data files
	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string

	// ✅ Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// ✅ E-mail (SendGrid first, SMTP as fallback)
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	SMTPFromName      string
	SMTPFromEmail     string

	// ✅ Payments
	PaymentProvider    string
	SIBSAPIURL         string
	SIBSCheckoutURL    string
	SIBSTerminalID     string
	SIBSClientID       string
	SIBSAccessToken    string
	SIBSWebhookSecret  string
	RazorpayKey        string
	RazorpaySecret     string
	RazorpayWebhookKey string
	PaymentReturnURL   string

	// ✅ Kafka (optional async notifications)
	KafkaBrokers            []string
	KafkaNotificationsTopic string
	KafkaGroupID            string

	// ✅ Google Sheets export
	GoogleServiceAccountJSON string
	GoogleSpreadsheetID      string
	GoogleSheetName          string

	CronSecret string

	// ✅ NieboCross race settings
	EventDate          time.Time
	KidsPrice          float64
	AdultPrice         float64
	TshirtPrice        float64
	TshirtFeesEnabled  bool
	TshirtCharityRatio float64
	ExtraCharity       bool
	KidsLimit          int
	AdultRunnersLimit  int
	NordicWalkingLimit int
	TestEmails         []string
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file, using environment variables")
	}

	eventDate, err := time.ParseInLocation("2006-01-02", getEnv("NIEBOCROSS_EVENT_DATE", "2026-04-12"), warsaw())
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Invalid NIEBOCROSS_EVENT_DATE, falling back to 2026-04-12")
		eventDate = time.Date(2026, time.April, 12, 0, 0, 0, 0, warsaw())
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "https://zatyrani.pl"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "https://zatyrani.pl,http://localhost:4321")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBSSLMode:   getEnv("DB_SSLMODE", "require"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		NieboCrossJWTSecret:  os.Getenv("NIEBOCROSS_JWT_SECRET"),
		NieboCrossJWTTTLDays: getInt("NIEBOCROSS_JWT_TTL_DAYS", 180),

		MemberSessionTTLDays: getInt("MEMBER_SESSION_TTL_DAYS", 60),

		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:  getEnv("GITHUB_OWNER", "derberg"),
		GitHubRepo:   getEnv("GITHUB_REPO", "zatyrani.pl"),
		GitHubBranch: getEnv("GITHUB_BRANCH", "main"),

		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),

		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "niebocross@zatyrani.pl"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "NieboCross - Zatyrani"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:      os.Getenv("SMTP_FROM_NAME"),
		SMTPFromEmail:     os.Getenv("SMTP_FROM_EMAIL"),

		PaymentProvider:    getEnv("PAYMENT_PROVIDER", "sibs"),
		SIBSAPIURL:         getEnv("SIBS_API_URL", "https://api.sibspayments.com"),
		SIBSCheckoutURL:    getEnv("SIBS_CHECKOUT_URL", "https://pay.sibs.com/transaction"),
		SIBSTerminalID:     os.Getenv("SIBS_TERMINAL_ID"),
		SIBSClientID:       os.Getenv("SIBS_CLIENT_ID"),
		SIBSAccessToken:    os.Getenv("SIBS_ACCESS_TOKEN"),
		SIBSWebhookSecret:  os.Getenv("SIBS_WEBHOOK_SECRET"),
		RazorpayKey:        os.Getenv("RAZORPAY_KEY_ID"),
		RazorpaySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookKey: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		PaymentReturnURL:   getEnv("PAYMENT_RETURN_URL", "https://zatyrani.pl/niebocross/panel"),

		KafkaBrokers:            splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaNotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "zatyrani.notifications"),
		KafkaGroupID:            getEnv("KAFKA_GROUP_ID", "zatyrani-notifier"),

		GoogleServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleSpreadsheetID:      os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"),
		GoogleSheetName:          getEnv("GOOGLE_SHEETS_SHEET_NAME", "Uczestnicy"),

		CronSecret: os.Getenv("CRON_SECRET"),

		EventDate:          eventDate,
		KidsPrice:          getFloat("NIEBOCROSS_KIDS_PRICE", 20),
		AdultPrice:         getFloat("NIEBOCROSS_ADULT_PRICE", 60),
		TshirtPrice:        getFloat("NIEBOCROSS_TSHIRT_PRICE", 80),
		TshirtFeesEnabled:  getBool("TSHIRT_FEES_ENABLED", true),
		TshirtCharityRatio: getFloat("TSHIRT_CHARITY_RATIO", fees.DefaultTshirtCharityRatio),
		ExtraCharity:       getBool("EXTRA_DONATION_COUNTS_AS_CHARITY", true),
		KidsLimit:          getInt("NIEBOCROSS_LIMIT_KIDS", 30),
		AdultRunnersLimit:  getInt("NIEBOCROSS_LIMIT_ADULT_RUNNERS", 150),
		NordicWalkingLimit: getInt("NIEBOCROSS_LIMIT_NORDIC_WALKING", 70),
		TestEmails:         splitList(getEnv("TEST_EMAILS", "derberg@wp.pl")),
	}
}

// IsProduction reports whether the service runs with production data.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// FeeSchedule builds the price table used by the fee calculator.
func (c *Config) FeeSchedule() fees.Schedule {
	return fees.Schedule{
		CategoryPrices: map[fees.Category]float64{
			fees.CategoryKidsRun: c.KidsPrice,
			fees.Category3kmRun:  c.AdultPrice,
			fees.Category3kmNW:   c.AdultPrice,
			fees.Category9kmRun:  c.AdultPrice,
			fees.Category9kmNW:   c.AdultPrice,
		},
		TshirtPrice:                  c.TshirtPrice,
		TshirtFeesEnabled:            c.TshirtFeesEnabled,
		TshirtCharityRatio:           c.TshirtCharityRatio,
		ExtraDonationCountsAsCharity: c.ExtraCharity,
	}
}

// RaceRules builds the eligibility rules for the configured race day.
func (c *Config) RaceRules() eligibility.Rules {
	return eligibility.Rules{
		EventDate: c.EventDate,
		Bands:     eligibility.DefaultBands(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
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

func warsaw() *time.Location {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		return time.UTC
	}
	return loc
}
