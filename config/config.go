package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	MongoURI string
	DBName   string
	Port     string

	JWTSecret    string
	JWTExpiresIn time.Duration

	SendGridAPIKey  string
	EmailFrom       string
	EmailFromName   string
	EmailRetryCount int
	FrontendURL     string

	SuperAdminUsername string
	SuperAdminPassword string
	SuperAdminEmail    string

	AdminCacheTTL time.Duration
	RedisAddr     string
	RedisDB       int

	AWSRegion     string
	AWSBucketName string

	CORSAllowedOrigin string
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	MongoURI = getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/"))
	DBName = getEnv("DB_NAME", "gait_speed")
	Port = getEnv("PORT", "3001")

	JWTSecret = os.Getenv("JWT_SECRET")
	JWTExpiresIn = getDurationEnv("JWT_EXPIRES_IN", 24*time.Hour)

	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	EmailFrom = getEnv("EMAIL_FROM", "no-reply@kneehow.health")
	EmailFromName = getEnv("EMAIL_FROM_NAME", "KneeHow健康")
	EmailRetryCount = getIntEnv("EMAIL_RETRY_COUNT", 3)
	FrontendURL = strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/")

	SuperAdminUsername = getEnv("SUPER_ADMIN_USERNAME", "admin")
	SuperAdminPassword = os.Getenv("SUPER_ADMIN_PASSWORD")
	SuperAdminEmail = getEnv("SUPER_ADMIN_EMAIL", "james@fujicare.com.tw")

	AdminCacheTTL = getDurationEnv("ADMIN_CACHE_TTL", 5*time.Minute)
	RedisAddr = os.Getenv("REDIS_ADDR")
	RedisDB = getIntEnv("REDIS_DB", 0)

	AWSRegion = os.Getenv("AWS_REGION")
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")

	CORSAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getDurationEnv accepts Go durations ("90m") and whole days ("7d").
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// ParseDuration extends time.ParseDuration with a "d" (day) suffix.
func ParseDuration(val string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(val)
}
