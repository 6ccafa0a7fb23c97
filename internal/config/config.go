package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the service needs. It is built once in
// main and handed to constructors; nothing reads the environment after Load.
type Config struct {
	MongoURI        string
	DBName          string
	Port            string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return Config{
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "todoapp"),
		Port:            getEnvOrDefault("PORT", "8080"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		JWTIssuer:       getEnvOrDefault("JWT_ISSUER", "todoapp"),
		JWTAudience:     getEnvOrDefault("JWT_AUDIENCE", "todoapp"),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 5, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 365, 24*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
