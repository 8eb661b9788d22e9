package config

import (
	"log"
	"os"

	"github.com/slumworks/slumbank/src/shared/data"
	"gorm.io/gorm"
)

type Config struct {
	MySQLDSN  string
	RedisURL  string
	JWTSecret string
	Port      string
}

func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	jwtSecret := data.GetSetting("jwt_secret")
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			log.Fatal("JWT_SECRET not set in database or environment")
		}
	}

	return Config{
		MySQLDSN:  getenv("MYSQL_DSN", "slumbank:slumbank@tcp(127.0.0.1:3306)/slumbank"),
		RedisURL:  getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret: jwtSecret,
		Port:      getenv("PORT", "8080"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
