package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr      string `envconfig:"addr" default:":8080"`
	DBDSN     string `envconfig:"db_dsn" required:"true"`
	RedisAddr string `envconfig:"redis_addr" default:"localhost:6379"`
	JWTSecret string `envconfig:"jwt_secret" required:"true"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if os.Getenv("BOOKSWAP_ENV") != "production" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load .env file: %v", err)
		}
	}

	c := &Config{}
	if err := envconfig.Process("bookswap", c); err != nil {
		return nil, err
	}
	return c, nil
}
