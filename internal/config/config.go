// config.go
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	MongoDBName string
	AuthURL     string
	RabbitURL   string
	Port        string
	Environment string

	// Canal de actualizaciones en vivo.
	PushThrottle time.Duration
	PollInterval time.Duration

	// Vigencia de los códigos de verificación.
	VerifyCodeTTL time.Duration
}

func Load() *Config {
	// Cargamos .env si existe (se ignora el error si no está)
	if err := godotenv.Load(".env"); err == nil {
		log.Println("Configuración cargada desde .env")
	}

	return &Config{
		MongoURI:      getEnv("MONGO_URI", "mongodb://host.docker.internal:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "drivingschool_db"),
		AuthURL:       getEnv("AUTH_URL", "http://host.docker.internal:3000"),
		RabbitURL:     getEnv("RABBIT_URL", "amqp://host.docker.internal"),
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENV", "development"),
		PushThrottle:  getDuration("PUSH_THROTTLE", time.Second),
		PollInterval:  getDuration("POLL_INTERVAL", 30*time.Second),
		VerifyCodeTTL: getDuration("VERIFY_CODE_TTL", 10*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Valor inválido para %s, se usa el default %s", key, fallback)
	}
	return fallback
}
