// shared/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// CommonConfig holds infrastructure details shared by every service.
type CommonConfig struct {
	//Database (PostgreSQL) config
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string
	DB_HOST     string
	DB_PORT     string
	DB_SSLMODE  string
	//Kafka config
	KAFKA_TOPIC    string
	KAFKA_BROKER   string // comma separated
	KAFKA_GROUP_ID string
	//RabbitMQ config
	RABBITMQ_USER     string
	RABBITMQ_PASSWORD string
	RABBITMQ_HOST     string
	RABBITMQ_PORT     string
}

// LoadCommonConfig returns the shared infrastructure config
func LoadCommonConfig() *CommonConfig {
	return &CommonConfig{
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     getEnv("DB_HOST", "localhost"),
		DB_PORT:     getEnv("DB_PORT", "5432"),
		DB_NAME:     os.Getenv("DB_NAME"),
		DB_SSLMODE:  getEnv("DB_SSLMODE", "disable"),

		KAFKA_TOPIC:    os.Getenv("KAFKA_TOPIC"),
		KAFKA_BROKER:   os.Getenv("KAFKA_BROKER"),
		KAFKA_GROUP_ID: os.Getenv("KAFKA_GROUP_ID"),

		RABBITMQ_USER:     os.Getenv("RABBITMQ_USER"),
		RABBITMQ_PASSWORD: os.Getenv("RABBITMQ_PASSWORD"),
		RABBITMQ_HOST:     os.Getenv("RABBITMQ_HOST"),
		RABBITMQ_PORT:     os.Getenv("RABBITMQ_PORT"),
	}
}

// GetDBURL formats the config into a PostgreSQL connection string.
// DATABASE_URL, when set, wins.
func (c *CommonConfig) GetDBURL() string {
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		return raw
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB_USER, c.DB_PASSWORD),
		Host:     c.DB_HOST + ":" + c.DB_PORT,
		Path:     "/" + c.DB_NAME,
		RawQuery: "sslmode=" + c.DB_SSLMODE,
	}
	return u.String()
}

// GetRabbitMQURL formats the config into a RabbitMQ connection string
func (c *CommonConfig) GetRabbitMQURL() string {
	//DEFAULTS STANDARD PORTS IF MISSING PREVENTS CRASHES
	host := c.RABBITMQ_HOST
	if host == "" {
		host = "localhost"
	}
	port := c.RABBITMQ_PORT
	if port == "" {
		port = "5672"
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		url.QueryEscape(c.RABBITMQ_USER), url.QueryEscape(c.RABBITMQ_PASSWORD), host, port)
}

// KafkaBrokers splits KAFKA_BROKER into addresses.
func (c *CommonConfig) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KAFKA_BROKER, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// RabbitMQEnabled reports whether a broker was configured at all.
func (c *CommonConfig) RabbitMQEnabled() bool {
	return c.RABBITMQ_HOST != "" || c.RABBITMQ_USER != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
