// Package config loads engine configuration from the environment.
// A .env file is honored in development via godotenv (loaded by cmd).
package config

import (
	"github.com/kelseyhightower/envconfig"
)

// App is the full engine configuration.
type App struct {
	// Network
	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	// Storage
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./concierge.db"`

	// Pricing
	DefaultCurrency string `envconfig:"DEFAULT_CURRENCY" default:"USD"`

	// Messaging (optional; empty URL disables the publisher)
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"concierge.events"`
}

// Load reads configuration from the environment.
func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
