package config

import (
	"os"
	"strings"
	"time"
)

// ServiceConfig holds configuration for a backend service
type ServiceConfig struct {
	Name        string
	BaseURL     string
	Instances   []string
	Timeout     time.Duration
	HealthCheck string
}

// GatewayConfig holds the main gateway configuration
type GatewayConfig struct {
	Port     string
	Services map[string]ServiceConfig
}

// LoadConfig loads the gateway configuration
func LoadConfig() *GatewayConfig {
	paymentInstances := splitURLs(getEnv("PAYMENT_SERVICE_URLS", getEnv("PAYMENT_SERVICE_URL", "http://localhost:8083")))

	return &GatewayConfig{
		Port: getEnv("GATEWAY_PORT", "8000"),
		Services: map[string]ServiceConfig{
			"payment": {
				Name:        "payment-service",
				BaseURL:     paymentInstances[0],
				Instances:   paymentInstances,
				Timeout:     30 * time.Second,
				HealthCheck: "/health",
			},
		},
	}
}

// splitURLs parses a comma-separated instance list.
func splitURLs(raw string) []string {
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if len(urls) == 0 {
		urls = []string{"http://localhost:8083"}
	}
	return urls
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
