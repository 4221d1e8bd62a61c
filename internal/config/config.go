package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"fbrflow"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"fbrflow"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	FBR struct {
		// Endpoint is the invoice submission URL; BaseURL hosts the PDI
		// reference-data endpoints.
		Endpoint string        `envconfig:"FBR_ENDPOINT" default:"https://gw.fbr.gov.pk/di_data/v1/di/postinvoicedata_sb"`
		BaseURL  string        `envconfig:"FBR_BASE_URL" default:"https://gw.fbr.gov.pk"`
		Token    string        `envconfig:"FBR_TOKEN"`
		Timeout  time.Duration `envconfig:"FBR_TIMEOUT" default:"30s"`
	}

	// Seller is the registered business this instance submits for. It is
	// stamped onto imported invoices and used as the default seller party.
	Seller struct {
		NTNCNIC      string `envconfig:"SELLER_NTN_CNIC"`
		BusinessName string `envconfig:"SELLER_BUSINESS_NAME"`
		Province     string `envconfig:"SELLER_PROVINCE"`
		Address      string `envconfig:"SELLER_ADDRESS"`
	}

	Queue struct {
		BaseDelay   time.Duration `envconfig:"QUEUE_BASE_DELAY" default:"2s"`
		MaxDelay    time.Duration `envconfig:"QUEUE_MAX_DELAY" default:"5m"`
		MaxAttempts int           `envconfig:"QUEUE_MAX_ATTEMPTS" default:"5"`
	}

	Worker struct {
		PollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	}

	Auth struct {
		LoginID  string        `envconfig:"AUTH_LOGIN_ID"`
		Password string        `envconfig:"AUTH_PASSWORD"`
		Secret   string        `envconfig:"AUTH_SECRET"`
		TokenTTL time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"12h"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
