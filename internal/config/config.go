package config

import (
	"errors"
	"fmt"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"time"
)

// Config represents the application configuration structure
type Config struct {
	Production bool `envconfig:"PRODUCTION" default:"false"`

	EnvironmentName  string `envconfig:"ENVIRONMENT" required:"true"`
	EnvironmentsFile string `envconfig:"ENVIRONMENTS_FILE" default:"environments.yaml"`

	Port        int    `envconfig:"PORT" default:"8080"`
	TLSCertFile string `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE"`

	SessionLifetime     time.Duration `envconfig:"SESSION_LIFETIME" default:"24h"`
	SessionCookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"true"`

	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	PollTimeout        time.Duration `envconfig:"POLL_TIMEOUT" default:"2m"`
	MaxPollAttempts    int           `envconfig:"MAX_POLL_ATTEMPTS" default:"60"`
	PollErrorBudget    int           `envconfig:"POLL_ERROR_BUDGET" default:"0"`
	TransactionWorkers int           `envconfig:"TRANSACTION_WORKERS" default:"1"`

	// Environment is the entry of the environment table selected by EnvironmentName
	Environment *Environment `ignored:"true"`
}

// LoadFromEnv loads a new configuration structure using environment variables and an optional .env file.
// Afterwards the environment table is read and the entry selected by ENVIRONMENT is attached.
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	// Load a new configuration structure using environment variables
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}

	environments, err := LoadEnvironments(config.EnvironmentsFile)
	if err != nil {
		return nil, err
	}
	env, ok := environments[config.EnvironmentName]
	if !ok {
		return nil, fmt.Errorf("environment '%s' is not defined in %s", config.EnvironmentName, config.EnvironmentsFile)
	}
	config.Environment = env

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the process-level settings and the selected environment.
// All violations are reported at once.
func (config *Config) Validate() error {
	var retErr *multierror.Error
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		retErr = multierror.Append(retErr, errors.New("TLS_CERT_FILE and TLS_KEY_FILE have to be set together"))
	}
	if config.SessionLifetime <= 0 {
		retErr = multierror.Append(retErr, errors.New("SESSION_LIFETIME has to be positive"))
	}
	if config.PollInterval <= 0 || config.PollTimeout <= 0 {
		retErr = multierror.Append(retErr, errors.New("POLL_INTERVAL and POLL_TIMEOUT have to be positive"))
	}
	if config.MaxPollAttempts < 1 {
		retErr = multierror.Append(retErr, errors.New("MAX_POLL_ATTEMPTS has to be at least 1"))
	}
	if config.PollErrorBudget < 0 {
		retErr = multierror.Append(retErr, errors.New("POLL_ERROR_BUDGET must not be negative"))
	}
	if config.TransactionWorkers < 1 {
		retErr = multierror.Append(retErr, errors.New("TRANSACTION_WORKERS has to be at least 1"))
	}
	if config.Environment == nil {
		retErr = multierror.Append(retErr, errors.New("no environment selected"))
	} else if err := config.Environment.Validate(); err != nil {
		retErr = multierror.Append(retErr, fmt.Errorf("environment '%s': %w", config.EnvironmentName, err))
	}
	return retErr.ErrorOrNil()
}

// IsTLS returns whether the server should listen for HTTPS connections
func (config *Config) IsTLS() bool {
	return config.TLSCertFile != "" && config.TLSKeyFile != ""
}

// ListenAddress returns the address the HTTP server listens on
func (config *Config) ListenAddress() string {
	return fmt.Sprintf(":%d", config.Port)
}
