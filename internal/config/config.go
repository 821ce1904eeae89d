// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/spf13/viper"
)

const (
	// DefaultAPIURL is the kanban server's REST root.
	DefaultAPIURL = "http://127.0.0.1:9999/api"
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	eventsPath = "/api/events/stream"
)

// Config holds all configuration parameters for the application.
type Config struct {
	API     APIConfig
	Logging LoggingConfig
}

// APIConfig holds the kanban server endpoints.
type APIConfig struct {
	// URL is the REST root, e.g. http://127.0.0.1:9999/api
	URL string
	// EventsURL is the server-push stream endpoint
	EventsURL string
	// Timeout is applied by the HTTP transport to every request
	Timeout time.Duration
}

// LoggingConfig holds logging specific configuration.
type LoggingConfig struct {
	Level string
}

// Options carries explicit overrides, typically from command-line flags.
// Empty fields are ignored.
type Options struct {
	ConfigFile string
	APIURL     string
	LogLevel   string
}

// LoadConfig initializes and loads configuration from environment variables,
// an optional config file and explicit overrides, in increasing precedence.
func LoadConfig(opts Options) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("boardsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.url", DefaultAPIURL)
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("logging.level", "info")

	// Map environment variables whose names do not follow the key layout.
	// LOG_LEVEL is shared with the logging package and carries no prefix.
	bindings := map[string][]string{
		"api.events_url": {"BOARDSYNC_EVENTS_URL", "BOARDSYNC_API_EVENTS_URL"},
		"api.timeout":    {"BOARDSYNC_TIMEOUT", "BOARDSYNC_API_TIMEOUT"},
		"logging.level":  {"BOARDSYNC_LOG_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.APIURL != "" {
		v.Set("api.url", opts.APIURL)
	}
	if opts.LogLevel != "" {
		v.Set("logging.level", opts.LogLevel)
	}

	config := &Config{
		API: APIConfig{
			URL:       strings.TrimRight(v.GetString("api.url"), "/"),
			EventsURL: v.GetString("api.events_url"),
			Timeout:   v.GetDuration("api.timeout"),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(v.GetString("logging.level")),
		},
	}

	if config.API.EventsURL == "" {
		config.API.EventsURL = EventsURLFor(config.API.URL)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// EventsURLFor derives the push stream endpoint from a REST root by replacing
// a trailing /api with the stream path.
func EventsURLFor(apiURL string) string {
	base := strings.TrimSuffix(strings.TrimRight(apiURL, "/"), "/api")
	return base + eventsPath
}

// validateConfig ensures that all configuration values are usable.
func validateConfig(config *Config) error {
	var problems []string

	if err := validateURL(config.API.URL); err != nil {
		problems = append(problems, fmt.Sprintf("api url: %v", err))
	}
	if err := validateURL(config.API.EventsURL); err != nil {
		problems = append(problems, fmt.Sprintf("events url: %v", err))
	}
	if config.API.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("timeout must be positive, got %s", config.API.Timeout))
	}
	if _, err := logging.ParseLevel(config.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
