package log

import (
	"os"
	"strconv"
	"strings"
)

// Config controls the process-wide logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is console or json.
	Format string `yaml:"format"`
	// Output is stderr, stdout or file:/path/to/log.
	Output string `yaml:"output"`
	// AddSource adds file:line to every record.
	AddSource bool `yaml:"add_source"`
}

// NewConfigFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT and LOG_ADD_SOURCE.
func NewConfigFromEnv() *Config {
	return &Config{
		Level:     getEnvWithDefault("LOG_LEVEL", "info"),
		Format:    getEnvWithDefault("LOG_FORMAT", "console"),
		Output:    getEnvWithDefault("LOG_OUTPUT", "stderr"),
		AddSource: getEnvBool("LOG_ADD_SOURCE", false),
	}
}

// ApplyEnv overrides fields with any LOG_* variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		c.Output = v
	}
	c.AddSource = getEnvBool("LOG_ADD_SOURCE", c.AddSource)
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
