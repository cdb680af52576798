package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvOrDefault returns the trimmed value of an environment variable or a default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envInt overrides *dst with the integer value of key when it is set.
// A value that does not parse is reported as a ConfigError instead of being ignored.
func envInt(key string, dst *int) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return ErrInvalidValue(key, value, "must be an integer")
	}
	*dst = parsed
	return nil
}

// envInt64 overrides *dst with the int64 value of key when it is set.
func envInt64(key string, dst *int64) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return ErrInvalidValue(key, value, "must be an integer")
	}
	*dst = parsed
	return nil
}

// envFloat overrides *dst with the float64 value of key when it is set.
func envFloat(key string, dst *float64) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return ErrInvalidValue(key, value, "must be a number")
	}
	*dst = parsed
	return nil
}

// envBool overrides *dst with the boolean value of key when it is set.
// Accepts case-insensitive true/1/yes/on and false/0/no/off.
func envBool(key string, dst *bool) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		*dst = true
	case "false", "0", "no", "off":
		*dst = false
	default:
		return ErrInvalidValue(key, value, "must be true or false")
	}
	return nil
}

// envString overrides *dst with the trimmed value of key when it is set.
func envString(key string, dst *string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

// envSeconds overrides *dst with key interpreted as a whole or fractional number of seconds.
// Values with a unit suffix ("500ms", "2m") are parsed with time.ParseDuration.
func envSeconds(key string, dst *time.Duration) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := parseSeconds(value)
	if err != nil {
		return ErrInvalidValue(key, value, "must be a number of seconds or a duration such as 90s")
	}
	*dst = parsed
	return nil
}

func parseSeconds(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}
