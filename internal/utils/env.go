package utils

import "os"

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// OverrideFromEnv replaces *dst with the value of key when that is non-empty.
func OverrideFromEnv(dst *string, key string) bool {
	if v := SafeEnv(key, ""); v != "" {
		*dst = v
		return true
	}
	return false
}
