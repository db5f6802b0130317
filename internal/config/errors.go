package config

import "fmt"

// ConfigError marks a tutorial definition the system refuses to run: schema
// violations, unreadable files, paths pointing nowhere.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid tutorial config %s: %s", e.Path, e.Message)
}

// NewConfigError creates a ConfigError for the given file.
func NewConfigError(path, message string) *ConfigError {
	return &ConfigError{Path: path, Message: message}
}
