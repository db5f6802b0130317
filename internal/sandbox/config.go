package sandbox

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

// Config holds the Docker-level knobs for sandbox containers. The training
// content (image, user, puzzle set) comes from the tutorial config; these are
// operational limits.
type Config struct {
	Memory      string        // Memory limit (e.g. "1g")
	CPU         string        // CPU limit (e.g. "2")
	StopTimeout time.Duration // Grace period before a stop turns into a kill
}

// DefaultConfig returns the default configuration based on environment variables.
func DefaultConfig() Config {
	stopTimeout := 2 * time.Second
	if timeoutStr := os.Getenv("SHELLCAMP_STOP_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			stopTimeout = d
		} else {
			log.Printf("WARNING: Invalid SHELLCAMP_STOP_TIMEOUT value '%s', using default 2s", timeoutStr)
		}
	}

	return Config{
		Memory:      getEnvOrDefault("SHELLCAMP_DOCKER_MEMORY", "1g"),
		CPU:         getEnvOrDefault("SHELLCAMP_DOCKER_CPU", "2"),
		StopTimeout: stopTimeout,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// memoryBytes parses the memory limit to bytes, defaulting to 1GB.
func (c Config) memoryBytes() int64 {
	if c.Memory == "" {
		return 1024 * 1024 * 1024
	}
	bytes, err := units.RAMInBytes(c.Memory)
	if err != nil || bytes <= 0 {
		log.Printf("WARNING: Invalid memory limit '%s', using default 1g", c.Memory)
		return 1024 * 1024 * 1024
	}
	return bytes
}

// nanoCPUs parses the CPU limit to Docker's nano-CPU unit, defaulting to 2.
func (c Config) nanoCPUs() int64 {
	if c.CPU == "" {
		return 2 * 1e9
	}
	value, err := strconv.ParseFloat(c.CPU, 64)
	if err != nil || value <= 0 {
		log.Printf("WARNING: Invalid CPU limit '%s', using default 2", c.CPU)
		return 2 * 1e9
	}
	return int64(value * 1e9)
}

// stopSeconds converts the stop timeout for the Docker API, which takes whole
// seconds.
func (c Config) stopSeconds() int {
	seconds := int(c.StopTimeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
