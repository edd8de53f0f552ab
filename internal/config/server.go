package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Port      string
	Seed      int64
	Locations []string
	// WebSocket configuration
	WSEnabled        bool
	WSStreamInterval time.Duration
	// Sequence numbering for broadcast frames
	StreamID string
}

func LoadServerConfig() (*ServerConfig, error) {
	// Parse stream interval for the push broadcaster
	wsIntervalStr := getEnvOrDefault("WS_STREAM_INTERVAL", "1s")
	wsInterval, err := time.ParseDuration(wsIntervalStr)
	if err != nil {
		wsInterval = time.Second // Default to 1s on parse error
	}

	seed := time.Now().UnixNano()
	if seedStr := os.Getenv("SEED"); seedStr != "" {
		parsed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED: %w", err)
		}
		seed = parsed
	}

	locations := DefaultLocations
	if locStr := os.Getenv("LOCATIONS"); locStr != "" {
		locations = nil
		for _, loc := range strings.Split(locStr, ",") {
			if trimmed := strings.TrimSpace(loc); trimmed != "" {
				locations = append(locations, trimmed)
			}
		}
	}

	// Get default stream ID from hostname
	streamID := getEnvOrDefault("STREAM_ID", "")
	if streamID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			streamID = hostname
		} else {
			streamID = "aq-faker"
		}
	}

	cfg := &ServerConfig{
		Port:             getEnvOrDefault("PORT", "8080"),
		Seed:             seed,
		Locations:        locations,
		WSEnabled:        getEnvOrDefault("WS_ENABLED", "true") == "true",
		WSStreamInterval: wsInterval,
		StreamID:         streamID,
	}

	if err := ValidateLocations(cfg.Locations); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
