// Package tasknest composes the TaskNest client-side synchronization engine:
// board views, task group chats and direct conversations kept consistent
// between optimistic local edits, the realtime channel and REST responses.
package tasknest

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the engine's connection settings.
type Config struct {
	// BackendURL is the REST base URL, e.g. https://api.example.com.
	BackendURL string
	// ChannelURL is the websocket endpoint. When empty it is derived from
	// BackendURL by swapping the scheme and appending /ws.
	ChannelURL string
	// Bearer is an optional token attached to REST and channel requests.
	Bearer string
}

// ConfigFromEnv loads configuration from the environment, reading an
// optional .env file first. BACKEND_URL is required; CHANNEL_URL and
// BEARER_TOKEN are optional.
func ConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	cfg := Config{
		BackendURL: os.Getenv("BACKEND_URL"),
		ChannelURL: os.Getenv("CHANNEL_URL"),
		Bearer:     os.Getenv("BEARER_TOKEN"),
	}
	if cfg.BackendURL == "" {
		return Config{}, errors.New("BACKEND_URL must be set")
	}
	if cfg.ChannelURL == "" {
		cfg.ChannelURL = DeriveChannelURL(cfg.BackendURL)
	}
	return cfg, nil
}

// DeriveChannelURL maps a REST base URL to the conventional websocket
// endpoint on the same host.
func DeriveChannelURL(backendURL string) string {
	ws := backendURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimSuffix(ws, "/") + "/ws"
}
