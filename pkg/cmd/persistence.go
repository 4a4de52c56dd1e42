// Package cmd provides common initialization for the command-line
// entrypoints.
package cmd

import (
	"fmt"
	"strings"

	"github.com/vividlab/canvasflow/pkg/persistence"
	"github.com/vividlab/canvasflow/pkg/persistence/file"
	"github.com/vividlab/canvasflow/pkg/persistence/redis"
)

func NewPersistence(databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "redis":
		p, err := redis.NewPersistence(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
