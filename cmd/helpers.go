package cmd

import (
	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/logging"
	"github.com/firefly-engineering/onyx/internal/store"
)

// paths returns the default paths configuration.
// This is a helper to reduce repetition in commands.
func paths() *config.Paths {
	return app.Default.Paths
}

// imageStore returns the application's image store.
func imageStore() *store.Store {
	return app.Default.Store
}

// imageRoot resolves a stored image or returns an ImageNotFound error.
func imageRoot(name string) (string, error) {
	return imageStore().Root(name)
}

// recordEvent appends an audit event. Audit failures never fail a command.
func recordEvent(event audit.Event) {
	if err := app.Default.Audit.Log(event); err != nil {
		logging.Warn("failed to write audit event", "image", event.Image, "type", event.Type, "error", err)
	}
}
