// Package app provides the application context for onyx.
// It allows dependency injection for testing.
package app

import (
	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/delta"
	"github.com/firefly-engineering/onyx/internal/diag"
	"github.com/firefly-engineering/onyx/internal/profile"
	"github.com/firefly-engineering/onyx/internal/runtime"
	"github.com/firefly-engineering/onyx/internal/store"
	"github.com/firefly-engineering/onyx/internal/system"
)

// App holds the application dependencies
type App struct {
	// Paths holds the store layout
	Paths *config.Paths

	// Store and Audit are derived from Paths
	Store *store.Store
	Audit *audit.Logger

	Mounter  system.Mounter
	Executor system.CommandExecutor
	Process  system.Process

	// Memory reports total physical memory for percentage profiles
	Memory diag.Memory
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithMounter sets a custom mounter
func WithMounter(m system.Mounter) Option {
	return func(a *App) {
		a.Mounter = m
	}
}

// WithExecutor sets a custom command executor
func WithExecutor(e system.CommandExecutor) Option {
	return func(a *App) {
		a.Executor = e
	}
}

// WithProcess sets a custom process identity
func WithProcess(p system.Process) Option {
	return func(a *App) {
		a.Process = p
	}
}

// WithMemory sets a custom memory source
func WithMemory(m diag.Memory) Option {
	return func(a *App) {
		a.Memory = m
	}
}

// New creates a new App with the given options.
// Unset collaborators use the real OS implementations.
func New(opts ...Option) *App {
	app := &App{
		Paths:    config.DefaultPaths(),
		Mounter:  system.DefaultMounter(),
		Executor: system.DefaultExecutor(),
		Process:  system.DefaultProcess(),
		Memory:   diag.NewHost(),
	}

	for _, opt := range opts {
		opt(app)
	}

	app.Audit = audit.NewLogger(app.Paths)
	app.Store = store.New(app.Paths, app.Audit)
	return app
}

// WithStore returns a copy of the app rooted at another store directory.
func (a *App) WithStore(dir string) *App {
	cp := *a
	cp.Paths = config.NewPaths(dir)
	cp.Audit = audit.NewLogger(cp.Paths)
	cp.Store = store.New(cp.Paths, cp.Audit)
	return &cp
}

// Strategy selects the execution strategy for the effective uid.
func (a *App) Strategy() runtime.Strategy {
	return runtime.Select(a.Process.Geteuid(), runtime.Deps{
		Paths:    a.Paths,
		Mounter:  a.Mounter,
		Executor: a.Executor,
	})
}

// Committer returns a delta committer confirming through prompt.
func (a *App) Committer(prompt delta.PromptFunc) *delta.Committer {
	return delta.NewCommitter(a.Paths, prompt)
}

// ResolveProfile loads the stored profiles and resolves explicit, then the
// current-profile pointer, then the backup profile.
func (a *App) ResolveProfile(explicit string) (profile.Resolved, error) {
	profiles, err := profile.Load(a.Paths.ProfilesDir)
	if err != nil {
		return profile.Resolved{}, err
	}
	current := profile.ReadCurrent(a.Paths.CurrentProfileFile)
	return profile.Resolve(explicit, current, profiles), nil
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
