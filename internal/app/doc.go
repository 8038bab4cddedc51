// Package app provides the application context for onyx.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Paths    *config.Paths           // Store layout
//	    Store    *store.Store            // Image store
//	    Audit    *audit.Logger           // Per-image event log
//	    Mounter  system.Mounter          // Mount table and namespaces
//	    Executor system.CommandExecutor  // Child processes
//	    Process  system.Process          // Effective uid and gid
//	    Memory   diag.Memory             // Total physical memory
//	}
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	a := app.New()
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithPaths(config.NewPaths(t.TempDir())),
//	    app.WithMounter(system.NewMockMounter()),
//	    app.WithExecutor(system.NewMockExecutor()),
//	    app.WithProcess(system.NewMockProcess(0)),
//	    app.WithMemory(diag.Fixed(8192)),
//	)
//
// # Available Options
//
//	WithPaths(paths)      // Custom store layout
//	WithMounter(m)        // Custom mounter
//	WithExecutor(e)       // Custom command executor
//	WithProcess(p)        // Custom process identity
//	WithMemory(m)         // Custom memory source
package app
