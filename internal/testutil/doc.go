// Package testutil provides test fixtures and utilities.
//
// # Test Environment
//
// NewTestEnv builds a throw-away store under t.TempDir() and installs an
// app.App wired to the system mocks as app.Default, restoring the original
// when the test ends:
//
//	env := testutil.NewTestEnv(t).AsRoot()
//	env.InstallHelpers("chroot")
//	env.AddImage("alpine", map[string]string{"bin/sh": "elf"})
//	// run commands, then inspect env.Mounter.Calls and env.Executor.Commands
//
// # Fixtures
//
// Profile records are embedded using go:embed:
//
//	fixtures/balanced.toml
//	fixtures/tight.toml
//	fixtures/invalid_memory.toml
//
//	p, err := testutil.BalancedProfile()
//	all, err := testutil.ValidProfiles()
//	bad, err := testutil.InvalidProfile()
package testutil
