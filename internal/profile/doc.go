// Package profile resolves, applies and ranks resource profiles.
//
// Profiles live as TOML records under <store>/profiles:
//
//	name = "light"
//	description = "for small boxes"
//	nice = 5
//
//	[memory]
//	type = "percent"   # unlimited | percent (value) | fixed (mb)
//	value = 30
//
//	[cpu]
//	cores = 2
//
// Resolution is explicit name, then the current-profile pointer, then the
// synthetic backup profile. Callers resolve first and pass the result to
// Apply, which never fails: limits that cannot be set come back as
// LimitWarning values.
package profile
