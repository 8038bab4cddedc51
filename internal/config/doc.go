// Package config resolves the onyx store layout and holds session constants.
//
// The store root comes from --store, then $ONYX_DIR, then /home/onyx:
//
//	<store>/sys/<name>/                      images
//	<store>/delta/<uid>/<name>/{upper,work,merged}
//	<store>/profiles/<name>.toml             resource profiles
//	<store>/current-profile                  active profile pointer
//	<store>/bin/                             proot, fuse-overlayfs overrides
//	<store>/audit/<name>.events.jsonl        per-image history
//
// Every path built from a user-supplied name is validated and resolved with
// securejoin so it stays beneath its parent directory.
package config
