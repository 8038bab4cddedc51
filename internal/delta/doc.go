// Package delta merges a user's accumulated session writes back into a
// base image.
//
// A delta lives at <store>/delta/<uid>/<image>/{upper,work,merged}. Commit
// walks upper twice. The first pass applies whiteouts (a 0/0 character
// device or a .wh.<name> file) and opaque markers by deleting from the
// base. The second pass copies directories, regular files and symlinks,
// comparing file content by BLAKE3 digest rather than trusting mtimes.
// Whiteout markers themselves are never copied.
//
// Commit is irreversible and asks for confirmation first; only "y" or "Y"
// proceeds.
package delta
