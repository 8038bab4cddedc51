// Package store manages the image store: named root filesystems kept
// under <store>/sys/<name>.
//
// Images are created by moving or copying a directory, or by unpacking a
// .tar or zstd-compressed tar archive. Mutations are recorded in the
// per-image audit log when one is configured.
package store
