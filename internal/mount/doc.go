// Package mount builds and tears down the mount tree of a privileged
// session.
//
// A Session is created over an image root, optionally with a per-user
// delta. Build marks / recursively private, mounts the overlay of the
// delta over the image when there is one, and then mounts proc, dev (made
// a slave), dev/pts and a read-only sys under the session root. Close
// detaches every recorded mount in reverse order and runs only once, so
// a failed Build is cleaned up by the same deferred Close.
//
// OverlayOptions builds the lowerdir/upperdir/workdir option string shared
// with the unprivileged fuse-overlayfs chain. It rejects paths containing
// ':' or ',' because neither can be escaped there.
package mount
