// Package runtime runs a shell or command inside a stored image.
//
// Two strategies implement Strategy and Select picks one from the
// effective uid:
//   - Privileged: real root. Enters a private mount namespace (falling back
//     to marking the host mount tree private), builds a mount session over
//     the image and runs the shell through chroot.
//   - Unprivileged: any other user. Runs a shell chain in a new user and
//     mount namespace that mounts fuse-overlayfs over the image and enters
//     it with proot. When the chain fails it retries once with proot
//     directly on the image, so writes land in the image.
//
// Every Result carries the Isolation reached. Degraded levels are
// reported so callers can warn and audit them.
//
// The sandboxed process gets a fixed environment (HOME, TERM, PATH) and
// its exit code is passed through untouched.
package runtime
