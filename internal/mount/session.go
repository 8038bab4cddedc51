package mount

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/logging"
	"github.com/firefly-engineering/onyx/internal/system"
)

// State tracks a session through construction and teardown.
type State int

const (
	StateUninitialized State = iota
	StateOverlayMounted
	StateKernelBindsMounted
	StateActive
	StateTearingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOverlayMounted:
		return "overlay-mounted"
	case StateKernelBindsMounted:
		return "kernel-binds-mounted"
	case StateActive:
		return "active"
	case StateTearingDown:
		return "tearing-down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Point is one established mount.
type Point struct {
	// Name is "overlay", "proc", "dev", "dev/pts" or "sys"
	Name   string
	Source string
	Target string
	FSType string
}

// Options configures a Session.
type Options struct {
	// Image is the base image root.
	Image string

	// Delta, when set, puts a writable overlay over Image and makes its
	// merged directory the session root.
	Delta *config.DeltaPaths

	// Logger defaults to the global logger.
	Logger *slog.Logger
}

// kernelMount describes one pseudo-filesystem under the session root.
type kernelMount struct {
	name   string
	source string
	fstype string
	flags  uintptr
	// followUp runs after the mount is recorded.
	followUp uintptr
}

var kernelMounts = []kernelMount{
	{name: "proc", source: "proc", fstype: "proc"},
	{name: "dev", source: "/dev", flags: unix.MS_BIND, followUp: unix.MS_SLAVE},
	{name: "dev/pts", source: "/dev/pts", flags: unix.MS_BIND},
	{name: "sys", source: "/sys", flags: unix.MS_BIND, followUp: unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY},
}

// Session owns the mounts of one privileged invocation. Create it before
// building and close it on every path:
//
//	s := mount.NewSession(m, opts)
//	defer s.Close()
//	if err := s.Build(); err != nil {
//	    return err
//	}
type Session struct {
	mounter system.Mounter
	opts    Options
	log     *slog.Logger

	mu     sync.Mutex
	state  State
	root   string
	mounts []Point
	built  bool
}

// NewSession returns an unbuilt session. Nothing is mounted yet.
func NewSession(m system.Mounter, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logging.Logger
	}
	root := opts.Image
	if opts.Delta != nil {
		root = opts.Delta.Merged
	}
	return &Session{
		mounter: m,
		opts:    opts,
		log:     log.With("component", "mount"),
		state:   StateUninitialized,
		root:    root,
	}
}

// Root is the directory to chroot into: the overlay merged dir or the image.
func (s *Session) Root() string {
	return s.root
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mounts returns a copy of the recorded mounts in establishment order.
func (s *Session) Mounts() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Point, len(s.mounts))
	copy(out, s.mounts)
	return out
}

// Build constructs the mount tree. On error, whatever was already
// established stays recorded and is released by Close.
func (s *Session) Build() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.built || s.state != StateUninitialized {
		return fmt.Errorf("mount session already built or closed (state %s)", s.state)
	}
	s.built = true

	if err := s.mounter.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return errors.MountError("make / rprivate", err)
	}

	if s.opts.Delta != nil {
		if err := s.mountOverlay(*s.opts.Delta); err != nil {
			return err
		}
		s.state = StateOverlayMounted
	}

	for _, km := range kernelMounts {
		if err := s.mountKernel(km); err != nil {
			return err
		}
	}
	s.state = StateKernelBindsMounted

	s.log.Debug("mount session active", "root", s.root, "mounts", len(s.mounts))
	s.state = StateActive
	return nil
}

func (s *Session) mountOverlay(d config.DeltaPaths) error {
	data, err := OverlayOptions(s.opts.Image, d.Upper, d.Work)
	if err != nil {
		return errors.MountError("overlay", err)
	}
	if err := d.Ensure(); err != nil {
		return errors.MountError("overlay", err)
	}
	if err := s.mounter.Mount("overlay", d.Merged, "overlay", 0, data); err != nil {
		return errors.MountError("overlay on "+d.Merged, err)
	}
	s.record(Point{Name: "overlay", Source: "overlay", Target: d.Merged, FSType: "overlay"})
	return nil
}

func (s *Session) mountKernel(km kernelMount) error {
	target := filepath.Join(s.root, km.name)
	if err := os.MkdirAll(target, 0755); err != nil {
		return errors.MountError("create "+km.name+" mountpoint", err)
	}

	if err := s.mounter.Mount(km.source, target, km.fstype, km.flags, ""); err != nil {
		return errors.MountError(km.name, err)
	}
	s.record(Point{Name: km.name, Source: km.source, Target: target, FSType: km.fstype})

	if km.followUp != 0 {
		if err := s.mounter.Mount("", target, "", km.followUp, ""); err != nil {
			return errors.MountError(km.name+" follow-up", err)
		}
	}
	return nil
}

func (s *Session) record(p Point) {
	s.mounts = append(s.mounts, p)
	s.log.Debug("mounted", "name", p.Name, "target", p.Target)
}

// Close releases every recorded mount in reverse order with a lazy detach,
// then removes the empty merged directory. It runs once; later calls are
// no-ops. Failures are logged and swallowed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTearingDown || s.state == StateClosed {
		return
	}
	s.state = StateTearingDown

	overlay := false
	for i := len(s.mounts) - 1; i >= 0; i-- {
		p := s.mounts[i]
		if p.Name == "overlay" {
			overlay = true
		}
		if err := s.mounter.Unmount(p.Target, unix.MNT_DETACH); err != nil {
			s.log.Debug("unmount failed", "target", p.Target, "error", err)
		}
	}

	if overlay && s.opts.Delta != nil {
		if err := os.Remove(s.opts.Delta.Merged); err != nil && !os.IsNotExist(err) {
			s.log.Debug("failed to remove merged directory", "path", s.opts.Delta.Merged, "error", err)
		}
	}

	s.state = StateClosed
}
