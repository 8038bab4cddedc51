package system

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// osMounter implements Mounter with mount(2), umount2(2) and unshare(2).
type osMounter struct{}

func (m *osMounter) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (m *osMounter) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

func (m *osMounter) Unshare(flags int) error {
	// Never unlocked: the namespace belongs to this thread only.
	runtime.LockOSThread()
	return unix.Unshare(flags)
}
