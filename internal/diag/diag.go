// Package diag queries host facts the session core depends on.
package diag

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Memory reports total physical memory.
type Memory interface {
	TotalPhysicalMemoryMB() (uint64, error)
}

// Host reads memory facts from the running kernel.
type Host struct {
	// ProcRoot is where meminfo is read from when sysinfo(2) fails. Empty means /proc.
	ProcRoot string

	sysinfo func(*unix.Sysinfo_t) error
}

// NewHost returns a Host backed by sysinfo(2) and /proc.
func NewHost() *Host {
	return &Host{sysinfo: unix.Sysinfo}
}

// TotalPhysicalMemoryMB returns total RAM in megabytes.
func (h *Host) TotalPhysicalMemoryMB() (uint64, error) {
	if h.sysinfo != nil {
		var info unix.Sysinfo_t
		if err := h.sysinfo(&info); err == nil && info.Totalram > 0 {
			unit := uint64(info.Unit)
			if unit == 0 {
				unit = 1
			}
			return uint64(info.Totalram) * unit / (1024 * 1024), nil
		}
	}
	return h.meminfoMB()
}

func (h *Host) meminfoMB() (uint64, error) {
	root := h.ProcRoot
	if root == "" {
		root = "/proc"
	}
	path := filepath.Join(root, "meminfo")
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid MemTotal %q: %w", fields[1], err)
		}
		return kb / 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("MemTotal not found in %s", path)
}

// Fixed is a Memory that always reports the same total. Used by tests.
type Fixed uint64

func (f Fixed) TotalPhysicalMemoryMB() (uint64, error) { return uint64(f), nil }
