package mount

import (
	"fmt"
	"strings"
)

// validateOverlayPath rejects paths that cannot be passed safely in an
// overlay option string.
func validateOverlayPath(path, field string) error {
	if path == "" {
		return fmt.Errorf("%s path is empty", field)
	}
	if strings.Contains(path, ",") {
		return fmt.Errorf("%s path %q contains a comma, which separates overlay options", field, path)
	}
	if strings.Contains(path, ":") {
		return fmt.Errorf("%s path %q contains a colon, which separates overlay lower layers", field, path)
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return fmt.Errorf("%s path %q contains invalid characters (null or newline)", field, path)
	}
	return nil
}

// OverlayOptions builds "lowerdir=…,upperdir=…,workdir=…" for both the
// kernel overlay and fuse-overlayfs.
func OverlayOptions(lower, upper, work string) (string, error) {
	for _, p := range []struct{ path, field string }{
		{lower, "lowerdir"},
		{upper, "upperdir"},
		{work, "workdir"},
	} {
		if err := validateOverlayPath(p.path, p.field); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lower, upper, work), nil
}
