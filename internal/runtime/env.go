package runtime

import (
	"os"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/onyx/internal/config"
)

// Environment builds the sandbox environment from scratch: fixed HOME and
// PATH and the caller's TERM. Dynamic linker variables never pass.
func Environment(term string) []string {
	if term == "" {
		term = config.DefaultTerm
	}
	env := []string{
		"HOME=" + config.SandboxHome,
		"TERM=" + term,
		"PATH=" + config.CanonicalPath,
	}
	return stripLinkerVars(env)
}

func stripLinkerVars(env []string) []string {
	out := env[:0]
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		stripped := false
		for _, s := range config.StrippedEnv {
			if key == s {
				stripped = true
				break
			}
		}
		if !stripped {
			out = append(out, kv)
		}
	}
	return out
}

// FindShell returns the first candidate shell present under root, as an
// absolute path inside the image, or the default shell.
func FindShell(root string) string {
	for _, candidate := range config.ShellCandidates {
		path, err := securejoin.SecureJoin(root, candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return "/" + candidate
		}
	}
	return config.DefaultShell
}

// JoinCommand turns argv into a -c script. A single argument is taken as
// a script verbatim; several are quoted and joined.
func JoinCommand(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return shellquote.Join(args...)
}

// shellArgs is the shell invocation: interactive, or -c script.
func shellArgs(shell string, command []string) []string {
	if len(command) == 0 {
		return []string{shell}
	}
	return []string{shell, "-c", JoinCommand(command)}
}
