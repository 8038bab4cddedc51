package system

import (
	"context"
	"errors"
	"sync"
)

// MockExecutor implements CommandExecutor for testing.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records all executed commands for verification.
	Commands []MockCommand

	// Responses maps command patterns to responses for Execute.
	// Key format: "command" or "command arg1".
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching response is found.
	DefaultResponse MockResponse

	// InteractiveErrs maps a command name to the error ExecuteInteractive returns.
	InteractiveErrs map[string]error

	// InteractiveErr is returned by ExecuteInteractive when no name matches.
	InteractiveErr error

	// OnInteractive, when set, runs for every ExecuteInteractive call
	// before it returns, standing in for the child.
	OnInteractive func(spec CommandSpec)

	// LimitErrs maps a limit name ("cpu", "nice" or "memory") to an error
	// reported through the command's Limits.OnError when that limit is set.
	LimitErrs map[string]error
}

// MockCommand records an executed command.
type MockCommand struct {
	Name          string
	Args          []string
	Env           []string
	UserNamespace *IDMap
	Limits        Limits
	Interactive   bool
}

// MockResponse defines the response for a command.
type MockResponse struct {
	Output []byte
	Err    error
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Commands:        make([]MockCommand, 0),
		Responses:       make(map[string]MockResponse),
		InteractiveErrs: make(map[string]error),
		LimitErrs:       make(map[string]error),
	}
}

// AddResponse adds a response for a specific command pattern.
func (m *MockExecutor) AddResponse(pattern string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = MockResponse{Output: output, Err: err}
}

// FailInteractive makes ExecuteInteractive of name exit with code.
func (m *MockExecutor) FailInteractive(name string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InteractiveErrs[name] = &ExitError{Name: name, Code: code}
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, MockCommand{Name: name, Args: args})

	key := name
	if len(args) > 0 {
		key = name + " " + args[0]
	}
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	if resp, ok := m.Responses[name]; ok {
		return resp.Output, resp.Err
	}
	return m.DefaultResponse.Output, m.DefaultResponse.Err
}

func (m *MockExecutor) ExecuteInteractive(ctx context.Context, spec CommandSpec) error {
	m.mu.Lock()
	m.Commands = append(m.Commands, MockCommand{
		Name:          spec.Name,
		Args:          spec.Args,
		Env:           spec.Env,
		UserNamespace: spec.UserNamespace,
		Limits:        spec.Limits,
		Interactive:   true,
	})

	l := spec.Limits
	var failed []string
	if l.Cores > 0 && m.LimitErrs["cpu"] != nil {
		failed = append(failed, "cpu")
	}
	if l.Nice != nil && m.LimitErrs["nice"] != nil {
		failed = append(failed, "nice")
	}
	if l.MemoryBytes > 0 && m.LimitErrs["memory"] != nil {
		failed = append(failed, "memory")
	}
	errs := make([]error, len(failed))
	for i, limit := range failed {
		errs[i] = m.LimitErrs[limit]
	}

	err, ok := m.InteractiveErrs[spec.Name]
	if !ok {
		err = m.InteractiveErr
	}
	hook := m.OnInteractive
	m.mu.Unlock()

	for i, limit := range failed {
		l.report(limit, errs[i])
	}
	if hook != nil {
		hook(spec)
	}
	return err
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return MockCommand{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

// InteractiveCommands returns only the commands run through ExecuteInteractive.
func (m *MockExecutor) InteractiveCommands() []MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCommand
	for _, c := range m.Commands {
		if c.Interactive {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears all recorded commands.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = make([]MockCommand, 0)
}

// MountCall records one Mounter call.
type MountCall struct {
	Op     string // "mount", "unmount" or "unshare"
	Source string
	Target string
	FSType string
	Flags  uintptr
	Data   string
}

// ErrInjected is returned by mocks when a failure is injected without an explicit error.
var ErrInjected = errors.New("mock: injected failure")

// MockMounter implements Mounter for testing.
type MockMounter struct {
	mu sync.Mutex

	// Calls records every call in order, failed ones included.
	Calls []MountCall

	// FailAt makes the Nth Mount call (1-based) fail. Zero disables.
	FailAt int
	// FailErr is returned by the failing Mount; defaults to ErrInjected.
	FailErr error

	UnmountErr error
	UnshareErr error

	// OnUnmount, when set, runs for every Unmount call before it returns.
	OnUnmount func(target string)

	mounts int
}

// NewMockMounter creates a new MockMounter.
func NewMockMounter() *MockMounter {
	return &MockMounter{}
}

func (m *MockMounter) Mount(source, target, fstype string, flags uintptr, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MountCall{Op: "mount", Source: source, Target: target, FSType: fstype, Flags: flags, Data: data})
	m.mounts++
	if m.FailAt > 0 && m.mounts == m.FailAt {
		if m.FailErr != nil {
			return m.FailErr
		}
		return ErrInjected
	}
	return nil
}

func (m *MockMounter) Unmount(target string, flags int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MountCall{Op: "unmount", Target: target, Flags: uintptr(flags)})
	if m.OnUnmount != nil {
		m.OnUnmount(target)
	}
	return m.UnmountErr
}

func (m *MockMounter) Unshare(flags int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MountCall{Op: "unshare", Flags: uintptr(flags)})
	return m.UnshareErr
}

// Unmounted returns the targets passed to Unmount, in call order.
func (m *MockMounter) Unmounted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		if c.Op == "unmount" {
			out = append(out, c.Target)
		}
	}
	return out
}

// Mounts returns the successful-or-not Mount calls, in call order.
func (m *MockMounter) Mounts() []MountCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MountCall
	for _, c := range m.Calls {
		if c.Op == "mount" {
			out = append(out, c)
		}
	}
	return out
}

// MockProcess implements Process for testing.
type MockProcess struct {
	Euid int
	Egid int
}

// NewMockProcess creates a MockProcess reporting the given effective uid.
func NewMockProcess(euid int) *MockProcess {
	return &MockProcess{Euid: euid, Egid: euid}
}

func (p *MockProcess) Geteuid() int { return p.Euid }
func (p *MockProcess) Getegid() int { return p.Egid }
