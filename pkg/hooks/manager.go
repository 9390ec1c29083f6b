package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Events a hook can subscribe to.
const (
	EventDaemonStartup   = "daemon:startup"
	EventDaemonShutdown  = "daemon:shutdown"
	EventResourceCreated = "resource:created"
	EventResourceDeleted = "resource:deleted"
)

// EnvPrefix prefixes every variable passed to a hook script.
const EnvPrefix = "RESTX_HOOK_"

// Hook is a shell script run when Event fires.
type Hook struct {
	ID      string
	Event   string
	Script  string
	Timeout time.Duration
}

// Config configures a hook Manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager runs the hooks registered for daemon and resource events. A nil
// *Manager does nothing.
type Manager struct {
	logger  zerolog.Logger
	byEvent map[string][]Hook
	pending sync.WaitGroup
}

// NewManager creates a hook manager. It returns nil, nil when hooks are
// disabled or none are configured.
func NewManager(cfg Config) (*Manager, error) {
	if !cfg.Enabled || len(cfg.Hooks) == 0 {
		return nil, nil
	}

	m := &Manager{
		logger:  cfg.Logger.With().Str("component", "hooks").Logger(),
		byEvent: make(map[string][]Hook),
	}
	for _, hook := range cfg.Hooks {
		event := strings.TrimSpace(hook.Event)
		if event == "" {
			return nil, fmt.Errorf("hook event is required")
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", event)
		}
		if hook.ID == "" {
			hook.ID = fmt.Sprintf("%s#%d", event, len(m.byEvent[event]))
		}
		m.byEvent[event] = append(m.byEvent[event], hook)
	}
	return m, nil
}

// Count returns the number of hooks registered for event
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	return len(m.byEvent[event])
}

// Trigger runs the hooks for event one after another and returns their
// joined errors.
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]any) error {
	if m == nil {
		return nil
	}
	hooks := m.byEvent[event]
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.run(ctx, event, hook, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fire runs the hooks for event in the background and logs failures.
// Request handlers use it so a slow script never delays a response.
func (m *Manager) Fire(event string, data map[string]any) {
	if m == nil || len(m.byEvent[event]) == 0 {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if err := m.Trigger(context.Background(), event, data); err != nil {
			m.logger.Warn().Err(err).Str("event", event).Msg("Hook failed")
		}
	}()
}

// Wait blocks until every hook started by Fire has finished
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.pending.Wait()
}

func (m *Manager) run(ctx context.Context, event string, hook Hook, data map[string]any) error {
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hook.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", hook.Script)
	cmd.Env = environment(event, data)

	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		if text != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hook.ID, err, text)
		}
		return fmt.Errorf("hook %s failed: %w", hook.ID, err)
	}

	m.logger.Debug().
		Str("event", event).
		Str("hook_id", hook.ID).
		Dur("duration", time.Since(start)).
		Str("output", text).
		Msg("Hook executed")
	return nil
}

func environment(event string, data map[string]any) []string {
	env := append(os.Environ(), EnvPrefix+"EVENT="+event)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, EnvPrefix+"DATA_"+envKey(key)+"="+fmt.Sprint(data[key]))
	}
	return env
}

func envKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		}
		return '_'
	}, key)
}
