// Package registry собирает хуки, админ-команды и системы кадра.
package registry

import (
	"errors"
	"expvar"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/annelo/ghosttag/internal/gameloop"
)

// HookType defines a named event hook
type HookType string

// Hook types fired by the client runtime.
const (
	// HookTagged: args are (taggerID string).
	HookTagged HookType = "tagged"
	// HookRoundReset: no args.
	HookRoundReset HookType = "round_reset"
	// HookPeerJoined: args are (peerID string).
	HookPeerJoined HookType = "peer_joined"
	// HookPeerLeft: args are (peerID, hostID string).
	HookPeerLeft HookType = "peer_left"
	// HookStateChanged: args are (from, to fmt.Stringer).
	HookStateChanged HookType = "state_changed"
)

var ErrUnknownCommand = errors.New("unknown command")

// HookFunc is the signature for hook handlers. args can be event-specific.
type HookFunc func(args ...interface{})

// CommandFunc is the signature for admin CLI command handlers.
type CommandFunc func(args []string) (string, error)

// CommandRegistration holds a single CLI command registration.
type CommandRegistration struct {
	Name        string
	Description string
	Handler     CommandFunc
}

var hooksFired = expvar.NewInt("hooks_fired")

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	systems  []gameloop.System
	commands []CommandRegistration
	hooks    map[HookType][]HookFunc

	coreSystemCount  int
	coreCommandCount int
	coreHooks        map[HookType][]HookFunc
}

func New() *Registry {
	return &Registry{hooks: make(map[HookType][]HookFunc)}
}

// RegisterGameSystem appends a frame system.
func (r *Registry) RegisterGameSystem(sys gameloop.System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systems = append(r.systems, sys)
}

// GameSystems returns the registered systems in registration order.
func (r *Registry) GameSystems() []gameloop.System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]gameloop.System(nil), r.systems...)
}

func (r *Registry) RegisterHook(hook HookType, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hook] = append(r.hooks[hook], fn)
}

func (r *Registry) Hooks(hook HookType) []HookFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HookFunc(nil), r.hooks[hook]...)
}

// Fire calls every handler of hook in registration order.
func (r *Registry) Fire(hook HookType, args ...interface{}) {
	for _, h := range r.Hooks(hook) {
		h(args...)
		hooksFired.Add(1)
	}
}

// RegisterCommand adds an admin command; a later registration with the same
// name replaces the earlier one.
func (r *Registry) RegisterCommand(name, description string, handler CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.commands {
		if c.Name == name {
			r.commands[i] = CommandRegistration{Name: name, Description: description, Handler: handler}
			return
		}
	}
	r.commands = append(r.commands, CommandRegistration{Name: name, Description: description, Handler: handler})
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []CommandRegistration {
	r.mu.RLock()
	out := append([]CommandRegistration(nil), r.commands...)
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunCommand parses a REPL line and runs the matching command. An empty line
// returns an empty result.
func (r *Registry) RunCommand(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	name, args := parts[0], parts[1:]
	r.mu.RLock()
	var handler CommandFunc
	for _, c := range r.commands {
		if c.Name == name {
			handler = c.Handler
			break
		}
	}
	r.mu.RUnlock()
	if handler == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return handler(args)
}

// Help lists commands one per line.
func (r *Registry) Help() string {
	var sb strings.Builder
	for _, cmd := range r.Commands() {
		sb.WriteString(fmt.Sprintf("%s - %s\n", cmd.Name, cmd.Description))
	}
	return sb.String()
}

// MarkCore marks the current registry state as the core, so later additions
// can be cleared.
func (r *Registry) MarkCore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coreSystemCount = len(r.systems)
	r.coreCommandCount = len(r.commands)
	r.coreHooks = make(map[HookType][]HookFunc, len(r.hooks))
	for k, v := range r.hooks {
		r.coreHooks[k] = append([]HookFunc{}, v...)
	}
}

// ClearExtensions removes all registrations added after the last MarkCore.
func (r *Registry) ClearExtensions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coreSystemCount <= len(r.systems) {
		r.systems = r.systems[:r.coreSystemCount]
	}
	if r.coreCommandCount <= len(r.commands) {
		r.commands = r.commands[:r.coreCommandCount]
	}
	r.hooks = make(map[HookType][]HookFunc, len(r.coreHooks))
	for k, v := range r.coreHooks {
		r.hooks[k] = append([]HookFunc{}, v...)
	}
}
