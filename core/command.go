package core

import (
	"errors"
	"sync"
)

var (
	ErrUnknownCommand = errors.New("core: unknown command")
	ErrUnknownOID     = errors.New("core: object not configured")
	ErrShutdown       = errors.New("core: firmware is shut down")
)

// CommandHandler decodes its own arguments from the front of *data.
type CommandHandler func(data *[]byte) error

// Command is one dictionary entry. Responses (MCU to host) have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "unit=%c value=%hu"
	Handler CommandHandler
}

// CommandRegistry assigns IDs in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
}

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand adds a command to the global registry, like DECL_COMMAND.
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds a response message to the global registry.
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command and returns its ID. Registering a name twice
// returns the first ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.nameToID[name] = id
	return id
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for cmdID. A response ID sent as a command is
// unknown.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// Each calls fn for every entry in ID order.
func (r *CommandRegistry) Each(fn func(c *Command)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		fn(c)
	}
}

// DispatchCommand dispatches through the global registry. It has the
// signature of protocol.CommandHandler.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
