package core

import (
	"errors"
	"sync"
)

var ErrUnknownCommand = errors.New("unknown command")

type unknownCommandError uint16

func (e unknownCommandError) Error() string {
	return ErrUnknownCommand.Error() + " " + Itoa(int(e))
}

func (e unknownCommandError) Unwrap() error {
	return ErrUnknownCommand
}

// CommandHandler decodes its own arguments from data and runs the command.
// A nil handler marks a response: a message only the target sends.
type CommandHandler func(data *[]byte) error

// Command is one entry of the command table.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument list, e.g. "order=%c addr=%u"
	Handler CommandHandler
}

// CommandRegistry assigns IDs in registration order. Host and target build
// their tables from the same declaration list, so the IDs agree without
// being exchanged; the dictionary text lets either side verify that.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	nextID   uint16
	dict     string
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command, or returns the existing ID if name is taken.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: handler}
	r.nameToID[name] = id

	line := name
	if format != "" {
		line += " " + format
	}
	r.dict += line + "\n"
	return id
}

// RegisterResponse adds a target-to-host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// SetHandler attaches handler to an already declared command.
func (r *CommandRegistry) SetHandler(name string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.nameToID[name]
	if !ok {
		return errors.New("unknown command: " + name)
	}
	r.commands[id].Handler = handler
	return nil
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Lookup returns the ID of name.
func (r *CommandRegistry) Lookup(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// MustLookup is Lookup for names the caller declared itself.
func (r *CommandRegistry) MustLookup(name string) uint16 {
	id, ok := r.Lookup(name)
	if !ok {
		panic("core: command " + name + " not declared")
	}
	return id
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return unknownCommandError(cmdID)
	}
	return cmd.Handler(data)
}

// Dictionary returns one "name format" line per command in ID order.
func (r *CommandRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dict
}
