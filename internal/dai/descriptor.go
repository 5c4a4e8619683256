package dai

import "restobject/internal/future"

// Reserved names and command types.
const (
	NameThen  = "then"
	NameCatch = "catch"

	// CommandDestroy is sent when a resolved reference is destroyed.
	CommandDestroy = "::destroy.resource"
)

// Structural commands. Navigate, Assign and Invoke are required when a
// handler table runs in structural mode.
const (
	CommandNavigate = "navigate"
	CommandAssign   = "assign"
	CommandInvoke   = "invoke"
	CommandRemove   = "remove"
)

// StructuralCommands lists the structural command types in their canonical order.
var StructuralCommands = []string{CommandNavigate, CommandAssign, CommandInvoke, CommandRemove}

var requiredStructural = []string{CommandNavigate, CommandAssign, CommandInvoke}

// Package is the unit dispatched to a handler.
type Package struct {
	Type string `json:"type" cbor:"type"`
	// Command is the argument the command was invoked with, e.g. a property key.
	Command string `json:"cmd,omitempty" cbor:"cmd"`
	Value   any    `json:"value,omitempty" cbor:"value"`
	Target  string `json:"target,omitempty" cbor:"target"`
}

// HandlerFunc executes a command against parent and must eventually settle
// deferred. child is the reference standing for the result, nil for the
// destroy command.
type HandlerFunc func(parent *Reference, pack *Package, deferred *future.Deferred, child *Reference)

// TemporaryFunc decides, once a command has produced value, whether the
// child reference should be destroyed right after it resolves.
type TemporaryFunc func(parent, child *Reference, pack *Package, value any) bool

// Descriptor binds a command name to its handler and policy.
type Descriptor struct {
	name        string
	commandType string
	handle      HandlerFunc
	temporary   TemporaryFunc
	cacheable   bool
}

type DescriptorOption func(*Descriptor)

// WithName sets the member name; it defaults to the command type.
func WithName(name string) DescriptorOption {
	return func(d *Descriptor) { d.name = name }
}

func WithTemporary(fn TemporaryFunc) DescriptorOption {
	return func(d *Descriptor) { d.temporary = fn }
}

// Cacheable lets the factory reuse references for identical packages.
func Cacheable() DescriptorOption {
	return func(d *Descriptor) { d.cacheable = true }
}

func NewDescriptor(commandType string, handle HandlerFunc, opts ...DescriptorOption) *Descriptor {
	d := &Descriptor{name: commandType, commandType: commandType, handle: handle}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Descriptor) Name() string    { return d.name }
func (d *Descriptor) Type() string    { return d.commandType }
func (d *Descriptor) Cacheable() bool { return d.cacheable }

// IsTemporary applies the temporary predicate; false when none is set.
func (d *Descriptor) IsTemporary(parent, child *Reference, pack *Package, value any) bool {
	if d.temporary == nil {
		return false
	}
	return d.temporary(parent, child, pack, value)
}
