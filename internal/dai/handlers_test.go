package dai_test

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"restobject/internal/dai"
	"restobject/internal/future"
)

func noop(_ *dai.Reference, _ *dai.Package, d *future.Deferred, _ *dai.Reference) { d.Resolve(nil) }

func TestSetHandlersValidation(t *testing.T) {
	cases := []struct {
		name       string
		collection any
		structural bool
		want       error
	}{
		{
			name: "duplicate names",
			collection: []*dai.Descriptor{
				dai.NewDescriptor("read", noop),
				dai.NewDescriptor("get", noop, dai.WithName("read")),
			},
			want: dai.ErrDuplicateName,
		},
		{name: "then is reserved", collection: map[string]dai.HandlerFunc{"then": noop}, want: dai.ErrReservedName},
		{name: "catch is reserved", collection: map[string]dai.HandlerFunc{"catch": noop}, want: dai.ErrReservedName},
		{
			name:       "destroy command is reserved",
			collection: []*dai.Descriptor{dai.NewDescriptor(dai.CommandDestroy, noop, dai.WithName("drop"))},
			want:       dai.ErrReservedCommand,
		},
		{name: "nil handler", collection: map[string]dai.HandlerFunc{"read": nil}, want: dai.ErrInvalidHandlers},
		{name: "unsupported collection", collection: "read", want: dai.ErrInvalidHandlers},
		{
			name:       "structural requires navigate assign invoke",
			collection: map[string]dai.HandlerFunc{dai.CommandNavigate: noop, dai.CommandAssign: noop},
			structural: true,
			want:       dai.ErrMissingStructural,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := dai.NewHandlers(tc.collection, tc.structural); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFailedSetHandlersKeepsTable(t *testing.T) {
	h, err := dai.NewHandlers(map[string]dai.HandlerFunc{"read": noop, "update": noop}, false)
	if err != nil {
		t.Fatalf("new handlers: %v", err)
	}

	err = h.SetHandlers([]*dai.Descriptor{dai.NewDescriptor("create", noop), dai.NewDescriptor("then", noop)})
	if !errors.Is(err, dai.ErrReservedName) {
		t.Fatalf("expected ErrReservedName, got %v", err)
	}
	if got := h.Names(); !reflect.DeepEqual(got, []string{"read", "update"}) {
		t.Fatalf("table changed to %v", got)
	}
	if h.HasHandler("create") {
		t.Fatalf("partial table was installed")
	}
}

func TestHandlersLookup(t *testing.T) {
	h, err := dai.NewHandlers([]*dai.Descriptor{
		dai.NewDescriptor("update", noop),
		dai.NewDescriptor("read", noop, dai.Cacheable()),
	}, false)
	if err != nil {
		t.Fatalf("new handlers: %v", err)
	}

	if !h.Available() {
		t.Fatalf("handlers not available")
	}
	if got := h.Names(); !reflect.DeepEqual(got, []string{"update", "read"}) {
		t.Fatalf("expected declaration order, got %v", got)
	}
	if !h.Handler("read").Cacheable() {
		t.Fatalf("read not cacheable")
	}
	if h.Handler("missing") != nil {
		t.Fatalf("unknown command has a handler")
	}
	if h.Handler(dai.CommandDestroy) == nil {
		t.Fatalf("no default destroy handler")
	}
	if slices.Contains(h.Names(), dai.CommandDestroy) {
		t.Fatalf("destroy listed among command names")
	}

	empty, err := dai.NewHandlers(nil, false)
	if err != nil {
		t.Fatalf("new handlers: %v", err)
	}
	if empty.Available() {
		t.Fatalf("empty table reports available")
	}
}

func TestUndecoratedReferenceHasNoCommands(t *testing.T) {
	i, err := dai.New(nil)
	if err != nil {
		t.Fatalf("new interface: %v", err)
	}
	ref := i.Resolve(envelope("1"))
	if got := ref.Commands(); len(got) != 0 {
		t.Fatalf("expected no commands, got %v", got)
	}
	if _, err := ref.Call("read", "", nil).Wait(ctx(t)); !errors.Is(err, dai.ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestStructuralCommands(t *testing.T) {
	log := &transportLog{}
	h := log.handler(nil)
	var invoked []any
	i, err := dai.New(map[string]dai.HandlerFunc{
		dai.CommandNavigate: h,
		dai.CommandAssign:   h,
		dai.CommandInvoke: func(_ *dai.Reference, pack *dai.Package, d *future.Deferred, _ *dai.Reference) {
			invoked = pack.Value.([]any)
			d.Resolve(nil)
		},
	}, dai.WithStructural(true))
	if err != nil {
		t.Fatalf("new interface: %v", err)
	}
	if !i.Structural() {
		t.Fatalf("interface not structural")
	}

	ref := i.Resolve(envelope("1"))
	ref.Navigate("name")
	ref.Assign("name", "x")
	ref.Invoke(1, "two")
	if _, err := ref.Remove("name").Wait(ctx(t)); !errors.Is(err, dai.ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound for remove, got %v", err)
	}

	log.expect(t, "navigate@1", "assign@1")
	if log.packs[0].Command != "name" || log.packs[1].Value != "x" {
		t.Fatalf("unexpected packages %+v", log.packs)
	}
	if !reflect.DeepEqual(invoked, []any{1, "two"}) {
		t.Fatalf("unexpected invoke arguments %v", invoked)
	}
}
