package resource_test

import (
	"reflect"
	"testing"

	"restobject/internal/events"
	"restobject/internal/resource"
)

func TestRegistrySharesDefaultPool(t *testing.T) {
	a := resource.NewRegistry()
	b := resource.NewRegistry()
	if a.DefaultPool() != b.DefaultPool() {
		t.Fatalf("registries hold different default pools")
	}
	if !a.IsRegistered(resource.DefaultPool()) || !a.IsRegistered(resource.DefaultPool().ID()) {
		t.Fatalf("default pool not registered")
	}
	if a.Remove(resource.DefaultPool()) || !a.IsRegistered(resource.DefaultPool()) {
		t.Fatalf("default pool was removed")
	}
}

func TestCreatePoolNotifiesBeforeRegistration(t *testing.T) {
	r := resource.NewRegistry()
	var registeredAtCreate bool
	var order []string
	r.AddListener(resource.EventPoolCreated, func(e events.Event) {
		registeredAtCreate = r.IsRegistered(e.Data.(*resource.Pool))
		order = append(order, "created")
	})
	r.AddListener(resource.EventPoolRegistered, func(events.Event) { order = append(order, "registered") })

	p := r.CreatePool()
	if registeredAtCreate {
		t.Fatalf("pool registered before the created event")
	}
	if !reflect.DeepEqual(order, []string{"created", "registered"}) {
		t.Fatalf("unexpected events %v", order)
	}
	if r.Get(p.ID()) != p {
		t.Fatalf("pool %s not found", p.ID())
	}
}

func TestRegisterIsNoOpWhenPresent(t *testing.T) {
	r := resource.NewRegistry()
	registered := 0
	r.AddListener(resource.EventPoolRegistered, func(events.Event) { registered++ })
	p := resource.NewPool()
	r.Register(p)
	r.Register(p)
	if registered != 1 {
		t.Fatalf("expected 1 registered event, got %d", registered)
	}
}

func TestDestroyedPoolLeavesRegistry(t *testing.T) {
	r := resource.NewRegistry()
	removed := 0
	r.AddListener(resource.EventPoolRemoved, func(events.Event) { removed++ })
	p := r.CreatePool()
	if err := p.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if r.IsRegistered(p) || r.Get(p.ID()) != nil || removed != 1 {
		t.Fatalf("destroyed pool still registered (removed=%d)", removed)
	}
}

func TestRemoveUnsubscribes(t *testing.T) {
	r := resource.NewRegistry()
	removed := 0
	r.AddListener(resource.EventPoolRemoved, func(events.Event) { removed++ })
	p := r.CreatePool()
	if !r.Remove(p.ID()) {
		t.Fatalf("remove by id failed")
	}
	if r.Remove(p) {
		t.Fatalf("second remove succeeded")
	}
	if err := p.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed event, got %d", removed)
	}
}
