package guest

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func testGuest(name, machine string) *Guest {
	return &Guest{Manifest: &Manifest{Name: name, Machine: machine, dir: "/tmp/" + name}}
}

func TestCatalog_Register(t *testing.T) {
	catalog := NewCatalog(zap.NewNop())

	if err := catalog.Register(testGuest("famicom", "famicom")); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if catalog.Count() != 1 {
		t.Errorf("expected count 1, got %d", catalog.Count())
	}

	err := catalog.Register(testGuest("famicom", "generic"))
	var dup *GuestAlreadyRegisteredError
	if !errors.As(err, &dup) {
		t.Errorf("expected GuestAlreadyRegisteredError, got %T", err)
	}
}

func TestCatalog_Resolve(t *testing.T) {
	catalog := NewCatalog(zap.NewNop())

	_, err := catalog.Resolve("famicom")
	var notFound *GuestNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected GuestNotFoundError, got %T", err)
	}

	catalog.RegisterAll([]*Guest{testGuest("famicom", "famicom"), testGuest("famicom", "famicom")})

	g, err := catalog.Resolve("famicom")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if g.Name() != "famicom" {
		t.Errorf("expected name 'famicom', got '%s'", g.Name())
	}
	if catalog.Count() != 1 {
		t.Errorf("duplicate should be skipped, count %d", catalog.Count())
	}
}

func TestCatalog_LookupByMachine(t *testing.T) {
	catalog := NewCatalog(zap.NewNop())
	catalog.Register(testGuest("nes", "famicom"))
	catalog.Register(testGuest("nes-debug", "famicom"))
	catalog.Register(testGuest("demo", "generic"))

	if got := len(catalog.LookupByMachine("famicom")); got != 2 {
		t.Errorf("expected 2 famicom guests, got %d", got)
	}
	if got := len(catalog.LookupByMachine("amiga")); got != 0 {
		t.Errorf("expected 0 amiga guests, got %d", got)
	}
}

func TestCatalog_ListSorted(t *testing.T) {
	catalog := NewCatalog(zap.NewNop())
	catalog.Register(testGuest("zelda", "famicom"))
	catalog.Register(testGuest("arkanoid", "famicom"))

	list := catalog.List()
	if len(list) != 2 || list[0].Name() != "arkanoid" || list[1].Name() != "zelda" {
		t.Errorf("unexpected list order")
	}
}

func TestCatalog_Unregister(t *testing.T) {
	catalog := NewCatalog(zap.NewNop())
	catalog.Register(testGuest("nes", "famicom"))

	catalog.Unregister("nes")
	catalog.Unregister("missing")

	if catalog.Count() != 0 {
		t.Errorf("expected count 0, got %d", catalog.Count())
	}
	if got := len(catalog.LookupByMachine("famicom")); got != 0 {
		t.Errorf("expected machine index to be cleared, got %d", got)
	}
}
