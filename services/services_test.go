package services_test

import (
	"sync"
	"testing"

	"github.com/xraph/conduit/services"
)

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestContainer_AddServiceRemove(t *testing.T) {
	c := services.NewContainer()
	const kind services.Kind = "greeter"

	if c.Service(kind) != nil {
		t.Fatal("expected nil for unregistered kind")
	}

	if prev := c.Add(kind, english{}); prev != nil {
		t.Errorf("expected no previous service, got %v", prev)
	}

	g, ok := services.Lookup[greeter](c, kind)
	if !ok {
		t.Fatal("expected Lookup to resolve greeter")
	}
	if g.Greet() != "hello" {
		t.Errorf("Greet() = %q, want %q", g.Greet(), "hello")
	}

	if removed := c.Remove(kind); removed == nil {
		t.Error("expected Remove to return the registered service")
	}
	if _, ok := services.Lookup[greeter](c, kind); ok {
		t.Error("expected Lookup to fail after Remove")
	}
}

func TestLookup_WrongType(t *testing.T) {
	c := services.NewContainer()
	c.Add(services.KindThreads, "not a greeter")

	if _, ok := services.Lookup[greeter](c, services.KindThreads); ok {
		t.Error("expected Lookup to reject a mismatched type")
	}
	if _, ok := services.Lookup[greeter](nil, services.KindThreads); ok {
		t.Error("expected Lookup on nil provider to fail")
	}
}

func TestContainer_CleanOplet(t *testing.T) {
	c := services.NewContainer()

	var mu sync.Mutex
	var calls []string
	for range 2 {
		c.AddCleaner(func(jobID, invocationID string) {
			mu.Lock()
			calls = append(calls, jobID+"/"+invocationID)
			mu.Unlock()
		})
	}

	c.CleanOplet("job_a", "op_b")

	if len(calls) != 2 {
		t.Fatalf("expected 2 cleaner calls, got %d", len(calls))
	}
	for _, call := range calls {
		if call != "job_a/op_b" {
			t.Errorf("unexpected cleaner call %q", call)
		}
	}
}

func TestContainer_Kinds(t *testing.T) {
	c := services.NewContainer()
	c.Add(services.KindThreads, 1)
	c.Add(services.KindScheduler, 2)

	if got := len(c.Kinds()); got != 2 {
		t.Errorf("expected 2 kinds, got %d", got)
	}
}
