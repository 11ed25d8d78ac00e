package session

import (
	"context"
	"sync"
	"testing"
)

type fakeBackend struct{ label string }

func (f *fakeBackend) Label() string                       { return f.label }
func (f *fakeBackend) Upload(context.Context, string) bool { return true }

func TestBeginCreatesAwaitingSession(t *testing.T) {
	m := NewManager()
	s := m.Begin(42)
	if s.State != StateAwaitingBackend {
		t.Fatalf("state = %q, expected %q", s.State, StateAwaitingBackend)
	}
	if s.Backend != nil {
		t.Fatal("fresh session must have no backend bound")
	}
	if !m.Active(42) {
		t.Fatal("session not registered")
	}
}

func TestBeginReplacesExistingSession(t *testing.T) {
	m := NewManager()
	m.Begin(42)
	if !m.Bind(42, &fakeBackend{label: "S3"}) {
		t.Fatal("bind failed")
	}

	m.Begin(42)

	s, ok := m.Get(42)
	if !ok {
		t.Fatal("session missing after restart")
	}
	if s.State != StateAwaitingBackend {
		t.Fatalf("state = %q, expected %q", s.State, StateAwaitingBackend)
	}
	if s.Backend != nil {
		t.Fatal("restart must clear the previously bound backend")
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, expected 1", m.Len())
	}
}

func TestBindAdvancesState(t *testing.T) {
	m := NewManager()
	m.Begin(42)

	b := &fakeBackend{label: "GDrive"}
	if !m.Bind(42, b) {
		t.Fatal("bind failed")
	}

	s, _ := m.Get(42)
	if s.State != StateReceivingFiles {
		t.Fatalf("state = %q, expected %q", s.State, StateReceivingFiles)
	}
	if s.Backend != b {
		t.Fatal("bound backend not stored")
	}
}

func TestBindRequiresAwaitingSession(t *testing.T) {
	m := NewManager()
	if m.Bind(42, &fakeBackend{}) {
		t.Fatal("bind without a session must fail")
	}

	m.Begin(42)
	m.Bind(42, &fakeBackend{})
	if m.Bind(42, &fakeBackend{}) {
		t.Fatal("bind on a receiving session must fail")
	}
}

func TestEndDiscardsSession(t *testing.T) {
	m := NewManager()
	m.Begin(42)
	if !m.End(42) {
		t.Fatal("end reported no session")
	}
	if m.Active(42) {
		t.Fatal("session survived End")
	}
	if m.End(42) {
		t.Fatal("second End reported a session")
	}
}

func TestStateWithoutSessionIsEmpty(t *testing.T) {
	m := NewManager()
	if got := m.State(42); got != "" {
		t.Fatalf("state = %q, expected empty", got)
	}
}

func TestWithSerializesPerUser(t *testing.T) {
	m := NewManager()
	m.Begin(42)

	const rounds = 200
	counter := 0
	var wg sync.WaitGroup
	for range [4]struct{}{} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				m.With(42, func(*Session) {
					counter++
				})
			}
		}()
	}
	wg.Wait()

	if counter != 4*rounds {
		t.Fatalf("counter = %d, expected %d", counter, 4*rounds)
	}
}

func TestWithSeesLiveSession(t *testing.T) {
	m := NewManager()

	m.With(42, func(s *Session) {
		if s != nil {
			t.Fatal("expected nil session before /start")
		}
	})

	m.Begin(42)
	m.With(42, func(s *Session) {
		if s == nil {
			t.Fatal("expected live session")
		}
		if s.State != StateAwaitingBackend {
			t.Fatalf("state = %q", s.State)
		}
	})
}
