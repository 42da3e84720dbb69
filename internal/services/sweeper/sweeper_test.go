package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/findosh/shiller/internal/models"
	"github.com/google/uuid"
)

type fakeExpirer struct {
	mu     sync.Mutex
	calls  int
	result []*models.Session
	err    error
	called chan struct{}
}

func (f *fakeExpirer) ExpireDueSessions(ctx context.Context) ([]*models.Session, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.called != nil {
		select {
		case f.called <- struct{}{}:
		default:
		}
	}
	return f.result, f.err
}

func (f *fakeExpirer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNew_DefaultInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultInterval},
		{-time.Second, DefaultInterval},
		{5 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := New(&fakeExpirer{}, tt.in).Interval(); got != tt.want {
			t.Errorf("New(%v): expected interval %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestRunOnce(t *testing.T) {
	expirer := &fakeExpirer{result: []*models.Session{{ID: uuid.New(), Code: "123456"}, {ID: uuid.New(), Code: "654321"}}}
	s := New(expirer, time.Minute)

	if n := s.RunOnce(context.Background()); n != 2 {
		t.Errorf("Expected 2 expired sessions, got %d", n)
	}
	if expirer.count() != 1 {
		t.Errorf("Expected 1 call, got %d", expirer.count())
	}
}

func TestRunOnce_ErrorKeepsPartialResult(t *testing.T) {
	expirer := &fakeExpirer{
		result: []*models.Session{{ID: uuid.New()}},
		err:    errors.New("store unavailable"),
	}
	s := New(expirer, time.Minute)

	if n := s.RunOnce(context.Background()); n != 1 {
		t.Errorf("Expected 1 expired session despite error, got %d", n)
	}
}

func TestStart_TicksUntilCancelled(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("boom"), called: make(chan struct{}, 1)}
	s := New(expirer, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	// failures do not stop the loop
	for i := 0; i < 3; i++ {
		select {
		case <-expirer.called:
		case <-time.After(2 * time.Second):
			t.Fatalf("Sweep %d did not happen", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	if expirer.count() < 3 {
		t.Errorf("Expected at least 3 sweeps, got %d", expirer.count())
	}
}
