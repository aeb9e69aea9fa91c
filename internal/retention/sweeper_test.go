package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockSweeper struct {
	mu    sync.Mutex
	days  []int
	calls chan struct{}
	err   error
}

func (m *mockSweeper) RetentionSweep(_ context.Context, days int) (int64, error) {
	m.mu.Lock()
	m.days = append(m.days, days)
	m.mu.Unlock()
	if m.calls != nil {
		m.calls <- struct{}{}
	}
	return 3, m.err
}

func TestService_RunSweepsRepeatedly(t *testing.T) {
	m := &mockSweeper{calls: make(chan struct{}, 10)}
	svc := NewService(m, 30, 10*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-m.calls:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a sweep")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.days {
		assert.Equal(t, 30, d)
	}
}

func TestService_DisabledDoesNothing(t *testing.T) {
	m := &mockSweeper{}
	NewService(m, 30, time.Millisecond, false).Run(context.Background())
	assert.Empty(t, m.days)
}

func TestService_SweepOnce(t *testing.T) {
	m := &mockSweeper{}
	assert.Equal(t, int64(3), NewService(m, 7, time.Hour, true).SweepOnce(context.Background()))

	m.err = errors.New("database is locked")
	assert.Zero(t, NewService(m, 7, time.Hour, true).SweepOnce(context.Background()))
	assert.Equal(t, []int{7, 7}, m.days)
}
