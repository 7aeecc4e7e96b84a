package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"olmeda-realtime/internal/websocket"
)

type stubStats struct {
	state websocket.ConnectionState
	stats websocket.WSStats
}

func (s stubStats) State() websocket.ConnectionState { return s.state }
func (s stubStats) Stats() websocket.WSStats         { return s.stats }
func (s stubStats) ReconnectAttempts() int           { return 3 }

func TestMonitor_Check(t *testing.T) {
	src := stubStats{
		state: websocket.StateConnected,
		stats: websocket.WSStats{MessagesReceived: 10, FramesDropped: 1, Reconnections: 2},
	}
	m := NewMonitor(src, nil, time.Minute, nil)

	snap := m.Check(context.Background())
	assert.Equal(t, "connected", snap.State)
	assert.Equal(t, 3, snap.ReconnectAttempts)
	assert.EqualValues(t, 10, snap.MessagesReceived)
	assert.True(t, snap.StoreHealthy)
	assert.Equal(t, snap, m.Last())
	assert.Zero(t, m.Errors())
}

func TestMonitor_CheckStoreFailure(t *testing.T) {
	db := pingerFunc(func(context.Context) error { return errors.New("banco indisponível") })
	m := NewMonitor(stubStats{}, db, 0, nil)

	snap := m.Check(context.Background())
	assert.False(t, snap.StoreHealthy)
	assert.Equal(t, "banco indisponível", snap.StoreError)
	assert.Equal(t, "disconnected", snap.State)
	assert.EqualValues(t, 1, m.Errors())
	assert.Equal(t, 30*time.Second, m.interval)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m := NewMonitor(stubStats{}, nil, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !m.Last().CheckedAt.IsZero() }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor não parou")
	}
}
