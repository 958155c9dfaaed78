package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/risk-engine/pkg/models"
)

func newTestClient(h *Hub, id string, buffer int, portfolios ...string) *Client {
	c := &Client{
		hub:           h,
		send:          make(chan []byte, buffer),
		id:            id,
		subscriptions: make(map[string]bool),
	}
	h.mu.Lock()
	for _, p := range portfolios {
		c.subscriptions[p] = true
		if h.subscriptions[p] == nil {
			h.subscriptions[p] = make(map[*Client]bool)
		}
		h.subscriptions[p][c] = true
	}
	h.mu.Unlock()
	return c
}

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "live", 4, "port-1")

	hub.BroadcastProgress("port-1", models.ProgressUpdate{Phase: "simulating", Percent: 50})

	select {
	case data := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "simulation_progress", msg.Type)
		assert.Equal(t, "port-1", msg.PortfolioID)
	default:
		t.Fatal("expected a progress message")
	}
}

func TestBroadcastSkipsOtherPortfolios(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "live", 4, "port-1")

	hub.BroadcastProgress("port-2", models.ProgressUpdate{Phase: "simulating", Percent: 50})

	assert.Empty(t, client.send)
}

func TestBroadcastSurvivesStalledSubscriber(t *testing.T) {
	hub := NewHub()
	// No buffer and no reader: the first broadcast already finds it stalled
	stalled := newTestClient(hub, "stalled", 0, "port-1")
	live := newTestClient(hub, "live", 4, "port-1")

	require.NotPanics(t, func() {
		hub.BroadcastProgress("port-1", models.ProgressUpdate{Phase: "simulating", Percent: 50})
		hub.BroadcastResult("port-1", &models.SimulationResult{ValidPaths: 100})
	})

	hub.mu.RLock()
	_, stillSubscribed := hub.subscriptions["port-1"][stalled]
	hub.mu.RUnlock()
	assert.False(t, stillSubscribed, "stalled client should be dropped from the subscription set")
	assert.Len(t, live.send, 2, "remaining subscriber should receive both messages")
}
