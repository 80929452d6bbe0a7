package adminws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/domain"
)

func TestWindowClosedBroadcastsEnvelope(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := &client{send: make(chan []byte, 4)}
	h.register <- c
	time.Sleep(10 * time.Millisecond)

	h.WindowClosed(domain.ClearingWindow{ID: "w1", Region: "ASEAN"})

	select {
	case msg := <-c.send:
		var env message
		require.NoError(t, json.Unmarshal(msg, &env))
		assert.Equal(t, "window.closed", env.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast message")
	}
}

func TestAlertBroadcastsSeverity(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := &client{send: make(chan []byte, 4)}
	h.register <- c
	time.Sleep(10 * time.Millisecond)

	h.Alert("acct-1", domain.SeverityCritical, 0.01)

	select {
	case msg := <-c.send:
		var env struct {
			Type string `json:"type"`
			Data struct {
				AccountID string `json:"account_id"`
				Severity  string `json:"severity"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &env))
		assert.Equal(t, "reconciliation.alert", env.Type)
		assert.Equal(t, "acct-1", env.Data.AccountID)
		assert.Equal(t, string(domain.SeverityCritical), env.Data.Severity)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast message")
	}
}
