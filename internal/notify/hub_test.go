package notify

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func waitConns(t *testing.T, reg Registry, n int) []string {
	t.Helper()
	var ids []string
	require.Eventually(t, func() bool {
		var err error
		ids, err = reg.List(context.Background())
		return err == nil && len(ids) == n
	}, 2*time.Second, 10*time.Millisecond)
	return ids
}

func TestHub_BroadcastReachesViewer(t *testing.T) {
	reg := NewMemoryRegistry()
	hub := NewHub(reg, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ws := dialHub(t, srv)
	waitConns(t, reg, 1)

	b := NewBroadcaster(reg, hub)
	res := b.Broadcast(context.Background(), EventCreated, map[string]string{"purchase_id": "ABC-DEF"})
	assert.Equal(t, 1, res.Delivered)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"created"`)
	assert.Contains(t, string(data), `"purchase_id":"ABC-DEF"`)
}

func TestHub_DisconnectDeregisters(t *testing.T) {
	reg := NewMemoryRegistry()
	hub := NewHub(reg, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dialHub(t, srv)
	waitConns(t, reg, 1)
	require.NoError(t, ws.Close())

	waitConns(t, reg, 0)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_PostUnknownConnectionIsGone(t *testing.T) {
	hub := NewHub(NewMemoryRegistry(), nil)

	err := hub.Post(context.Background(), "missing", []byte("{}"))
	require.ErrorIs(t, err, ErrGone)
}

func TestHub_StaleRegistrationPruned(t *testing.T) {
	reg := seedRegistry(t, "left-over-from-restart")
	hub := NewHub(reg, nil)
	b := NewBroadcaster(reg, hub)

	res := b.Broadcast(context.Background(), EventUpdated, nil)
	assert.Equal(t, Result{Connections: 1, Pruned: 1}, res)
	waitConns(t, reg, 0)
}

// hubRelay routes forwarded messages to in-process hubs by instance.
type hubRelay struct {
	hubs map[string]*Hub
}

func (r *hubRelay) Forward(ctx context.Context, connID string, data []byte) error {
	owner, ok := OwnerOf(connID)
	if !ok {
		return ErrGone
	}
	h, ok := r.hubs[owner]
	if !ok {
		return ErrGone
	}
	return h.DeliverLocal(ctx, connID, data)
}

func readEvent(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return string(msg.Event)
}

func TestHub_SharedRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	relay := &hubRelay{hubs: make(map[string]*Hub)}
	hubA := NewHub(reg, nil, WithInstance("a"), WithRelay(relay))
	hubB := NewHub(reg, nil, WithInstance("b"), WithRelay(relay))
	relay.hubs["a"], relay.hubs["b"] = hubA, hubB
	defer hubA.Close()
	defer hubB.Close()

	srvB := httptest.NewServer(hubB)
	defer srvB.Close()
	ws := dialHub(t, srvB)
	ids := waitConns(t, reg, 1)
	owner, ok := OwnerOf(ids[0])
	require.True(t, ok)
	assert.Equal(t, "b", owner)

	resA := NewBroadcaster(reg, hubA).Broadcast(context.Background(), EventCreated, nil)
	assert.Equal(t, Result{Connections: 1, Delivered: 1}, resA)
	assert.Equal(t, "created", readEvent(t, ws))

	resB := NewBroadcaster(reg, hubB).Broadcast(context.Background(), EventUpdated, nil)
	assert.Equal(t, Result{Connections: 1, Delivered: 1}, resB)
	assert.Equal(t, "updated", readEvent(t, ws))
	waitConns(t, reg, 1)
}

func TestHub_ForeignConnectionWithoutRelay(t *testing.T) {
	reg := NewMemoryRegistry()
	hubA := NewHub(reg, nil, WithInstance("a"))
	hubB := NewHub(reg, nil, WithInstance("b"))
	defer hubA.Close()
	defer hubB.Close()

	srvB := httptest.NewServer(hubB)
	defer srvB.Close()
	ws := dialHub(t, srvB)
	waitConns(t, reg, 1)

	resA := NewBroadcaster(reg, hubA).Broadcast(context.Background(), EventCreated, nil)
	assert.Equal(t, Result{Connections: 1, Skipped: 1}, resA)
	waitConns(t, reg, 1)

	resB := NewBroadcaster(reg, hubB).Broadcast(context.Background(), EventDeleted, nil)
	assert.Equal(t, Result{Connections: 1, Delivered: 1}, resB)
	assert.Equal(t, "deleted", readEvent(t, ws))
}

func TestHub_GoneInstancePruned(t *testing.T) {
	reg := seedRegistry(t, "crashed.1f0c")
	relay := &hubRelay{hubs: make(map[string]*Hub)}
	hub := NewHub(reg, nil, WithInstance("a"), WithRelay(relay))
	relay.hubs["a"] = hub

	res := NewBroadcaster(reg, hub).Broadcast(context.Background(), EventUpdated, nil)
	assert.Equal(t, Result{Connections: 1, Pruned: 1}, res)
	waitConns(t, reg, 0)
}

func TestHub_DeliverLocal(t *testing.T) {
	reg := seedRegistry(t, "a.closed")
	hub := NewHub(reg, nil, WithInstance("a"))

	assert.ErrorIs(t, hub.DeliverLocal(context.Background(), "b.other", nil), ErrNotLocal)
	assert.ErrorIs(t, hub.DeliverLocal(context.Background(), "a.closed", nil), ErrGone)
	waitConns(t, reg, 0)
}

func TestOwnerOf(t *testing.T) {
	tests := []struct {
		id    string
		owner string
		ok    bool
	}{
		{"a.123", "a", true},
		{"inst.uuid.with.dots", "inst", true},
		{"nodot", "", false},
		{".123", "", false},
		{"a.", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			owner, ok := OwnerOf(tt.id)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
