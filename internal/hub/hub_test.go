package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/erdashboard/internal/emergency"
	"stealthcompany.com/erdashboard/internal/refresher"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := New()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) refresher.Snapshot {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var snapshot refresher.Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	return snapshot
}

func testSnapshot(id string) refresher.Snapshot {
	return refresher.Snapshot{
		CycleID:   id,
		UpdatedAt: time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC),
		Source:    emergency.SourceMock,
		Rooms:     emergency.MockSummaries(),
	}
}

func TestHub_PublishReachesConnectedClient(t *testing.T) {
	h, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, h.Publish(context.Background(), testSnapshot("cycle-1")))

	snapshot := readSnapshot(t, conn)
	assert.Equal(t, "cycle-1", snapshot.CycleID)
	assert.Equal(t, emergency.SourceMock, snapshot.Source)
	assert.Equal(t, emergency.MockSummaries(), snapshot.Rooms)
}

func TestHub_NewClientReceivesLatestSnapshot(t *testing.T) {
	h, srv := startHub(t)

	require.NoError(t, h.Publish(context.Background(), testSnapshot("cycle-1")))
	require.NoError(t, h.Publish(context.Background(), testSnapshot("cycle-2")))

	// both publications are buffered; wait until Run has consumed them
	require.Eventually(t, func() bool { return len(h.broadcast) == 0 }, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, srv)
	assert.Equal(t, "cycle-2", readSnapshot(t, conn).CycleID)
}

func TestHub_BroadcastsToEveryClient(t *testing.T) {
	h, srv := startHub(t)
	first := dial(t, srv)
	second := dial(t, srv)

	// a client registered after the broadcast still gets it as the latest snapshot
	require.NoError(t, h.Publish(context.Background(), testSnapshot("cycle-1")))

	assert.Equal(t, "cycle-1", readSnapshot(t, first).CycleID)
	assert.Equal(t, "cycle-1", readSnapshot(t, second).CycleID)
}

func TestHub_PublishAfterStopFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// fill the buffer so the stopped hub is the only ready case
	for i := 0; i < cap(h.broadcast); i++ {
		h.broadcast <- nil
	}

	err := h.Publish(context.Background(), testSnapshot("late"))
	assert.Error(t, err)
}

func TestHub_PublishHonoursContext(t *testing.T) {
	h := New()
	for i := 0; i < cap(h.broadcast); i++ {
		h.broadcast <- nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Publish(ctx, testSnapshot("cancelled"))
	assert.ErrorIs(t, err, context.Canceled)
}
