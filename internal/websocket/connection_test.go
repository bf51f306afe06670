package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newTestConnection returns a Connection and the client socket on the
// other end of it.
func newTestConnection(t *testing.T, identity string) (*Connection, *gws.Conn) {
	t.Helper()

	serverConns := make(chan *gws.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(server.Close)

	client, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := NewConnection(<-serverConns, identity, 16, time.Second)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, client
}

func readText(t *testing.T, client *gws.Conn) string {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestConnection_SendDeliversFrame(t *testing.T) {
	conn, client := newTestConnection(t, "10.0.0.1")

	require.NoError(t, conn.Send([]byte(`{"text":"hi"}`)))
	require.Equal(t, `{"text":"hi"}`, readText(t, client))
}

func TestConnection_SendJSONAndNotice(t *testing.T) {
	conn, client := newTestConnection(t, "10.0.0.1")

	require.NoError(t, conn.SendJSON(map[string]string{"text": "hi"}))
	require.JSONEq(t, `{"text":"hi"}`, readText(t, client))

	// Notices are plain text, deliberately not parseable as the schema.
	require.NoError(t, conn.SendNotice("Rate limit exceeded. Please slow down."))
	require.Equal(t, "Rate limit exceeded. Please slow down.", readText(t, client))
}

func TestConnection_SendAfterClose(t *testing.T) {
	conn, _ := newTestConnection(t, "10.0.0.1")

	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.Send([]byte("late")), ErrConnectionClosed)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	conn, _ := newTestConnection(t, "10.0.0.1")

	require.NoError(t, conn.Close())
	// Second close must not panic or error.
	require.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
}

func TestConnection_IdentityAndID(t *testing.T) {
	a, _ := newTestConnection(t, "10.0.0.1")
	b, _ := newTestConnection(t, "10.0.0.1")

	require.Equal(t, "10.0.0.1", a.Identity())
	// Two sessions from the same host remain distinct sessions.
	require.NotEqual(t, a.ID(), b.ID())
}

func TestConnection_ConcurrentSenders(t *testing.T) {
	conn, client := newTestConnection(t, "10.0.0.1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, conn.Send([]byte("frame")))
		}()
	}
	wg.Wait()

	// Every frame arrives whole; the single writer never interleaves.
	for i := 0; i < 20; i++ {
		require.Equal(t, "frame", readText(t, client))
	}
}
