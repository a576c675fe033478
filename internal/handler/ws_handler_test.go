package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorabeknazarmatov/test-platform/internal/session"
	ws "github.com/jorabeknazarmatov/test-platform/internal/websocket"
)

func TestWriteErrorAfterCloseIsLogged(t *testing.T) {
	var logs bytes.Buffer
	h := NewWSHandler(nil, zerolog.New(&logs).Level(zerolog.DebugLevel), nil)

	serverConn := make(chan *ws.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := h.upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		serverConn <- ws.NewConn(raw)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	conn := <-serverConn
	require.NoError(t, conn.Close())

	assert.NotPanics(t, func() { h.writeError(conn, session.ErrFinishInProgress) })
	assert.Contains(t, logs.String(), "Error reply failed")
	assert.Contains(t, logs.String(), `"code":"FINISH_IN_PROGRESS"`)
}
