package tcp

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

// pipe returns a conn reading whatever input is written to the other end.
func pipe(t *testing.T, maxMessageSize int, input string) *conn {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	go func() {
		_, _ = client.Write([]byte(input))
		client.Close()
	}()

	return newConn(server, time.Second, maxMessageSize)
}

func TestConn_ReadMessage(t *testing.T) {
	t.Run("Lines are returned one at a time, blank ones skipped", func(t *testing.T) {
		// Given: two messages separated by blank lines
		c := pipe(t, 64, "{\"a\":1}\n\n  \r\n{\"b\":2}\r\n")

		// When / Then: both come back trimmed, then end of stream
		msg, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(msg))

		msg, err = c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `{"b":2}`, string(msg))

		_, err = c.ReadMessage()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Oversized line is skipped up to its newline", func(t *testing.T) {
		// Given: a line far over the limit followed by a valid one
		c := pipe(t, 32, strings.Repeat("x", 200)+"\n{\"ok\":true}\n")

		// When: reading the first message
		_, err := c.ReadMessage()

		// Then: it is a protocol error
		assert.ErrorIs(t, err, apperror.ErrProtocol)

		// Then: the following line is intact
		msg, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(msg))
	})

	t.Run("Line exactly at the limit is accepted", func(t *testing.T) {
		// Given: a line of exactly 32 bytes
		line := strings.Repeat("y", 32)
		c := pipe(t, 32, line+"\n")

		// When: reading it
		msg, err := c.ReadMessage()

		// Then: it comes back whole
		require.NoError(t, err)
		assert.Equal(t, line, string(msg))
	})

	t.Run("Unterminated last line still counts", func(t *testing.T) {
		// Given: input without a trailing newline
		c := pipe(t, 64, `{"type":"rematch"}`)

		// When / Then: the line, then end of stream
		msg, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `{"type":"rematch"}`, string(msg))

		_, err = c.ReadMessage()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Oversized line cut short by end of stream", func(t *testing.T) {
		// Given: an overlong line with no newline
		c := pipe(t, 32, strings.Repeat("z", 100))

		// When: reading
		_, err := c.ReadMessage()

		// Then: end of stream
		assert.ErrorIs(t, err, io.EOF)
	})
}
