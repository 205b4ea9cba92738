package websocket

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

const closeGracePeriod = time.Second

type conn struct {
	id     string
	wsConn *websocket.Conn

	maxMessageSize int

	writeTimeout time.Duration
	writeMu      sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newConn(wsConn *websocket.Conn, writeTimeout time.Duration, maxMessageSize int) *conn {
	return &conn{
		id:             uuid.NewString(),
		wsConn:         wsConn,
		maxMessageSize: maxMessageSize,
		writeTimeout:   writeTimeout,
	}
}

func (that *conn) ID() string {
	return that.id
}

// ReadMessage - returns the next data frame. A regular close from the peer reads as io.EOF.
// A frame over the size limit is drained and reported as a protocol error.
func (that *conn) ReadMessage() ([]byte, error) {
	_, reader, err := that.wsConn.NextReader()
	if err != nil {
		return nil, readError(err)
	}

	payload, err := io.ReadAll(io.LimitReader(reader, int64(that.maxMessageSize)+1))
	if err != nil {
		return nil, readError(err)
	}

	if len(payload) > that.maxMessageSize {
		if _, err = io.Copy(io.Discard, reader); err != nil {
			return nil, readError(err)
		}
		return nil, fmt.Errorf("%w: message exceeds %d bytes", apperror.ErrProtocol, that.maxMessageSize)
	}

	return payload, nil
}

func readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}

	return fmt.Errorf("failed to read frame: %w", err)
}

// Send - writes payload as a single text frame, giving up after the write timeout.
func (that *conn) Send(payload []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.writeTimeout > 0 {
		if err := that.wsConn.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := that.wsConn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

// Close - says goodbye with a close frame, then drops the connection.
func (that *conn) Close() error {
	that.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = that.wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))

		that.closeErr = that.wsConn.Close()
	})

	return that.closeErr
}
