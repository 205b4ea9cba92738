package tcp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

// conn frames messages as newline-terminated lines.
type conn struct {
	id      string
	netConn net.Conn
	reader  *bufio.Reader

	maxMessageSize int
	writeTimeout   time.Duration
	writeMu        sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newConn(netConn net.Conn, writeTimeout time.Duration, maxMessageSize int) *conn {
	return &conn{
		id:      uuid.NewString(),
		netConn: netConn,
		// room for the longest allowed line and its terminator
		reader:         bufio.NewReaderSize(netConn, maxMessageSize+1),
		maxMessageSize: maxMessageSize,
		writeTimeout:   writeTimeout,
	}
}

func (that *conn) ID() string {
	return that.id
}

// ReadMessage - returns the next non-blank line. A line longer than the configured
// limit is skipped up to its newline and reported as a protocol error.
func (that *conn) ReadMessage() ([]byte, error) {
	for {
		line, err := that.reader.ReadSlice('\n')

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if err = that.skipLine(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: message exceeds %d bytes", apperror.ErrProtocol, that.maxMessageSize)
		case errors.Is(err, io.EOF):
			// an unterminated last line still counts
			if line = bytes.TrimSpace(line); len(line) > 0 {
				return append([]byte(nil), line...), nil
			}
			return nil, io.EOF
		case err != nil:
			return nil, fmt.Errorf("failed to read line: %w", err)
		}

		if line = bytes.TrimSpace(line); len(line) == 0 {
			continue
		}

		return append([]byte(nil), line...), nil
	}
}

// skipLine - discards input up to and including the next newline.
func (that *conn) skipLine() error {
	for {
		_, err := that.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read line: %w", err)
		}

		return err
	}
}

// Send - writes payload as one line, giving up after the write timeout.
func (that *conn) Send(payload []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.writeTimeout > 0 {
		if err := that.netConn.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	if _, err := that.netConn.Write(line); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *conn) Close() error {
	that.closeOnce.Do(func() {
		that.closeErr = that.netConn.Close()
	})

	return that.closeErr
}
