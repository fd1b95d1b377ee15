package rawio

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MaxMessageSize is the largest binary message sent in one frame by WebsocketChannel.Write
const MaxMessageSize = 16384

// WebsocketChannel implements a raw channel over a websocket connection. Every write is sent as one or more
// binary messages; reads return message payloads, keeping whatever does not fit for the next read.
type WebsocketChannel struct {
	conn    *websocket.Conn
	pending []byte
	eof     bool
	closed  bool
}

func NewWebsocketChannel(conn *websocket.Conn) *WebsocketChannel {
	return &WebsocketChannel{
		conn: conn,
	}
}

// IsWebsocketURL returns true for names starting with ws:// or wss://
func IsWebsocketURL(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "ws://") || strings.HasPrefix(name, "wss://")
}

// DialWebsocket connects to a websocket endpoint, honouring the proxy environment variables
func DialWebsocket(url string) (*WebsocketChannel, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}

	log.Debugf("Dialing %s", url)
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not connect to %v", url)
	}
	log.Debugf("Connected to %v", url)
	return NewWebsocketChannel(conn), nil
}

func (wsc *WebsocketChannel) Read(p []byte) (int, error) {
	if len(wsc.pending) == 0 {
		if wsc.eof {
			return 0, io.EOF
		}
		messageType, message, err := wsc.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				wsc.eof = true
				return 0, io.EOF
			}
			if isTimeout(err) {
				return 0, ErrWouldBlock
			}
			return 0, errors.WithStack(err)
		}
		if messageType != websocket.BinaryMessage {
			return 0, errors.Errorf("Invalid message type: %v", messageType)
		}
		wsc.pending = message
	}

	n := copy(p, wsc.pending)
	wsc.pending = wsc.pending[n:]
	return n, nil
}

// Write will take a stream of bytes and send it over a websocket connection.
func (wsc *WebsocketChannel) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		end := written + MaxMessageSize
		if end > len(p) {
			end = len(p)
		}
		if err := wsc.conn.WriteMessage(websocket.BinaryMessage, p[written:end]); err != nil {
			if isTimeout(err) && written > 0 {
				return written, nil
			} else if isTimeout(err) {
				return 0, ErrWouldBlock
			}
			return written, errors.WithStack(err)
		}
		written = end
	}
	return written, nil
}

func (wsc *WebsocketChannel) Seek(int64, int) (int64, error) {
	return 0, errors.Wrap(ErrUnsupported, "websocket is not seekable")
}

func (wsc *WebsocketChannel) Tell() (int64, error) {
	return 0, errors.Wrap(ErrUnsupported, "websocket is not seekable")
}

func (wsc *WebsocketChannel) Truncate(int64) (int64, error) {
	return 0, errors.Wrap(ErrUnsupported, "websocket can not be truncated")
}

func (wsc *WebsocketChannel) Readable() bool { return true }
func (wsc *WebsocketChannel) Writable() bool { return true }
func (wsc *WebsocketChannel) Seekable() bool { return false }

func (wsc *WebsocketChannel) Fileno() (uintptr, error) {
	return NewConnChannel(wsc.conn.UnderlyingConn()).Fileno()
}

func (wsc *WebsocketChannel) Isatty() bool { return false }

// Close sends a close message to the peer and closes the connection. Calling Close again does nothing.
func (wsc *WebsocketChannel) Close() error {
	if wsc.closed {
		return nil
	}
	wsc.closed = true
	_ = wsc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return errors.WithStack(wsc.conn.Close())
}

func (wsc *WebsocketChannel) Closed() bool {
	return wsc.closed
}
