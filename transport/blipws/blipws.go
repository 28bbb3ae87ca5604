// Package blipws adapts kasper's websocket package into a blip.Transport,
// negotiating the BLIP_3 subprotocol on both the server (Upgrader) and
// client (Dialer) sides of the handshake.
package blipws

import (
	"context"
	"net/http"

	"github.com/vitalvas/blip/blip"
	"github.com/vitalvas/blip/websocket"
)

// Conn wraps a *websocket.Conn to satisfy blip.Transport. A single BLIP
// message maps to a single WebSocket binary message.
type Conn struct {
	ws *websocket.Conn
}

// New wraps an already-upgraded or already-dialed websocket connection.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes frame as one binary WebSocket message.
func (c *Conn) Send(frame []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Receive reads the next binary WebSocket message. A close frame from the
// peer surfaces as an error from the underlying ReadMessage call, which
// the engine's receive loop treats as a clean end of the connection.
func (c *Conn) Receive() ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return nil, nil //nolint:nilerr // blip.Transport treats (nil,nil) as clean close
	}
	return payload, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// Upgrader upgrades an incoming HTTP request to a BLIP connection,
// offering BLIP_3 (or BLIP_3+appProtocol) as the only acceptable
// subprotocol.
type Upgrader struct {
	AppProtocol string
	upgrader    websocket.Upgrader
}

// NewUpgrader builds an Upgrader for the given application subprotocol
// name (pass "" for bare BLIP_3).
func NewUpgrader(appProtocol string) *Upgrader {
	return &Upgrader{
		AppProtocol: appProtocol,
		upgrader: websocket.Upgrader{
			Subprotocols:      []string{blip.WithAppProtocol(appProtocol)},
			EnableCompression: false, // BLIP does its own per-message deflate
		},
	}
}

// Upgrade completes the server-side handshake and returns a ready
// blip.Transport.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// Dial completes the client-side handshake and returns a ready
// blip.Transport.
func Dial(ctx context.Context, url, appProtocol string, header http.Header) (*Conn, error) {
	dialer := websocket.Dialer{
		Subprotocols: []string{blip.WithAppProtocol(appProtocol)},
	}
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}
