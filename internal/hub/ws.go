package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubdeck/hubdeck/internal/errors"
)

// authDial opens a websocket to the hub and completes the token
// handshake: the hub greets with auth_required, the client answers
// with the token, the hub settles with auth_ok or auth_invalid. A
// rejected token is fatal; everything else is transient.
func authDial(ctx context.Context, url, token string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "failed to dial hub socket")
	}

	conn.SetReadDeadline(time.Now().Add(timeout))

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		conn.Close()
		return nil, errors.WrapTransient(err, "no greeting from hub socket")
	}
	if err := conn.WriteJSON(map[string]string{"type": "auth", "access_token": token}); err != nil {
		conn.Close()
		return nil, errors.WrapTransient(err, "failed to send auth")
	}
	for {
		if err := conn.ReadJSON(&f); err != nil {
			conn.Close()
			return nil, errors.WrapTransient(err, "auth handshake failed")
		}
		switch f.Type {
		case "auth_ok":
			return conn, nil
		case "auth_invalid":
			conn.Close()
			msg := f.Message
			if msg == "" {
				msg = "hub rejected the access token"
			}
			return nil, errors.NewAuthError(msg)
		}
	}
}
