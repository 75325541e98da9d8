package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/malezjaa/palladin/internal/hmr"
)

// writeWait bounds a single message write to a browser.
const writeWait = 10 * time.Second

// handleLiveReload upgrades the connection and streams broadcaster
// messages until the browser goes away or the server shuts down.
func (s *DevServer) handleLiveReload(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin already validated above
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	sub := s.broadcaster.Subscribe()
	if sub == nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.broadcaster.Unsubscribe(sub)

	// Browsers never send application messages on this socket; CloseRead
	// surfaces disconnects while discarding anything they do send.
	readCtx := conn.CloseRead(r.Context())

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeMessage(readCtx, conn, msg); err != nil {
				conn.Close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg hmr.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// checkOrigin admits same-host browsers plus the local loopback names,
// and non-browser clients that send no Origin at all.
func (s *DevServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	allowed := []string{
		r.Host,
		s.config.Server.Address(),
		fmt.Sprintf("localhost:%d", s.config.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", s.config.Server.Port),
	}
	for _, host := range allowed {
		if originURL.Host == host {
			return true
		}
	}
	return false
}
