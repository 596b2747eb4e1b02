package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"swapi/cmd/internal/ratelimit"
	v1 "swapi/shared/contracts/rpc/v1"

	"github.com/coder/websocket"
)

const (
	// WSSubprotocol must be offered by clients.
	WSSubprotocol = "swapi.rpc.v2"

	wsMaxPingFailures = 3
	wsCloseGrace      = 1 * time.Second
)

// WSGateway serves the dispatcher over a WebSocket connection.
//
// Each text frame is one request envelope and gets exactly one response frame, in order.
// The connection starts with the session cookie from the handshake; a token in a frame
// overrides it, and the token left by each call (login, logoff) carries over to the next.
type WSGateway struct {
	d   *Dispatcher
	log *slog.Logger
	cfg WSConfig

	patterns []string
}

// NewWSGateway constructs a gateway over d.
func NewWSGateway(d *Dispatcher, cfg WSConfig, log *slog.Logger) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	return &WSGateway{
		d:        d,
		log:      log,
		cfg:      cfg,
		patterns: originPatterns(cfg.AllowedOrigins),
	}
}

// ServeHTTP upgrades the request and runs the call loop.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := enforceOrigin(r, g.cfg.OriginRequired, g.cfg.AllowedOrigins); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{WSSubprotocol},
		OriginPatterns: g.patterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != WSSubprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", WSSubprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(g.cfg.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, cancel)
	}()

	g.serve(ctx, conn, r)

	cancel()
	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

func (g *WSGateway) serve(ctx context.Context, conn *websocket.Conn, r *http.Request) {
	ck := g.d.CookieConfig()
	tok := ck.read(r)
	ip := remoteIP(r)
	rl := ratelimit.NewWindow(g.cfg.RateEvents, g.cfg.RateWindow)

	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		mt, data, err := conn.Read(readCtx)
		readCancel()

		if err != nil {
			g.logReadErr(err)
			return
		}
		if mt != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		if !rl.Allow(time.Now()) {
			_ = g.write(ctx, conn, encodeError(v1.VersionEnvelope, Errorf(v1.ErrRateLimited, "too many calls")))
			_ = conn.Close(websocket.StatusPolicyViolation, "rate limited")
			return
		}

		req, err := v1.ParseRequest(data, ck.Name)
		if err != nil {
			if err := g.write(ctx, conn, encodeError(peekVersion(data), badRequest(err.Error()))); err != nil {
				return
			}
			continue
		}

		out := g.d.Dispatch(ctx, DispatchInput{Request: req, Token: tok, IP: ip, HTTPRequest: r})
		tok = out.Token

		if err := g.write(ctx, conn, out.Body); err != nil {
			g.log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
			return
		}
	}
}

func (g *WSGateway) write(parent context.Context, conn *websocket.Conn, b []byte) error {
	ctx, cancel := context.WithTimeout(parent, g.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, b)
}

func (g *WSGateway) heartbeat(ctx context.Context, conn *websocket.Conn, stop context.CancelFunc) {
	t := time.NewTicker(g.cfg.HeartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				g.log.Info("ws.ping.fail", "failures", failures, "err", err)
				if failures >= wsMaxPingFailures {
					_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
					stop()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (g *WSGateway) logReadErr(err error) {
	switch {
	case websocket.CloseStatus(err) != -1:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
	default:
		g.log.Info("ws.read.fail", "err", err)
	}
}
