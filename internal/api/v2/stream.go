package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/hostpulse/internal/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxMsgSize = 1024
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers always send Origin on upgrade; it must match Host.
		// Non-browser clients may omit it.
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// StreamSamples upgrades to a websocket and pushes each new sample of the
// host as a JSON message, starting with the latest stored one.
func (c *Controller) StreamSamples(ctx echo.Context) error {
	hostID := ctx.Param("host")
	latest, err := c.collector.Latest(ctx.Request().Context(), hostID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to open sample stream", http.StatusInternalServerError)
	}

	conn, err := streamUpgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		c.logErrorIfEnabled("failed to upgrade sample stream", logger.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	samples, cancel := c.bus.Subscribe(hostID)
	defer cancel()

	conn.SetReadLimit(streamMaxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	// The read loop only services control frames and notices disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v)
	}
	if latest != nil {
		if err := write(latest); err != nil {
			return nil
		}
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case sample, ok := <-samples:
			if !ok {
				c.closeStream(conn)
				return nil
			}
			if err := write(sample); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-c.ctx.Done():
			c.closeStream(conn)
			return nil
		}
	}
}

func (c *Controller) closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
