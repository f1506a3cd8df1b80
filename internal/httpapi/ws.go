package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"textgend/internal/generation"
	"textgend/internal/worker"
	"textgend/pkg/types"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// wsConn serializes writes to one connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  zerolog.Logger
}

func (c *wsConn) send(msg types.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *wsConn) sendError(runID string, err error) {
	msg := generation.ToMessage(generation.Errored{RunID: runID, Err: err})
	if e := c.send(msg); e != nil {
		c.log.Debug().Err(e).Msg("websocket write failed")
	}
}

// serveWS godoc
// @Summary      Worker session
// @Description  Upgrades to a WebSocket bound to one worker. Send types.GenerateRequest
// @Description  messages with command "start" or "abort"; events arrive as types.Message.
// @Description  A start while a run is active is rejected with errorKind "busy".
// @Tags         generate
// @Router       /ws [get]
func (h *handlers) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has replied to the client
		zlog.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	sid := uuid.NewString()
	c := &wsConn{conn: conn, log: zlog.With().Str("session", sid).Logger()}
	lvl := requestLogLevel(r)
	if lvl >= LevelInfo {
		c.log.Info().Str("remote", r.RemoteAddr).Msg("websocket open")
	}
	wsSessions.Inc()
	defer wsSessions.Dec()

	sess := h.svc.NewSession()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sess.Events() {
			msg := generation.ToMessage(ev)
			streamedEventsTotal.WithLabelValues("websocket", msg.Status).Inc()
			if msg.ErrorKind == generation.KindBusy {
				IncrementBackpressure("busy")
			}
			if err := c.send(msg); err != nil {
				c.log.Debug().Err(err).Msg("websocket write failed")
			}
		}
	}()

	// shutdown closes the connection, which ends the read loop
	stop := context.AfterFunc(serverBaseCtx, func() { _ = conn.Close() })
	defer stop()
	var timer *time.Timer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var in types.GenerateRequest
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendError("", &generation.InvalidRequestError{Err: err})
			continue
		}
		switch in.Command {
		case types.CommandAbort:
			_ = sess.Send(worker.Abort{})
		case types.CommandStart, "":
			id := uuid.NewString()
			req, err := h.svc.Prepare(generation.FromAPI(in))
			if err != nil {
				c.sendError(id, err)
				continue
			}
			if lvl >= LevelInfo {
				c.log.Info().Str("run_id", id).Str("model", req.ModelID).Msg("websocket start")
			}
			if err := sess.Send(worker.Start{RunID: id, Request: req}); err != nil {
				c.sendError(id, err)
				continue
			}
			if inferTimeout > 0 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(time.Duration(inferTimeout)*time.Second, func() { _ = sess.Send(worker.Abort{}) })
			}
		default:
			c.sendError("", &generation.InvalidRequestError{Err: unknownCommand(in.Command)})
		}
	}
	if timer != nil {
		timer.Stop()
	}
	// Close aborts an active run; the writer drains what is left
	_ = sess.Close()
	<-done
	_ = conn.Close()
	if lvl >= LevelInfo {
		c.log.Info().Msg("websocket closed")
	}
}

type unknownCommand string

func (u unknownCommand) Error() string { return "unknown command " + string(u) }
