package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/session"
)

type identifyRequest struct {
	StationID string          `json:"stationId"`
	Type      game.DeviceType `json:"type,omitempty"`
	Version   string          `json:"version"`
}

type identifyAck struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}

type deviceNotice struct {
	StationID string          `json:"stationId"`
	Type      game.DeviceType `json:"type"`
}

// stationConn is one connected station. All writes go through the out
// channel so the write pump is the only goroutine touching the socket.
type stationConn struct {
	deps Deps
	conn *websocket.Conn
	out  chan []byte

	stationID string
	sub       chan []byte
}

// handleStation upgrades to a WebSocket and speaks the station protocol:
// identify → identify:ack + state:full, then scan/heartbeat, with every
// committed mutation fanned out through the broker subscription.
func handleStation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			deps.Logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sc := &stationConn{
			deps: deps,
			conn: conn,
			out:  make(chan []byte, 32),
		}
		go sc.writePump(ctx)
		sc.readLoop(ctx)

		if sc.stationID != "" {
			deps.Broker.Unsubscribe(roomStations, sc.sub)
			if d, ok := deps.Registry.Disconnect(sc.stationID); ok {
				deps.Broker.Publish(roomStations, "device:disconnected", deviceNotice{
					StationID: d.StationID,
					Type:      d.Type,
				})
			}
		}
	}
}

func (sc *stationConn) readLoop(ctx context.Context) {
	for {
		_, raw, err := sc.conn.Read(ctx)
		if err != nil {
			sc.deps.Logger.Debug("websocket read ended", "station", sc.stationID, "error", err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			sc.sendError("INVALID_DATA", "malformed message envelope")
			continue
		}

		switch env.Type {
		case "identify":
			sc.handleIdentify(ctx, env.Data)
		case "scan":
			sc.handleScan(ctx, env.Data)
		case "heartbeat":
			sc.handleHeartbeat()
		default:
			sc.sendError("INVALID_DATA", "unknown message type "+env.Type)
		}
	}
}

func (sc *stationConn) handleIdentify(ctx context.Context, data json.RawMessage) {
	var req identifyRequest
	if len(data) == 0 || json.Unmarshal(data, &req) != nil {
		sc.sendError("INVALID_DATA", "identify payload must be an object")
		return
	}
	if req.StationID == "" || req.Version == "" {
		sc.sendError("INVALID_DATA", "stationId and version are required")
		return
	}

	deps := sc.deps

	// The process-wide session comes into being at first identify.
	sessionID := deps.Manager.CurrentID()
	if sessionID == "" {
		s, err := deps.Manager.Create(ctx, "")
		if err != nil {
			code, _ := errorCode(err)
			sc.sendError(code, err.Error())
			return
		}
		sessionID = s.ID
		deps.Broker.Publish(roomStations, "session:update", s)
	}

	dev, created := deps.Registry.Identify(req.StationID, req.Type, req.Version, sessionID)

	if sc.stationID == "" {
		sc.stationID = req.StationID
		sc.sub = deps.Broker.Subscribe(roomStations)
		go sc.forwardBroadcasts(ctx)
	}

	sc.send("identify:ack", identifyAck{Success: true, SessionID: dev.SessionID})
	// Full snapshot rather than deltas: a reconnecting or late-joining
	// station is brought to consistency no matter how much it missed.
	sc.send("state:full", deps.snapshot())

	deps.Broker.Publish(roomStations, "device:connected", deviceNotice{
		StationID: dev.StationID,
		Type:      dev.Type,
	})
	deps.Logger.Info("station identified",
		"station", dev.StationID, "type", dev.Type, "version", dev.Version, "new", created)
}

func (sc *stationConn) handleScan(ctx context.Context, data json.RawMessage) {
	if sc.stationID == "" {
		sc.sendError("INVALID_DATA", "identify before scanning")
		return
	}
	var req session.ScanRequest
	if len(data) == 0 || json.Unmarshal(data, &req) != nil {
		sc.sendError("INVALID_DATA", "malformed scan payload")
		return
	}
	if req.StationID == "" {
		req.StationID = sc.stationID
	}

	res, err := sc.deps.submitScan(ctx, req)
	if err != nil && !res.Committed {
		code, _ := errorCode(err)
		sc.sendError(code, err.Error())
		return
	}
	sc.send("scan:ack", res)
}

func (sc *stationConn) handleHeartbeat() {
	if sc.stationID != "" {
		sc.deps.Registry.Touch(sc.stationID)
	}
	sc.send("heartbeat:ack", nil)
}

func (sc *stationConn) send(typ string, data any) {
	frame := encodeEnvelope(typ, data)
	select {
	case sc.out <- frame:
	default:
		// Connection is backed up; the snapshot on re-identify recovers it.
	}
}

func (sc *stationConn) sendError(code, msg string) {
	sc.send("error", ErrorResponse{Code: code, Message: msg})
}

func (sc *stationConn) forwardBroadcasts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sc.sub:
			select {
			case sc.out <- frame:
			default:
			}
		}
	}
}

func (sc *stationConn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sc.out:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := sc.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
