package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"quitcoach/auth"
	"quitcoach/contract"
	"quitcoach/domain"
	"quitcoach/domain/event"
	"quitcoach/observability"
	"quitcoach/realtime"
	"quitcoach/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 8 * 1024
)

// wsFrame is the envelope for both directions of the realtime channel.
// Outbound frames are content-free signals; the client re-fetches over
// REST, which stays the source of truth.
type wsFrame struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Reader        string `json:"reader,omitempty"`
	Error         string `json:"error,omitempty"`
}

type WSHandler struct {
	log          *slog.Logger
	upgrader     *websocket.Upgrader
	appointments *services.AppointmentService
	messages     *services.MessageService
	registry     contract.Registry
	fanout       *realtime.Fanout
	monitor      *observability.Monitor
	sinkBuffer   int
}

func NewWSHandler(log *slog.Logger, appointments *services.AppointmentService,
	messages *services.MessageService, registry contract.Registry,
	fanout *realtime.Fanout, monitor *observability.Monitor, sinkBuffer int) *WSHandler {
	return &WSHandler{
		log: log,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		appointments: appointments,
		messages:     messages,
		registry:     registry,
		fanout:       fanout,
		monitor:      monitor,
		sinkBuffer:   sinkBuffer,
	}
}

// wsConn serializes writes; frames come from both the read loop (errors)
// and the write pump (events, pings).
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeFrame(frame wsFrame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame) == nil
}

func (c *wsConn) writeControl(messageType int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, nil) == nil
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}

	sink := realtime.NewChannelSink(h.sinkBuffer)
	h.monitor.ConnOpened()
	h.log.Info("Realtime connection opened", "principal", p.ID, "sink", sink.ID())

	done := make(chan struct{})
	go h.writePump(conn, sink, done)
	h.readPump(r, conn, p, sink)

	close(done)
	h.registry.LeaveAll(sink.ID())
	h.monitor.ConnClosed()
	_ = raw.Close()
	h.log.Info("Realtime connection closed", "principal", p.ID, "sink", sink.ID())
}

// readPump consumes client frames until the connection drops. Commands
// reuse the same service operations as the REST endpoints, so the channel
// grants no extra authority.
func (h *WSHandler) readPump(r *http.Request, conn *wsConn, p domain.Principal, sink *realtime.ChannelSink) {
	conn.conn.SetReadLimit(maxFrameSize)
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			conn.writeFrame(wsFrame{Type: "error", Error: "malformed frame"})
			continue
		}

		id, err := uuid.Parse(frame.AppointmentID)
		if err != nil {
			conn.writeFrame(wsFrame{Type: "error", Error: "appointmentId is required"})
			continue
		}

		switch frame.Type {
		case "join-appointment":
			// Room membership requires being a party to the appointment.
			if _, err := h.appointments.Get(r.Context(), p, id); err != nil {
				conn.writeFrame(wsFrame{Type: "error", AppointmentID: frame.AppointmentID, Error: "unknown appointment"})
				continue
			}
			h.registry.Join(id, sink)
		case "leave-appointment":
			h.registry.Leave(id, sink.ID())
		case "message-notification":
			// Relayed hint after a REST send: tell the other room members,
			// the originator already has the message locally.
			if _, err := h.appointments.Get(r.Context(), p, id); err != nil {
				conn.writeFrame(wsFrame{Type: "error", AppointmentID: frame.AppointmentID, Error: "unknown appointment"})
				continue
			}
			h.fanout.Broadcast(event.NewMessage{Appointment: id}, sink.ID())
		case "mark-messages-read":
			if err := h.messages.MarkRead(r.Context(), p, id); err != nil {
				conn.writeFrame(wsFrame{Type: "error", AppointmentID: frame.AppointmentID, Error: err.Error()})
			}
		default:
			conn.writeFrame(wsFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}

// writePump owns all writes on the connection: translated events from the
// sink plus the keepalive pings.
func (h *WSHandler) writePump(conn *wsConn, sink *realtime.ChannelSink, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			conn.writeControl(websocket.CloseMessage)
			return
		case e := <-sink.Events():
			if !conn.writeFrame(frameFor(e)) {
				return
			}
		case <-ticker.C:
			if !conn.writeControl(websocket.PingMessage) {
				return
			}
		}
	}
}

func frameFor(e event.Event) wsFrame {
	switch ev := e.(type) {
	case event.NewMessage:
		return wsFrame{Type: "new-message", AppointmentID: ev.Appointment.String()}
	case event.MessagesRead:
		return wsFrame{Type: "messages-read", AppointmentID: ev.Appointment.String(), Reader: string(ev.Reader)}
	default:
		return wsFrame{Type: "notification", AppointmentID: e.AppointmentID().String()}
	}
}
