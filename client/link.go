package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quitcoach/domain"
	"quitcoach/domain/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const reconnectBackoff = 2 * time.Second

// linkFrame mirrors the server's websocket envelope.
type linkFrame struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Reader        string `json:"reader,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Link maintains the notification websocket. It reconnects with a fixed
// backoff, rejoins every subscribed room, and forces a re-fetch after each
// reconnect because anything sent while offline was lost for good.
type Link struct {
	log     *slog.Logger
	url     string
	token   string
	onEvent func(event.Event)

	// onReconnect fires after rooms were rejoined on a fresh connection.
	onReconnect func()

	mu    sync.Mutex
	rooms map[uuid.UUID]struct{}
	conn  *websocket.Conn
}

func NewLink(log *slog.Logger, url, token string, onEvent func(event.Event), onReconnect func()) *Link {
	return &Link{
		log:         log,
		url:         url,
		token:       token,
		onEvent:     onEvent,
		onReconnect: onReconnect,
		rooms:       make(map[uuid.UUID]struct{}),
	}
}

// Join subscribes to an appointment's notifications. The membership is
// remembered so it survives reconnects.
func (l *Link) Join(appointmentID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rooms[appointmentID] = struct{}{}
	l.write(linkFrame{Type: "join-appointment", AppointmentID: appointmentID.String()})
}

// NotifySent relays a content-free hint after a successful REST send so
// the other room members re-fetch without waiting for their next poll.
// Best effort: a closed link is fine, polling covers the gap.
func (l *Link) NotifySent(appointmentID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(linkFrame{Type: "message-notification", AppointmentID: appointmentID.String()})
}

func (l *Link) Leave(appointmentID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms, appointmentID)
	l.write(linkFrame{Type: "leave-appointment", AppointmentID: appointmentID.String()})
}

// write requires l.mu held.
func (l *Link) write(frame linkFrame) {
	if l.conn != nil {
		_ = l.conn.WriteJSON(frame)
	}
}

// Run dials and reads until the context ends, reconnecting after failures.
func (l *Link) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.session(ctx); err != nil {
			l.log.Warn("Notification link dropped, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectBackoff):
		}
	}
}

func (l *Link) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.url+"?token="+l.token, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.mu.Lock()
	l.conn = conn
	rooms := make([]uuid.UUID, 0, len(l.rooms))
	for room := range l.rooms {
		rooms = append(rooms, room)
	}
	l.mu.Unlock()

	for _, room := range rooms {
		if err := conn.WriteJSON(linkFrame{Type: "join-appointment", AppointmentID: room.String()}); err != nil {
			return err
		}
	}
	if l.onReconnect != nil {
		l.onReconnect()
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var frame linkFrame
		if err := conn.ReadJSON(&frame); err != nil {
			l.mu.Lock()
			l.conn = nil
			l.mu.Unlock()
			return err
		}
		if e := eventFromFrame(frame); e != nil {
			l.onEvent(e)
		}
	}
}

func eventFromFrame(frame linkFrame) event.Event {
	id, err := uuid.Parse(frame.AppointmentID)
	if err != nil {
		return nil
	}
	switch frame.Type {
	case "new-message":
		return event.NewMessage{Appointment: id}
	case "messages-read":
		return event.MessagesRead{Appointment: id, Reader: domain.Role(frame.Reader)}
	default:
		return nil
	}
}
