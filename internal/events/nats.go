package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/examprep/backend/internal/models"
)

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes events on "<prefix>.<type>". The envelope id is sent as
// Nats-Msg-Id so JetStream streams can drop redeliveries.
type NATS struct {
	conn   msgPublisher
	prefix string
}

func NewNATS(conn *nats.Conn, prefix string) *NATS {
	return &NATS{conn: conn, prefix: prefix}
}

func (n *NATS) Subject(typ models.EventType) string {
	if n.prefix == "" {
		return string(typ)
	}
	return n.prefix + "." + string(typ)
}

func (n *NATS) Emit(ctx context.Context, ev models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := nats.NewMsg(n.Subject(ev.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}
