package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

type captured struct {
	subject string
	data    []byte
	err     error
}

func (c *captured) Publish(subject string, data []byte) error {
	c.subject = subject
	c.data = data
	return c.err
}

func TestPublishExchange(t *testing.T) {
	conn := &captured{}
	p := &Publisher{conn: conn, subject: SubjectExchange}

	ev := domain.ExchangeEvent{
		UserID:         "user-1",
		UserMessageID:  "m1",
		ReplyMessageID: "m2",
		PlaceID:        "gyeongbokgung",
		PlaceName:      "Gyeongbokgung Palace",
		Backend:        domain.BackendUpstage,
		CreatedAt:      time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC),
	}
	if err := p.PublishExchange(context.Background(), ev); err != nil {
		t.Fatalf("PublishExchange: %v", err)
	}

	if conn.subject != "docent.chat.exchange" {
		t.Errorf("unexpected subject %q", conn.subject)
	}
	var got map[string]any
	if err := json.Unmarshal(conn.data, &got); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if got["reply_message_id"] != "m2" || got["place_name"] != "Gyeongbokgung Palace" || got["backend"] != "upstage" {
		t.Errorf("unexpected payload %s", conn.data)
	}
}

func TestPublishExchange_Error(t *testing.T) {
	boom := errors.New("connection closed")
	p := &Publisher{conn: &captured{err: boom}, subject: SubjectExchange}

	if err := p.PublishExchange(context.Background(), domain.ExchangeEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
