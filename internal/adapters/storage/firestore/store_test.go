package firestore

import (
	"testing"
	"time"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

func TestChatroomID(t *testing.T) {
	if got := chatroomID("abc"); got != "chatroom_abc" {
		t.Fatalf("unexpected chatroom id %q", got)
	}
}

func TestToDoc_FallsBackToServerIDForClientID(t *testing.T) {
	now := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
	doc := toDoc("u1", "srv-1", domain.MessageCreate{
		Text:         "Couldn't find any attractions nearby.",
		MarkdownText: "Couldn't find any attractions nearby.",
		AIAgent:      true,
	}, now)

	if doc.ClientID != "srv-1" {
		t.Errorf("expected _id to fall back to the server id, got %q", doc.ClientID)
	}
	if doc.AgentMetadata != nil {
		t.Errorf("expected no agent metadata, got %+v", doc.AgentMetadata)
	}
	if !doc.CreatedAt.Equal(now) {
		t.Errorf("unexpected createdAt %v", doc.CreatedAt)
	}
}

func TestToDoc_KeepsMediaAndGeo(t *testing.T) {
	in := domain.MessageCreate{
		ClientID: "client-7",
		Text:     "What is this building?",
		UserMetadata: &domain.UserMetadata{
			GeoData: &domain.GeoData{Latitude: 37.5, Longitude: 127.0},
		},
		AgentMetadata: &domain.AgentMetadata{Medias: []domain.Media{
			{Title: "Gyeongbokgung Palace", Type: domain.MediaTypeImage, URL: "https://img/1.jpg"},
		}},
	}

	doc := toDoc("u1", "srv-2", in, time.Now())
	msg := fromDoc("srv-2", doc)

	if msg.ClientID != "client-7" || msg.ID != "srv-2" {
		t.Fatalf("unexpected ids: %+v", msg)
	}
	if msg.UserMetadata == nil || msg.UserMetadata.GeoData == nil || msg.UserMetadata.GeoData.Latitude != 37.5 {
		t.Fatalf("geo data lost: %+v", msg.UserMetadata)
	}
	if msg.AgentMetadata == nil || len(msg.AgentMetadata.Medias) != 1 {
		t.Fatalf("media lost: %+v", msg.AgentMetadata)
	}
	if m := msg.AgentMetadata.Medias[0]; m.Type != domain.MediaTypeImage || m.URL != "https://img/1.jpg" {
		t.Fatalf("unexpected media %+v", m)
	}
}
