package memory

import (
	"context"
	"testing"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

func TestMessageStore_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()
	user := domain.UserID("u1")

	for _, text := range []string{"one", "two", "three", "four"} {
		if _, err := s.CreateMessage(ctx, user, domain.MessageCreate{Text: text}); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}
	if _, err := s.CreateMessage(ctx, "other", domain.MessageCreate{Text: "elsewhere"}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	msgs, err := s.ListMessages(ctx, user, 2, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "four" || msgs[1].Text != "three" {
		t.Fatalf("unexpected page: %+v", texts(msgs))
	}

	msgs, _ = s.ListMessages(ctx, user, 2, 3)
	if len(msgs) != 1 || msgs[0].Text != "one" {
		t.Fatalf("unexpected offset page: %+v", texts(msgs))
	}

	msgs, _ = s.ListMessages(ctx, user, 0, 0)
	if len(msgs) != 4 {
		t.Fatalf("expected all 4 messages, got %d", len(msgs))
	}
}

func TestMessageStore_DistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	a, _ := s.CreateMessage(ctx, "u", domain.MessageCreate{ClientID: "same", Text: "hi"})
	b, _ := s.CreateMessage(ctx, "u", domain.MessageCreate{ClientID: "same", Text: "hi"})
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %s twice", a.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to default to now")
	}
}

func TestMessageStore_StoredMessagesAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	md := &domain.UserMetadata{
		GeoData:    &domain.GeoData{Latitude: 37.5, Longitude: 127.0},
		DeviceInfo: map[string]string{"os": "ios"},
	}
	am := &domain.AgentMetadata{Medias: []domain.Media{{Title: "Palace", Type: domain.MediaTypeImage, URL: "https://img"}}}
	created, err := s.CreateMessage(ctx, "u", domain.MessageCreate{Text: "original", UserMetadata: md, AgentMetadata: am})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	created.Text = "mutated"
	created.UserMetadata.DeviceInfo["os"] = "android"
	md.GeoData.Latitude = 99
	am.Medias[0].URL = "https://other"

	msgs, _ := s.ListMessages(ctx, "u", 0, 0)
	got := msgs[0]
	if got.Text != "original" || got.UserMetadata.GeoData.Latitude != 37.5 || got.UserMetadata.DeviceInfo["os"] != "ios" {
		t.Errorf("stored message changed: %+v %+v", got, got.UserMetadata)
	}
	if got.AgentMetadata.Medias[0].URL != "https://img" {
		t.Errorf("stored media changed: %+v", got.AgentMetadata.Medias)
	}

	got.Text = "listed and mutated"
	again, _ := s.ListMessages(ctx, "u", 0, 0)
	if again[0].Text != "original" {
		t.Errorf("listed messages must be copies, got %q", again[0].Text)
	}
}

func TestPlaceLocator_FiltersAndOrders(t *testing.T) {
	loc := NewPlaceLocator(
		domain.PlaceCandidate{ID: "far", Name: "Far", Active: true, Narrative: "story",
			Location: domain.Location{Latitude: 37.52, Longitude: 127.0}},
		domain.PlaceCandidate{ID: "near", Name: "Near", Active: true, Narrative: "story",
			Location: domain.Location{Latitude: 37.5005, Longitude: 127.0}},
		domain.PlaceCandidate{ID: "inactive", Name: "Inactive", Active: false, Narrative: "story",
			Location: domain.Location{Latitude: 37.5, Longitude: 127.0}},
		domain.PlaceCandidate{ID: "silent", Name: "Silent", Active: true,
			Location: domain.Location{Latitude: 37.5, Longitude: 127.0}},
		domain.PlaceCandidate{ID: "mid", Name: "Mid", Active: true, Narrative: "story",
			Location: domain.Location{Latitude: 37.504, Longitude: 127.0}},
	)

	got, err := loc.SearchNearby(context.Background(), domain.NearbyQuery{
		Latitude: 37.5, Longitude: 127.0, RadiusMeters: 1000,
		ActiveOnly: true, HasNarrative: true, Limit: 5,
	})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "mid" {
		ids := make([]domain.PlaceID, len(got))
		for i, p := range got {
			ids[i] = p.ID
		}
		t.Fatalf("unexpected result %v", ids)
	}
	if got[0].DistanceMeters <= 0 || got[0].DistanceMeters > 100 {
		t.Errorf("unexpected distance %v", got[0].DistanceMeters)
	}
}

func TestHaversine(t *testing.T) {
	// one degree of latitude is about 111.2 km
	d := haversineMeters(0, 0, 1, 0)
	if d < 111000 || d > 111400 {
		t.Fatalf("unexpected distance %v", d)
	}
}

func texts(msgs []*domain.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
