package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

// Store keeps each user's conversation under chatrooms/chatroom_<uid>/messages,
// the layout the mobile client subscribes to.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore wraps an existing Firestore client.
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func chatroomID(userID domain.UserID) string {
	return "chatroom_" + string(userID)
}

func (s *Store) messagesCol(userID domain.UserID) *firestore.CollectionRef {
	return s.client.Collection("chatrooms").Doc(chatroomID(userID)).Collection("messages")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type geoDataDoc struct {
	Latitude  float64 `firestore:"latitude"`
	Longitude float64 `firestore:"longitude"`
}

type userMetadataDoc struct {
	GeoData    *geoDataDoc       `firestore:"geo_data,omitempty"`
	DeviceInfo map[string]string `firestore:"device_info,omitempty"`
}

type mediaDoc struct {
	Title string `firestore:"title"`
	Type  string `firestore:"type"`
	URL   string `firestore:"url"`
}

type agentMetadataDoc struct {
	Medias []mediaDoc `firestore:"medias"`
}

type messageDoc struct {
	ClientID      string            `firestore:"_id"`
	UserID        string            `firestore:"user_id"`
	Text          string            `firestore:"text"`
	MarkdownText  string            `firestore:"markdown_text,omitempty"`
	CreatedAt     time.Time         `firestore:"createdAt"`
	AIAgent       bool              `firestore:"ai_agent"`
	UserMetadata  *userMetadataDoc  `firestore:"user_metadata,omitempty"`
	AgentMetadata *agentMetadataDoc `firestore:"docentpro_metadata,omitempty"`
}

func toDoc(userID domain.UserID, id domain.MessageID, in domain.MessageCreate, createdAt time.Time) messageDoc {
	doc := messageDoc{
		ClientID:     in.ClientID,
		UserID:       string(userID),
		Text:         in.Text,
		MarkdownText: in.MarkdownText,
		CreatedAt:    createdAt,
		AIAgent:      in.AIAgent,
	}
	// the client keys its message list on _id
	if doc.ClientID == "" {
		doc.ClientID = string(id)
	}

	if um := in.UserMetadata; um != nil {
		doc.UserMetadata = &userMetadataDoc{DeviceInfo: um.DeviceInfo}
		if um.GeoData != nil {
			doc.UserMetadata.GeoData = &geoDataDoc{
				Latitude:  um.GeoData.Latitude,
				Longitude: um.GeoData.Longitude,
			}
		}
	}

	if am := in.AgentMetadata; am != nil {
		doc.AgentMetadata = &agentMetadataDoc{}
		for _, m := range am.Medias {
			doc.AgentMetadata.Medias = append(doc.AgentMetadata.Medias, mediaDoc{
				Title: m.Title,
				Type:  string(m.Type),
				URL:   m.URL,
			})
		}
	}
	return doc
}

func fromDoc(id string, doc messageDoc) *domain.ChatMessage {
	msg := &domain.ChatMessage{
		ID:           domain.MessageID(id),
		ClientID:     doc.ClientID,
		UserID:       domain.UserID(doc.UserID),
		Text:         doc.Text,
		MarkdownText: doc.MarkdownText,
		CreatedAt:    doc.CreatedAt,
		AIAgent:      doc.AIAgent,
	}

	if um := doc.UserMetadata; um != nil {
		msg.UserMetadata = &domain.UserMetadata{DeviceInfo: um.DeviceInfo}
		if um.GeoData != nil {
			msg.UserMetadata.GeoData = &domain.GeoData{
				Latitude:  um.GeoData.Latitude,
				Longitude: um.GeoData.Longitude,
			}
		}
	}

	if am := doc.AgentMetadata; am != nil {
		msg.AgentMetadata = &domain.AgentMetadata{}
		for _, m := range am.Medias {
			msg.AgentMetadata.Medias = append(msg.AgentMetadata.Medias, domain.Media{
				Title: m.Title,
				Type:  domain.MediaType(m.Type),
				URL:   m.URL,
			})
		}
	}
	return msg
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateMessage(ctx context.Context, userID domain.UserID, in domain.MessageCreate) (*domain.ChatMessage, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	id := domain.MessageID(uuid.NewString())
	doc := toDoc(userID, id, in, createdAt)

	// Create fails instead of overwriting, messages are never mutated.
	if _, err := s.messagesCol(userID).Doc(string(id)).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, fmt.Errorf("firestore CreateMessage: message %s already exists", id)
		}
		return nil, fmt.Errorf("firestore CreateMessage: %w", err)
	}

	return fromDoc(string(id), doc), nil
}

func (s *Store) ListMessages(ctx context.Context, userID domain.UserID, limit, offset int) ([]*domain.ChatMessage, error) {
	q := s.messagesCol(userID).OrderBy("createdAt", firestore.Desc)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := make([]*domain.ChatMessage, 0)
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, fromDoc(snap.Ref.ID, doc))
	}
	return out, nil
}
