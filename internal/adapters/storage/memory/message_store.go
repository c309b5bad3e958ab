package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

// MessageStore is an in-memory conversation log.
// It is NOT persistent and is only suitable for development / local mode.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.UserID][]*domain.ChatMessage // oldest first
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.UserID][]*domain.ChatMessage),
		now:      time.Now,
	}
}

func (s *MessageStore) CreateMessage(_ context.Context, userID domain.UserID, in domain.MessageCreate) (*domain.ChatMessage, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	msg := &domain.ChatMessage{
		ID:            domain.MessageID(uuid.NewString()),
		ClientID:      in.ClientID,
		UserID:        userID,
		Text:          in.Text,
		MarkdownText:  in.MarkdownText,
		CreatedAt:     createdAt,
		AIAgent:       in.AIAgent,
		UserMetadata:  cloneUserMetadata(in.UserMetadata),
		AgentMetadata: cloneAgentMetadata(in.AgentMetadata),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[userID] = append(s.messages[userID], msg)
	return cloneMessage(msg), nil
}

// ListMessages returns up to limit messages, most recent first, skipping offset.
// If limit <= 0, returns all remaining.
func (s *MessageStore) ListMessages(_ context.Context, userID domain.UserID, limit, offset int) ([]*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[userID]
	if offset < 0 {
		offset = 0
	}

	out := make([]*domain.ChatMessage, 0)
	for i := len(msgs) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cloneMessage(msgs[i]))
	}
	return out, nil
}

// Len returns how many messages are stored for a user.
func (s *MessageStore) Len(userID domain.UserID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[userID])
}

// Stored messages are never handed out, callers always get a deep copy.

func cloneMessage(m *domain.ChatMessage) *domain.ChatMessage {
	c := *m
	c.UserMetadata = cloneUserMetadata(m.UserMetadata)
	c.AgentMetadata = cloneAgentMetadata(m.AgentMetadata)
	return &c
}

func cloneUserMetadata(md *domain.UserMetadata) *domain.UserMetadata {
	if md == nil {
		return nil
	}
	c := &domain.UserMetadata{}
	if md.GeoData != nil {
		geo := *md.GeoData
		c.GeoData = &geo
	}
	if md.DeviceInfo != nil {
		c.DeviceInfo = make(map[string]string, len(md.DeviceInfo))
		for k, v := range md.DeviceInfo {
			c.DeviceInfo[k] = v
		}
	}
	return c
}

func cloneAgentMetadata(am *domain.AgentMetadata) *domain.AgentMetadata {
	if am == nil {
		return nil
	}
	c := &domain.AgentMetadata{}
	if am.Medias != nil {
		c.Medias = append([]domain.Media(nil), am.Medias...)
	}
	return c
}
