package conversation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PabloGalante/docent-agent/internal/adapters/llm"
	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

const (
	// NoPlaceReply is sent when nothing with a story is nearby.
	NoPlaceReply = "Couldn't find any attractions nearby."

	priorMessagesLimit = 10
	searchRadiusMeters = 1000
	searchLimit        = 5

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Router sends a prompt to a chat backend.
type Router interface {
	Send(ctx context.Context, messages []domain.PromptMessage, opts llm.SendOptions) (string, error)
}

// Options are the caller-independent settings of the chat flow.
type Options struct {
	Backend     domain.BackendName
	Language    string
	Temperature float64
}

// DefaultOptions mirror the observed production wiring.
func DefaultOptions() Options {
	return Options{
		Backend:     domain.BackendUpstage,
		Language:    "English",
		Temperature: 0.3,
	}
}

type Service struct {
	messageStore domain.MessageStore
	places       domain.PlaceLocator
	router       Router
	publisher    domain.EventPublisher
	opts         Options
	now          func() time.Time
}

// NewService wires the chat flow. publisher may be nil.
func NewService(
	messageStore domain.MessageStore,
	places domain.PlaceLocator,
	router Router,
	publisher domain.EventPublisher,
	opts Options,
) *Service {
	def := DefaultOptions()
	if opts.Backend == "" {
		opts.Backend = def.Backend
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}

	return &Service{
		messageStore: messageStore,
		places:       places,
		router:       router,
		publisher:    publisher,
		opts:         opts,
		now:          time.Now,
	}
}

type HandleMessageInput struct {
	UserID   domain.UserID
	ClientID string
	Text     string
	// CreatedAt is RFC 3339. Empty means now.
	CreatedAt    string
	UserMetadata *domain.UserMetadata
}

type HandleMessageOutput struct {
	UserMessage  *domain.ChatMessage
	ReplyMessage *domain.ChatMessage
}

// HandleMessage stores the user's message, answers it with the nearest place as
// context and stores the answer. If the reply cannot be produced, the user
// message stays stored.
func (s *Service) HandleMessage(ctx context.Context, in HandleMessageInput) (*HandleMessageOutput, error) {
	if in.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	createdAt, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	geo := in.UserMetadata.GeoData
	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"latitude", geo.Latitude,
		"longitude", geo.Longitude,
	)
	log.Info("handling chat message")

	prior, err := s.messageStore.ListMessages(ctx, in.UserID, priorMessagesLimit, 0)
	if err != nil {
		log.Error("failed to load prior messages", "error", err)
		return nil, err
	}

	userMsg, err := s.messageStore.CreateMessage(ctx, in.UserID, domain.MessageCreate{
		ClientID:     in.ClientID,
		Text:         in.Text,
		CreatedAt:    createdAt,
		UserMetadata: in.UserMetadata,
	})
	if err != nil {
		log.Error("failed to store user message", "error", err)
		return nil, err
	}

	candidates, err := s.places.SearchNearby(ctx, domain.NearbyQuery{
		Latitude:     geo.Latitude,
		Longitude:    geo.Longitude,
		RadiusMeters: searchRadiusMeters,
		ActiveOnly:   true,
		HasNarrative: true,
		Limit:        searchLimit,
	})
	if err != nil {
		log.Error("failed to search nearby places", "error", err)
		return nil, err
	}

	var (
		reply   domain.MessageCreate
		place   *domain.PlaceCandidate
		backend domain.BackendName
	)
	if len(candidates) == 0 {
		log.Info("no place nearby")
		reply = domain.MessageCreate{Text: NoPlaceReply, MarkdownText: NoPlaceReply}
	} else {
		place = candidates[0]
		backend = s.opts.Backend
		log = log.With("place_id", place.ID)

		text, err := s.generateReply(ctx, in.Text, place, prior)
		if err != nil {
			log.Error("failed to generate reply", "error", err)
			return nil, err
		}
		reply = domain.MessageCreate{
			Text:         text,
			MarkdownText: text,
			AgentMetadata: &domain.AgentMetadata{Medias: []domain.Media{{
				Title: place.Name,
				Type:  domain.MediaTypeImage,
				URL:   place.FirstPhotoURL(),
			}}},
		}
	}

	reply.AIAgent = true
	reply.CreatedAt = s.now()
	replyMsg, err := s.messageStore.CreateMessage(ctx, in.UserID, reply)
	if err != nil {
		log.Error("failed to store reply", "error", err)
		return nil, err
	}

	s.publish(ctx, userMsg, replyMsg, place, backend)

	log.Info("chat message handled", "reply_id", replyMsg.ID)
	return &HandleMessageOutput{
		UserMessage:  userMsg,
		ReplyMessage: replyMsg,
	}, nil
}

// validate runs before any store access.
func (s *Service) validate(in HandleMessageInput) (time.Time, error) {
	if _, err := domain.ParseBackendName(string(s.opts.Backend)); err != nil {
		return time.Time{}, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return time.Time{}, fmt.Errorf("text is required: %w", domain.ErrInvalidInput)
	}
	if in.UserMetadata == nil {
		return time.Time{}, fmt.Errorf("user_metadata.geo_data is required: %w", domain.ErrInvalidInput)
	}
	if err := in.UserMetadata.GeoData.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("user_metadata.geo_data: %w", err)
	}
	if in.CreatedAt == "" {
		return s.now(), nil
	}
	t, err := time.Parse(time.RFC3339, in.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("createdAt must be RFC 3339: %w", domain.ErrInvalidInput)
	}
	return t, nil
}

func (s *Service) generateReply(ctx context.Context, text string, place *domain.PlaceCandidate, prior []*domain.ChatMessage) (string, error) {
	// the store answers most recent first
	history := slices.Clone(prior)
	slices.Reverse(history)

	prompt := llm.BuildPrompt(llm.PromptInput{
		UserMessage:   text,
		Place:         place,
		PriorMessages: history,
		Language:      s.opts.Language,
		Today:         s.now(),
	})

	return s.router.Send(ctx, prompt, llm.SendOptions{
		Backend:     s.opts.Backend,
		Temperature: s.opts.Temperature,
		AgentMode:   true,
	})
}

// publish is best effort: the exchange is already stored.
func (s *Service) publish(ctx context.Context, userMsg, replyMsg *domain.ChatMessage, place *domain.PlaceCandidate, backend domain.BackendName) {
	if s.publisher == nil {
		return
	}
	ev := domain.ExchangeEvent{
		UserID:         userMsg.UserID,
		UserMessageID:  userMsg.ID,
		ReplyMessageID: replyMsg.ID,
		Backend:        backend,
		CreatedAt:      replyMsg.CreatedAt,
	}
	if place != nil {
		ev.PlaceID = place.ID
		ev.PlaceName = place.Name
	}
	if err := s.publisher.PublishExchange(ctx, ev); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to publish exchange event", "error", err)
	}
}

// ListMessages returns the user's conversation log, most recent first.
func (s *Service) ListMessages(ctx context.Context, userID domain.UserID, limit, offset int) ([]*domain.ChatMessage, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative: %w", domain.ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"limit", limit,
		"offset", offset,
	)

	msgs, err := s.messageStore.ListMessages(ctx, userID, limit, offset)
	if err != nil {
		log.Error("failed to list messages", "error", err)
		return nil, err
	}

	log.Info("fetched messages", "message_count", len(msgs))
	return msgs, nil
}
