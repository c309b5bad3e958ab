package domain

import "context"

// ChatBackend is one chat-completion provider. Each implementation converts the
// shared PromptMessage sequence into its own wire format.
type ChatBackend interface {
	Name() BackendName
	Complete(ctx context.Context, messages []PromptMessage, opts CallOptions) (string, error)
}

// MessageStore is the append-only per-user conversation log.
type MessageStore interface {
	CreateMessage(ctx context.Context, userID UserID, in MessageCreate) (*ChatMessage, error)
	// ListMessages returns up to limit messages, most recent first.
	ListMessages(ctx context.Context, userID UserID, limit, offset int) ([]*ChatMessage, error)
}

// PlaceLocator finds points of interest around a coordinate, best match first.
type PlaceLocator interface {
	SearchNearby(ctx context.Context, q NearbyQuery) ([]*PlaceCandidate, error)
}

// IdentityVerifier turns a caller credential into a user id.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (UserID, error)
}

// EventPublisher announces persisted exchanges to other services.
type EventPublisher interface {
	PublishExchange(ctx context.Context, ev ExchangeEvent) error
}
