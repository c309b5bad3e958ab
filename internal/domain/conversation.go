package domain

// MediaType classifies an attachment on an agent message.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
)

// GeoData is the position the client reported when sending a message.
type GeoData struct {
	Latitude  float64
	Longitude float64
}

// Validate checks that the coordinates are on the globe.
func (g *GeoData) Validate() error {
	if g == nil {
		return ErrInvalidInput
	}
	if g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
		return ErrInvalidInput
	}
	return nil
}

// UserMetadata is supplied by the client with every user message.
type UserMetadata struct {
	GeoData    *GeoData
	DeviceInfo map[string]string
}

// Media is an attachment shown next to an agent reply.
type Media struct {
	Title string
	Type  MediaType
	URL   string
}

// AgentMetadata carries what the agent attached to a reply. The place a reply was
// generated from is only recorded here.
type AgentMetadata struct {
	Medias []Media
}

// ChatMessage is one entry of a user's conversation log. Stores never update a
// message once created.
type ChatMessage struct {
	ID       MessageID
	ClientID string // id assigned by the client app, may be empty
	UserID   UserID

	Text         string
	MarkdownText string
	CreatedAt    Timestamp
	AIAgent      bool

	UserMetadata  *UserMetadata
	AgentMetadata *AgentMetadata
}

// MessageCreate holds the fields a caller supplies when appending to the log.
type MessageCreate struct {
	ClientID      string
	Text          string
	MarkdownText  string
	CreatedAt     Timestamp
	AIAgent       bool
	UserMetadata  *UserMetadata
	AgentMetadata *AgentMetadata
}

// ExchangeEvent announces that a user message and its reply were persisted.
type ExchangeEvent struct {
	UserID         UserID      `json:"user_id"`
	UserMessageID  MessageID   `json:"user_message_id"`
	ReplyMessageID MessageID   `json:"reply_message_id"`
	PlaceID        PlaceID     `json:"place_id,omitempty"`
	PlaceName      string      `json:"place_name,omitempty"`
	Backend        BackendName `json:"backend,omitempty"`
	CreatedAt      Timestamp   `json:"created_at"`
}
