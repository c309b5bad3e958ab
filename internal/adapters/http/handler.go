package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PabloGalante/docent-agent/internal/app/conversation"
	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

const DefaultBasePath = "/api/v1/chat"

// maxRequestBytes bounds a new message body.
const maxRequestBytes = 64 << 10

// Options configure the HTTP surface.
type Options struct {
	// BasePath prefixes the chat routes, e.g. /api/v1/chat.
	BasePath string
	// APIKeys accepted in X-API-Key. Empty disables the check.
	APIKeys []string
	// Verifier resolves the caller identity.
	Verifier domain.IdentityVerifier
	// UserIDHeader, when set, is read as the identity credential instead of
	// the Authorization bearer token.
	UserIDHeader string
	CORSOrigins  []string
	// Timeout bounds each request. Zero means 60s.
	Timeout time.Duration
}

type Server struct {
	svc *conversation.Service
}

func NewServer(svc *conversation.Service, opts Options) http.Handler {
	s := &Server{svc: svc}

	prefix := opts.BasePath
	if prefix == "" {
		prefix = DefaultBasePath
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withLogging)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(withCORS(opts.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(withAPIKey(opts.APIKeys))
		r.Use(withIdentity(opts.Verifier, opts.UserIDHeader))

		r.Post(prefix+"/messages", s.handleNewMessage)
		r.Get(prefix+"/messages", s.handleListMessages)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

// geoDataDTO uses pointers so a missing coordinate is told apart from zero.
type geoDataDTO struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type userMetadataDTO struct {
	GeoData    *geoDataDTO       `json:"geo_data,omitempty"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}

type mediaDTO struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	URL   string `json:"url"`
}

type agentMetadataDTO struct {
	Medias []mediaDTO `json:"medias"`
}

type newMessageRequest struct {
	ID           string           `json:"id"`
	Text         string           `json:"text"`
	CreatedAt    string           `json:"createdAt"`
	UserMetadata *userMetadataDTO `json:"user_metadata"`
}

// messageResponse uses the field names of the stored documents the mobile
// client already reads.
type messageResponse struct {
	ID                string            `json:"_id"`
	ClientID          string            `json:"client_id,omitempty"`
	UserID            string            `json:"user_id"`
	Text              string            `json:"text"`
	MarkdownText      string            `json:"markdown_text,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	AIAgent           bool              `json:"ai_agent"`
	UserMetadata      *userMetadataDTO  `json:"user_metadata,omitempty"`
	DocentProMetadata *agentMetadataDTO `json:"docentpro_metadata,omitempty"`
}

type newMessageResponse struct {
	UserMessage      messageResponse `json:"user_message"`
	DocentProMessage messageResponse `json:"docentpro_message"`
}

type listMessagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

type envelope struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleNewMessage(w http.ResponseWriter, r *http.Request) {
	var req newMessageRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_input", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}

	metadata, err := fromUserMetadataDTO(req.UserMetadata)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := s.svc.HandleMessage(r.Context(), conversation.HandleMessageInput{
		UserID:       userIDFromContext(r.Context()),
		ClientID:     req.ID,
		Text:         req.Text,
		CreatedAt:    req.CreatedAt,
		UserMetadata: metadata,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, newMessageResponse{
		UserMessage:      toMessageResponse(out.UserMessage),
		DocentProMessage: toMessageResponse(out.ReplyMessage),
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "offset must be an integer")
		return
	}

	msgs, err := s.svc.ListMessages(r.Context(), userIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	writeSuccess(w, listMessagesResponse{Messages: out})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

// fromUserMetadataDTO rejects geo data with a missing coordinate. Absent
// metadata or geo data is left to the service to reject.
func fromUserMetadataDTO(d *userMetadataDTO) (*domain.UserMetadata, error) {
	if d == nil {
		return nil, nil
	}
	md := &domain.UserMetadata{DeviceInfo: d.DeviceInfo}
	if g := d.GeoData; g != nil {
		if g.Latitude == nil || g.Longitude == nil {
			return nil, fmt.Errorf("%w: geo_data requires latitude and longitude", domain.ErrInvalidInput)
		}
		md.GeoData = &domain.GeoData{Latitude: *g.Latitude, Longitude: *g.Longitude}
	}
	return md, nil
}

func toMessageResponse(m *domain.ChatMessage) messageResponse {
	resp := messageResponse{
		ID:           string(m.ID),
		ClientID:     m.ClientID,
		UserID:       string(m.UserID),
		Text:         m.Text,
		MarkdownText: m.MarkdownText,
		CreatedAt:    m.CreatedAt,
		AIAgent:      m.AIAgent,
	}
	if md := m.UserMetadata; md != nil {
		resp.UserMetadata = &userMetadataDTO{DeviceInfo: md.DeviceInfo}
		if md.GeoData != nil {
			lat, lon := md.GeoData.Latitude, md.GeoData.Longitude
			resp.UserMetadata.GeoData = &geoDataDTO{Latitude: &lat, Longitude: &lon}
		}
	}
	if am := m.AgentMetadata; am != nil {
		resp.DocentProMetadata = &agentMetadataDTO{Medias: make([]mediaDTO, 0, len(am.Medias))}
		for _, media := range am.Medias {
			resp.DocentProMetadata.Medias = append(resp.DocentProMetadata.Medias, mediaDTO{
				Title: media.Title,
				Type:  string(media.Type),
				URL:   media.URL,
			})
		}
	}
	return resp
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Status: "error", Error: &errorBody{Code: code, Message: msg}})
}

// writeServiceError maps domain errors to status codes. Internal details are
// logged, not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrBackendUnavailable):
		observability.LoggerFromContext(r.Context()).Error("backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", "chat backend unavailable")
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
