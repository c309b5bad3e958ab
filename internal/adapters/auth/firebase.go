package auth

import (
	"context"
	"fmt"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier resolves callers from Firebase ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, token string) (domain.UserID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("auth: missing id token: %w", domain.ErrUnauthorized)
	}

	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("auth: verify id token: %w: %w", domain.ErrUnauthorized, err)
	}
	if tok.UID == "" {
		return "", fmt.Errorf("auth: token has no uid: %w", domain.ErrUnauthorized)
	}
	return domain.UserID(tok.UID), nil
}
