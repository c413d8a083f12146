package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/audit"
	"github.com/spec-kit/session-service/internal/credential"
	"github.com/spec-kit/session-service/pkg/util"
)

// Service coordinates session credential issuance, verification, and
// destruction. The server keeps no per-session state beyond the revocation
// list; everything else lives in the signed credential itself.
type Service struct {
	codec       *credential.Codec
	revocations RevocationStore
	dispatcher  audit.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// Dependencies encapsulates requirements for the session service.
type Dependencies struct {
	Codec       *credential.Codec
	Revocations RevocationStore
	Dispatcher  audit.Dispatcher
	Logger      *zap.Logger
}

// NewService builds the service.
func NewService(deps Dependencies) *Service {
	revocations := deps.Revocations
	if revocations == nil {
		revocations = NewNoopRevocationStore()
	}
	return &Service{
		codec:       deps.Codec,
		revocations: revocations,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// Create verifies the identity token and mints a session credential. An
// empty token fails immediately with MissingToken; verification failures map
// to Unauthorized with a cause that distinguishes expiry where derivable.
func (s *Service) Create(ctx context.Context, idToken string) (string, *credential.SessionClaims, error) {
	if idToken == "" {
		return "", nil, util.NewMissingToken("ID Token is required")
	}

	cred, claims, err := s.codec.MintSessionCredential(idToken)
	if err != nil {
		reason := "token invalid"
		if credential.IsExpired(err) {
			reason = "token expired"
		}
		s.publish(ctx, audit.EventSessionRejected, "", "", reason)
		return "", nil, util.NewUnauthorized(reason)
	}

	s.publish(ctx, audit.EventSessionCreated, claims.Subject, claims.ID, "")
	return cred, claims, nil
}

// Verify validates a session credential and checks the revocation list. An
// absent credential is indistinguishable from an invalid one.
func (s *Service) Verify(ctx context.Context, cred string) (*credential.SessionClaims, error) {
	claims, err := s.codec.VerifySessionCredential(cred)
	if err != nil {
		return nil, util.NewInvalidSession()
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		// fail closed: an unreachable revocation store must not admit a
		// possibly revoked session
		s.logger.Error("revocation lookup failed", zap.Error(err))
		return nil, util.NewInvalidSession()
	}
	if revoked {
		return nil, util.NewInvalidSession()
	}

	return claims, nil
}

// Destroy revokes the credential if one is presented and succeeds
// unconditionally, even when no session existed.
func (s *Service) Destroy(ctx context.Context, cred string) error {
	claims, err := s.codec.VerifySessionCredential(cred)
	if err != nil {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.Warn("failed to revoke session", zap.String("session_id", claims.ID), zap.Error(err))
	}

	s.publish(ctx, audit.EventSessionDestroyed, claims.Subject, claims.ID, "")
	return nil
}

func (s *Service) publish(ctx context.Context, eventType audit.EventType, subject, sessionID, reason string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, audit.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: s.now(),
	})
}
