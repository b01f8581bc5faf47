package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/domain"
	"github.com/spec-kit/hotel-booking/internal/events"
	"github.com/spec-kit/hotel-booking/internal/repository"
)

// TokenService runs the session state machine of a subject: login stores a
// refresh token, refresh exchanges it for a new access token, logout deletes it.
// The refresh token store is the only shared state; concurrent calls for one
// subject are ordered by the store's per-key atomicity.
type TokenService struct {
	codec      *auth.TokenCodec
	store      repository.RefreshTokenStore
	users      auth.UserFinder
	dispatcher events.Dispatcher
	logger     *zap.Logger

	accessTTL    time.Duration
	refreshTTL   time.Duration
	rotate       bool
	storeTimeout time.Duration
}

// TokenDependencies encapsulates collaborators of the token service.
type TokenDependencies struct {
	Codec      *auth.TokenCodec
	Store      repository.RefreshTokenStore
	Users      auth.UserFinder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTokenService builds the service.
func NewTokenService(cfg config.AuthConfig, deps TokenDependencies) *TokenService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		codec:        deps.Codec,
		store:        deps.Store,
		users:        deps.Users,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		accessTTL:    cfg.AccessTTL(),
		refreshTTL:   cfg.RefreshTTL(),
		rotate:       cfg.RotateRefreshTokens,
		storeTimeout: cfg.StoreTimeout(),
	}
}

// Login issues a token pair for an identity whose credentials were already
// verified, replacing any refresh token the subject held before.
func (s *TokenService) Login(ctx context.Context, identity *domain.AccountIdentity, now time.Time) (*domain.TokenPair, error) {
	if identity == nil {
		return nil, domain.ErrInvalidTokenRequest
	}

	pair, err := s.issuePair(identity.Email, identity.Roles, now)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.store.Put(storeCtx, identity.Email, pair.RefreshToken, now); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserLoggedIn, identity.Email, now, events.TokenIssuedPayload{
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
	return pair, nil
}

// Refresh exchanges a stored refresh token for a new access token. With
// rotation enabled the refresh token is replaced as well and the presented one
// stops working; otherwise the presented token is returned unchanged.
func (s *TokenService) Refresh(ctx context.Context, presented string, now time.Time) (*domain.TokenPair, error) {
	pair, subject, err := s.refresh(ctx, presented, now)
	if err != nil {
		s.publish(ctx, events.EventRefreshRejected, subject, now, events.RefreshRejectedPayload{
			Reason: rejectionReason(err),
		})
		return nil, err
	}

	s.publish(ctx, events.EventTokenRefreshed, subject, now, events.TokenIssuedPayload{
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Rotated:          s.rotate,
	})
	return pair, nil
}

func (s *TokenService) refresh(ctx context.Context, presented string, now time.Time) (*domain.TokenPair, string, error) {
	claims, err := s.codec.Decode(presented, now)
	if err != nil {
		return nil, "", err
	}
	subject := claims.Subject
	if claims.Kind != domain.TokenKindRefresh {
		return nil, subject, errWrongKind
	}

	if err := s.checkStored(ctx, subject, presented); err != nil {
		return nil, subject, err
	}

	user, err := s.lookupUser(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, subject, errUnknownSubject
		}
		return nil, subject, err
	}

	access, err := s.codec.Encode(domain.TokenKindAccess, subject, user.Roles, s.accessTTL, now)
	if err != nil {
		return nil, subject, err
	}
	pair := &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshToken:     presented,
		RefreshExpiresAt: claims.ExpiresAtTime(),
	}
	if !s.rotate {
		return pair, subject, nil
	}

	next, err := s.codec.Encode(domain.TokenKindRefresh, subject, nil, s.refreshTTL, now)
	if err != nil {
		return nil, subject, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	swapped, err := s.store.Swap(storeCtx, subject, presented, next, now)
	if err != nil {
		return nil, subject, err
	}
	if !swapped {
		return nil, subject, errRotationLost
	}

	pair.RefreshToken = next
	pair.RefreshExpiresAt = now.Add(s.refreshTTL)
	return pair, subject, nil
}

func (s *TokenService) checkStored(ctx context.Context, subject, presented string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rec, err := s.store.Get(storeCtx, subject)
	switch {
	case errors.Is(err, repository.ErrRefreshTokenNotFound):
		return domain.ErrRevokedOrUnknown
	case errors.Is(err, repository.ErrRefreshTokenCorrupt):
		s.logger.Warn("corrupt refresh token record", zap.String("subject", subject))
		return domain.ErrRevokedOrUnknown
	case err != nil:
		return err
	}

	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(presented)) != 1 {
		return domain.ErrRevokedOrUnknown
	}
	return nil
}

func (s *TokenService) lookupUser(ctx context.Context, subject string) (*domain.User, error) {
	lookupCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.users.FindByEmail(lookupCtx, subject)
}

// Logout deletes the subject's refresh token. It succeeds whether or not a
// token was stored. The presented access token stays valid until it expires.
func (s *TokenService) Logout(ctx context.Context, subject, _ string, now time.Time) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.store.Delete(storeCtx, subject); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserLoggedOut, subject, now, nil)
	return nil
}

// Revoke force-logs-out subject on behalf of an administrator.
func (s *TokenService) Revoke(ctx context.Context, subject, revokedBy string, now time.Time) error {
	if subject == "" {
		return domain.ErrInvalidTokenRequest
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.store.Delete(storeCtx, subject); err != nil {
		return err
	}

	s.publish(ctx, events.EventSessionRevoked, subject, now, events.SessionRevokedPayload{RevokedBy: revokedBy})
	return nil
}

func (s *TokenService) issuePair(subject string, roles []string, now time.Time) (*domain.TokenPair, error) {
	access, err := s.codec.Encode(domain.TokenKindAccess, subject, roles, s.accessTTL, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Encode(domain.TokenKindRefresh, subject, nil, s.refreshTTL, now)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func (s *TokenService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *TokenService) publish(ctx context.Context, eventType events.EventType, subject string, at time.Time, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: at,
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish auth event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
