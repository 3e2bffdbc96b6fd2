// Package auth verifies credentials and manages bearer session
// tokens. Tokens are opaque and stored in redis with a TTL; resolving
// one yields the authenticated user id.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/FaresAhmed23/tournament/internal/errors"
)

const defaultTokenTTL = 24 * time.Hour

type Config struct {
	Redis    redis.UniversalClient
	Prefix   string
	TokenTTL time.Duration
}

type Service struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}

	return &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TokenTTL,
	}
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken mints an opaque session token for the user.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()

	if err := s.redis.Set(ctx, s.key(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	return token, nil
}

// ResolveToken returns the user id a token was issued for, refreshing
// its TTL on use.
func (s *Service) ResolveToken(ctx context.Context, token string) (string, error) {
	userID, err := s.redis.GetEx(ctx, s.key(token), s.ttl).Result()
	if err != nil {
		if err == redis.Nil {
			return "", errors.New(errors.CodeUnauthenticated,
				errors.WithMessagef("please authenticate"))
		}
		return "", fmt.Errorf("resolve token: %w", err)
	}

	return userID, nil
}

func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) key(token string) string {
	return fmt.Sprintf("%s:token:%s", s.prefix, token)
}
