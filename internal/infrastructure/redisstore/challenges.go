package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-otp-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:challenge:"

// consumeScript marks the challenge consumed when the hash matches, it is not
// consumed yet and it has not expired at ARGV[2].
// Returns 1 accepted, 2 expired, 0 invalid or not found.
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code_hash', 'consumed', 'expires_at')
if not v[1] then
  return 0
end
if v[1] ~= ARGV[1] or v[2] == '1' then
  return 0
end
if tonumber(v[3]) < tonumber(ARGV[2]) then
  return 2
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return 1
`)

// ChallengeStore keeps one hash per email under otp:challenge:<email>.
// Keys expire natively retention after the challenge does.
type ChallengeStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewChallengeStore(client redis.UniversalClient, retention time.Duration) *ChallengeStore {
	return &ChallengeStore{client: client, retention: retention}
}

func key(email string) string { return keyPrefix + email }

func (s *ChallengeStore) Replace(ctx context.Context, c *domain.OtpChallenge) error {
	k := key(c.SubjectEmail)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k,
			"subject_email", c.SubjectEmail,
			"code_hash", c.CodeHash,
			"issued_at", c.IssuedAt.UnixMilli(),
			"expires_at", c.ExpiresAt.UnixMilli(),
			"consumed", boolFlag(c.Consumed),
		)
		p.ExpireAt(ctx, k, c.ExpiresAt.Add(s.retention))
		return nil
	})
	return err
}

func (s *ChallengeStore) Get(ctx context.Context, email string) (*domain.OtpChallenge, error) {
	m, err := s.client.HGetAll(ctx, key(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	issuedAt, err := strconv.ParseInt(m["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &domain.OtpChallenge{
		SubjectEmail: m["subject_email"],
		CodeHash:     m["code_hash"],
		IssuedAt:     time.UnixMilli(issuedAt).UTC(),
		ExpiresAt:    time.UnixMilli(expiresAt).UTC(),
		Consumed:     m["consumed"] == "1",
	}, nil
}

// Consume runs the check and the write as one script, so concurrent callers
// cannot both be accepted.
func (s *ChallengeStore) Consume(ctx context.Context, email, codeHash string, now time.Time) (domain.VerificationResult, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{key(email)}, codeHash, now.UnixMilli()).Int()
	if err != nil {
		return domain.VerificationInvalidOrNotFound, err
	}
	switch n {
	case 1:
		return domain.VerificationAccepted, nil
	case 2:
		return domain.VerificationExpired, nil
	default:
		return domain.VerificationInvalidOrNotFound, nil
	}
}

// DeleteExpired is a no-op: Redis drops the keys itself via EXPIREAT.
func (s *ChallengeStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
