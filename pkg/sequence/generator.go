package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"dulpton-point/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// ReferralCodeLength is the length of every generated referral code.
const ReferralCodeLength = 8

type Generator interface {
	// NextReferralCode returns a candidate code; callers still rely on the
	// store's unique index and retry on collision.
	NextReferralCode(ctx context.Context) (string, error)
	NextTransactionNumber(ctx context.Context, at time.Time) (string, error)
}

// RedisGenerator derives codes from redis counters so concurrent processes
// rarely collide.
type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{rdb: p.Redis}
}

func (g *RedisGenerator) NextReferralCode(ctx context.Context) (string, error) {
	seq, err := g.rdb.Incr(ctx, rediskey.Sequence("referral")).Result()
	if err != nil {
		return "", err
	}
	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) >= ReferralCodeLength {
		return encoded[len(encoded)-ReferralCodeLength:], nil
	}
	suffix, err := randomAlphaNumeric(ReferralCodeLength - len(encoded))
	if err != nil {
		return "", err
	}
	return suffix + encoded, nil
}

func (g *RedisGenerator) NextTransactionNumber(ctx context.Context, at time.Time) (string, error) {
	day := at.UTC().Format("20060102")
	key := rediskey.Sequence("txn:" + day)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if seq == 1 {
		_ = g.rdb.Expire(ctx, key, 48*time.Hour).Err()
	}

	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) < 6 {
		encoded = strings.Repeat("0", 6-len(encoded)) + encoded
	}
	return fmt.Sprintf("DLP-%s-%s", day, encoded), nil
}

// RandomGenerator needs no backing service.
type RandomGenerator struct{}

func NewRandomGenerator() Generator {
	return RandomGenerator{}
}

func (RandomGenerator) NextReferralCode(context.Context) (string, error) {
	return randomAlphaNumeric(ReferralCodeLength)
}

func (RandomGenerator) NextTransactionNumber(_ context.Context, at time.Time) (string, error) {
	suffix, err := randomAlphaNumeric(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DLP-%s-%s", at.UTC().Format("20060102"), suffix), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
