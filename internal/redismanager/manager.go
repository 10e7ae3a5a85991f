package redismanager

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "PC:Doc:"

// Manager issues short-lived lookup tokens that map back to a stored object
// key. Token creation is a secondary side effect of a manual upload and is
// always best-effort for callers.
type Manager struct {
	client redis.UniversalClient
	// probably conf for ttl
}

// Create Redis instance
func NewManager(redisClient redis.UniversalClient) *Manager {
	return &Manager{
		client: redisClient,
	}
}

// Create stores objectKey under a fresh token with the given TTL in seconds.
func (m *Manager) Create(ctx context.Context, objectKey string, ttl int) (string, error) {
	hash := GenerateHash()

	err := m.client.Set(ctx, tokenPrefix+hash, objectKey, time.Duration(ttl)*time.Second).Err()
	if err != nil {
		return "", err
	}

	return hash, nil
}

// Lookup resolves a token back to its object key.
func (m *Manager) Lookup(ctx context.Context, token string) (string, error) {
	return m.client.Get(ctx, tokenPrefix+token).Result()
}

func GenerateHash() string {
	src := rand.NewSource(time.Now().UnixNano() * 2)
	r := rand.New(src)

	str := strconv.Itoa(int(time.Now().UnixNano()))
	str += strconv.Itoa(r.Intn(65535))

	in := sha1.Sum([]byte(str))

	out := make([]byte, base64.URLEncoding.EncodedLen(len(in)))
	base64.URLEncoding.Encode(out, in[:])

	return string(out)
}
