package config

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	r   = rand.New(rand.NewSource(time.Now().UnixNano()))
	rMu sync.Mutex
)

// RandomTrailer returns a short lowercase token, used for request IDs in logs.
func RandomTrailer(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	rMu.Lock()
	defer rMu.Unlock()
	res := make([]byte, length)
	for i := 0; i < length; i++ {
		res[i] = charset[r.Intn(len(charset))]
	}
	return string(res)
}

// NewJobID identifies one upload submission on the ingest queue.
func NewJobID() string {
	return uuid.NewString()
}

// NewBaseName returns the directory key for one transcode execution. It's
// random on every call, so it can't be derived from a job ID or user input.
func NewBaseName() string {
	return uuid.NewString()
}

// NewAssetID returns a lexicographically time-ordered asset ID.
func NewAssetID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
