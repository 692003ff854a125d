package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-otp-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFingerprintKey(t *testing.T) {
	key, err := fingerprintKey(&config.Config{FingerprintKey: "s3cret"}, discard)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), key)

	_, err = fingerprintKey(&config.Config{AppEnv: "production"}, discard)
	assert.ErrorContains(t, err, "FINGERPRINT_SECRET")

	k1, err := fingerprintKey(&config.Config{AppEnv: "development"}, discard)
	require.NoError(t, err)
	k2, err := fingerprintKey(&config.Config{AppEnv: "development"}, discard)
	require.NoError(t, err)
	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)
}

func TestNewChallengeBackend_Unknown(t *testing.T) {
	_, _, err := newChallengeBackend(context.Background(), &config.Config{ChallengeStore: "memcached"}, nil)
	assert.ErrorContains(t, err, "memcached")
}

func TestNewChallengeBackend_Dynamo(t *testing.T) {
	b, closeFn, err := newChallengeBackend(context.Background(), &config.Config{ChallengeStore: "dynamo"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, b)
	closeFn()
}
