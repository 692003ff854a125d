package main

import (
	"context"
	"testing"

	"github.com/go-otp-ledger/internal/config"
	"github.com/go-otp-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSeed_RejectsBadInput(t *testing.T) {
	cases := []seedInput{
		{Email: "", Password: "long enough"},
		{Email: "not-an-email", Password: "long enough"},
		{Email: "alice@example.com", Password: "short"},
	}
	for _, in := range cases {
		_, err := seed(context.Background(), &config.Config{}, in, false)
		assert.ErrorIs(t, err, domain.ErrBadRequest, "%+v", in)
	}
}
