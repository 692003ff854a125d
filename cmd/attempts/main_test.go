package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-otp-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLister struct{ mock.Mock }

func (m *mockLister) ListLoginBySubject(ctx context.Context, email string, limit int32) ([]domain.LoginAttempt, error) {
	args := m.Called(ctx, email, limit)
	out, _ := args.Get(0).([]domain.LoginAttempt)
	return out, args.Error(1)
}

func (m *mockLister) ListOtpBySubject(ctx context.Context, email string, limit int32) ([]domain.OtpAttempt, error) {
	args := m.Called(ctx, email, limit)
	out, _ := args.Get(0).([]domain.OtpAttempt)
	return out, args.Error(1)
}

func TestList_PrintsOneLinePerRecord(t *testing.T) {
	repo := &mockLister{}
	repo.On("ListOtpBySubject", mock.Anything, "alice@example.com", int32(5)).Return([]domain.OtpAttempt{
		{AttemptID: "01B", SubjectEmail: "alice@example.com", Success: true},
		{AttemptID: "01A", SubjectEmail: "alice@example.com"},
	}, nil)

	var buf bytes.Buffer
	err := list(context.Background(), repo, query{Email: "alice@example.com", Kind: "otp", Limit: 5}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"01B"`)
	assert.Contains(t, lines[0], `"success":true`)
	repo.AssertNotCalled(t, "ListLoginBySubject", mock.Anything, mock.Anything, mock.Anything)
}

func TestList_RejectsBadQuery(t *testing.T) {
	cases := []query{
		{Email: "", Kind: "login", Limit: 5},
		{Email: "alice@example.com", Kind: "session", Limit: 5},
		{Email: "alice@example.com", Kind: "login", Limit: 0},
	}
	for _, q := range cases {
		err := list(context.Background(), &mockLister{}, q, &bytes.Buffer{})
		assert.ErrorIs(t, err, domain.ErrBadRequest, "%+v", q)
	}
}

func TestList_StoreErrorPropagates(t *testing.T) {
	repo := &mockLister{}
	boom := errors.New("throttled")
	repo.On("ListLoginBySubject", mock.Anything, "alice@example.com", int32(20)).Return(nil, boom)

	err := list(context.Background(), repo, query{Email: "alice@example.com", Kind: "login", Limit: 20}, &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, boom)
}
