package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-otp-ledger/internal/application/auth"
	"github.com/go-otp-ledger/internal/application/otp"
	"github.com/go-otp-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Login(ctx context.Context, req auth.LoginRequest, meta auth.RequestMeta) (*auth.Challenge, error) {
	args := m.Called(ctx, req, meta)
	c, _ := args.Get(0).(*auth.Challenge)
	return c, args.Error(1)
}

func (m *mockAuthSvc) VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest, meta auth.RequestMeta) (domain.VerificationResult, error) {
	args := m.Called(ctx, req, meta)
	return args.Get(0).(domain.VerificationResult), args.Error(1)
}

func (m *mockAuthSvc) ResendOTP(ctx context.Context, req auth.ResendOTPRequest) (*auth.Challenge, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*auth.Challenge)
	return c, args.Error(1)
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:4321"
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

var wantMeta = auth.RequestMeta{IPAddress: "203.0.113.7", UserAgent: "test-agent"}

// --- Login ---

func TestLogin_OK(t *testing.T) {
	svc := &mockAuthSvc{}
	exp := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	svc.On("Login", mock.Anything, auth.LoginRequest{Email: "alice@example.com", Password: "pw"}, wantMeta).
		Return(&auth.Challenge{Email: "alice@example.com", ExpiresAt: exp}, nil)

	rec := post(NewAuthHandler(svc, "/home").Login, `{"email":"alice@example.com","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body ChallengeEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice@example.com", body.Email)
	assert.True(t, exp.Equal(body.ExpiresAt))
	assert.NotContains(t, rec.Body.String(), "code")
}

func TestLogin_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"unauthorized", fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized), http.StatusUnauthorized, "invalid email or password"},
		{"bad request", fmt.Errorf("field 'Email' failed 'email': %w", domain.ErrBadRequest), http.StatusBadRequest, "field 'Email' failed 'email'"},
		{"storage", fmt.Errorf("%w: secret table detail", domain.ErrStorage), http.StatusInternalServerError, "internal error"},
		{"delivery", fmt.Errorf("%w: 421", domain.ErrDelivery), http.StatusBadGateway, "could not send verification code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAuthSvc{}
			svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := post(NewAuthHandler(svc, "/").Login, `{"email":"alice@example.com","password":"pw"}`)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.msg)
			assert.NotContains(t, rec.Body.String(), "secret table detail")
		})
	}
}

func TestLogin_MalformedBodyStillReachesService(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, auth.LoginRequest{}, wantMeta).
		Return(nil, fmt.Errorf("field 'Email' failed 'required': %w", domain.ErrBadRequest)).Once()

	rec := post(NewAuthHandler(svc, "/").Login, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

// --- VerifyOTP ---

func TestVerifyOTP_Accepted(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("VerifyOTP", mock.Anything, auth.VerifyOTPRequest{Email: "alice@example.com", Code: "482913"}, wantMeta).
		Return(domain.VerificationAccepted, nil)

	rec := post(NewAuthHandler(svc, "/home").VerifyOTP, `{"email":"alice@example.com","code":"482913"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Verification successful","redirect_url":"/home"}`, rec.Body.String())
}

func TestVerifyOTP_ExpiredAndInvalidLookTheSame(t *testing.T) {
	for _, res := range []domain.VerificationResult{domain.VerificationExpired, domain.VerificationInvalidOrNotFound} {
		svc := &mockAuthSvc{}
		svc.On("VerifyOTP", mock.Anything, mock.Anything, mock.Anything).Return(res, nil)

		rec := post(NewAuthHandler(svc, "/").VerifyOTP, `{"email":"alice@example.com","code":"482913"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, res.String())
		assert.JSONEq(t, `{"error":"Invalid or expired OTP code"}`, rec.Body.String())
	}
}

func TestVerifyOTP_StorageFailure(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("VerifyOTP", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.VerificationInvalidOrNotFound, fmt.Errorf("%w: timeout", domain.ErrStorage))

	rec := post(NewAuthHandler(svc, "/").VerifyOTP, `{"email":"alice@example.com","code":"482913"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- ResendOTP ---

func TestResendOTP_SameAnswerForKnownUnknownAndCooldown(t *testing.T) {
	errs := []error{
		nil,
		fmt.Errorf("resend: %w", domain.ErrIdentityNotFound),
		&otp.CooldownError{Remaining: 30 * time.Second},
	}
	for _, e := range errs {
		svc := &mockAuthSvc{}
		var ch *auth.Challenge
		if e == nil {
			ch = &auth.Challenge{Email: "alice@example.com"}
		}
		svc.On("ResendOTP", mock.Anything, auth.ResendOTPRequest{Email: "alice@example.com"}).Return(ch, e)

		rec := post(NewAuthHandler(svc, "/").ResendOTP, `{"email":"alice@example.com"}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"message":"If the account exists, a new code has been sent"}`, rec.Body.String())
	}
}

func TestResendOTP_Errors(t *testing.T) {
	svc := &mockAuthSvc{}
	rec := post(NewAuthHandler(svc, "/").ResendOTP, `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("ResendOTP", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: down", domain.ErrStorage))
	rec = post(NewAuthHandler(svc, "/").ResendOTP, `{"email":"alice@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
