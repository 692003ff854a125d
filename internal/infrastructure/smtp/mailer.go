package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-otp-ledger/internal/config"
	"github.com/sethvargo/go-retry"
)

// Mailer delivers one-time codes by email.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type mailer struct {
	host       string
	port       string
	from       string
	username   string
	password   string
	maxRetries uint64
	backoff    time.Duration
	send       sendFunc
}

func NewMailer(cfg *config.Config) Mailer {
	retries := cfg.SMTPMaxRetries
	if retries < 0 {
		retries = 0
	}
	return &mailer{
		host:       cfg.SMTPHost,
		port:       cfg.SMTPPort,
		from:       cfg.SMTPFrom,
		username:   cfg.SMTPUsername,
		password:   cfg.SMTPPassword,
		maxRetries: uint64(retries),
		backoff:    200 * time.Millisecond,
		send:       smtp.SendMail,
	}
}

// SendOTP sends the code to a single recipient, retrying transient failures
// with a capped Fibonacci backoff until ctx is done or retries run out.
func (m *mailer) SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	msg := buildOTPMessage(m.from, to, code, expiresAt)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	b := retry.NewFibonacci(m.backoff)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(m.maxRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := m.send(addr, auth, m.from, []string{to}, msg); err != nil {
			if isPermanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}

// isPermanent reports whether err is a 5xx SMTP reply, which a retry cannot fix.
func isPermanent(err error) bool {
	s := err.Error()
	return len(s) >= 3 && s[0] == '5' && s[1] >= '0' && s[1] <= '9' && s[2] >= '0' && s[2] <= '9'
}

func buildOTPMessage(from, to, code string, expiresAt time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your verification code is %s.\r\n\r\n", code)
	fmt.Fprintf(&b, "It expires at %s. If you did not try to sign in, you can ignore this email.\r\n",
		expiresAt.UTC().Format("15:04 MST on 2 Jan 2006"))
	return []byte(b.String())
}
