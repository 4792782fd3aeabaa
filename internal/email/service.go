package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"os"
	"time"

	"github.com/redmonkez12/lms-auth-api/internal/logging"
)

// Purpose selects which OTP email is sent.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposePasswordReset Purpose = "password_reset"
)

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	otpTTL       time.Duration
	send         sendFunc
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromEmail string, otpTTL time.Duration) *Service {
	if fromEmail == "" {
		fromEmail = smtpUser
	}
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    fromEmail,
		otpTTL:       otpTTL,
		send:         sendMail,
	}
}

// SendOTP mails a one-time code to the user.
// This method is designed to be called in a goroutine
func (s *Service) SendOTP(ctx context.Context, toEmail, otp string, purpose Purpose) error {
	logger := logging.GetLoggerFromContext(ctx).WithFields(map[string]any{
		"email":   toEmail,
		"purpose": string(purpose),
	})

	subject, body, err := s.render(otp, purpose)
	if err != nil {
		logger.Error("failed to render email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if err := s.sendEmail(ctx, toEmail, subject, body); err != nil {
		logger.Error("failed to send otp email", "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("otp email sent")
	return nil
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	if s.smtpHost == "" {
		return fmt.Errorf("smtp host is not configured")
	}

	var auth smtp.Auth
	if s.smtpUser != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := net.JoinHostPort(s.smtpHost, s.smtpPort)
	return s.send(ctx, addr, auth, s.fromEmail, []string{to}, msg)
}

// sendMail is smtp.SendMail bound to ctx. The dial honours cancellation and
// the context deadline is set on the connection, so a stalled server cannot
// hold the caller past it.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) (err error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		if err == nil {
			return
		}
		ctxErr := ctx.Err()
		// The connection deadline can fire just before the context timer does.
		if ctxErr == nil && errors.Is(err, os.ErrDeadlineExceeded) {
			ctxErr = context.DeadlineExceeded
		}
		if ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
	}()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *Service) render(otp string, purpose Purpose) (subject, body string, err error) {
	var heading, intro string
	switch purpose {
	case PurposeSignup:
		subject = "Verify your email"
		heading = "Confirm your signup"
		intro = "Use the code below to finish creating your account."
	case PurposePasswordReset:
		subject = "Reset your password"
		heading = "Password reset"
		intro = "Use the code below to reset your password. If you did not ask for a reset, ignore this email."
	default:
		return "", "", fmt.Errorf("unknown email purpose %q", purpose)
	}

	var buf bytes.Buffer
	data := struct {
		Heading string
		Intro   string
		OTP     string
		Minutes int
	}{
		Heading: heading,
		Intro:   intro,
		OTP:     otp,
		Minutes: int(s.otpTTL.Minutes()),
	}
	if err := otpTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("execute template: %w", err)
	}

	return subject, buf.String(), nil
}

var otpTemplate = template.Must(template.New("otp").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .code {
            font-size: 32px;
            letter-spacing: 8px;
            font-weight: bold;
            color: #4F46E5;
            text-align: center;
            margin: 20px 0;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Heading}}</h1>
    </div>
    <div class="content">
        <p>{{.Intro}}</p>
        <p class="code">{{.OTP}}</p>
        <p>This code expires in {{.Minutes}} minutes.</p>
    </div>
</body>
</html>
`))
