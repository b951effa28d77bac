package webapp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxFormBytes bounds the urlencoded body read by EmailSending.
const maxFormBytes = 1 << 20

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Cc      []string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailSending turns a submitted form into an email, then redirects to a
// success or failure location.
type EmailSending struct {
	mailer     Mailer
	parameters []string
	subject    string
	from       string
	to         string
	cc         []string

	successLocation string
	failureLocation string
	successHandler  Handler
	failureHandler  Handler

	logger *zap.Logger
}

// EmailConfig configures an EmailSending handler.
type EmailConfig struct {
	// Parameters are the form fields copied into the body, in order.
	Parameters []string
	Subject    string
	From       string
	To         string
	Cc         []string

	SuccessLocation string
	FailureLocation string
	// SuccessHandler and FailureHandler, when set, take over from the
	// corresponding redirect.
	SuccessHandler Handler
	FailureHandler Handler
}

// NewEmailSending returns a handler sending through mailer.
func NewEmailSending(mailer Mailer, cfg EmailConfig, logger *zap.Logger) (*EmailSending, error) {
	if mailer == nil {
		return nil, fmt.Errorf("email sender: mailer is required")
	}
	if cfg.SuccessHandler == nil && cfg.SuccessLocation == "" {
		return nil, fmt.Errorf("email sender: success location is required")
	}
	if cfg.FailureHandler == nil && cfg.FailureLocation == "" {
		return nil, fmt.Errorf("email sender: failure location is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSending{
		mailer:          mailer,
		parameters:      cfg.Parameters,
		subject:         cfg.Subject,
		from:            cfg.From,
		to:              cfg.To,
		cc:              cfg.Cc,
		successLocation: cfg.SuccessLocation,
		failureLocation: cfg.FailureLocation,
		successHandler:  cfg.SuccessHandler,
		failureHandler:  cfg.FailureHandler,
		logger:          logger,
	}, nil
}

func (e *EmailSending) HandleGet(s Session, req *http.Request, _ Variables) {
	s.SendResponse(BadRequestHead(s, req), "")
}

func (e *EmailSending) HandleHead(s Session, req *http.Request, _ Variables) {
	s.SendResponse(BadRequestHead(s, req), "")
}

func (e *EmailSending) HandlePost(s Session, req *http.Request, vars Variables) {
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxFormBytes))
	if err != nil {
		e.logger.Error("Error sending email: failed to read form", zap.Error(err))
		e.fail(s, req, vars)
		return
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		e.logger.Error("Error sending email: malformed form", zap.Error(err))
		e.fail(s, req, vars)
		return
	}

	msg := Message{
		From:    e.from,
		To:      e.to,
		Cc:      e.cc,
		Subject: e.subject,
		Body:    e.body(s, req, form),
	}

	s.Async(func(ctx context.Context) func() {
		err := e.mailer.Send(ctx, msg)
		return func() {
			if err != nil {
				e.logger.Error("Error sending email", zap.Error(err))
				e.fail(s, req, vars)
				return
			}
			e.succeed(s, req, vars)
		}
	})
}

// body renders the client address followed by each configured parameter.
func (e *EmailSending) body(s Session, req *http.Request, form url.Values) string {
	var b strings.Builder
	b.WriteString("\r\n")

	ip := req.Header.Get("X-Real-IP")
	if ip == "" {
		ip = req.Header.Get("HTTP_X_REAL_IP")
	}
	if ip == "" {
		ip = s.RemoteIP()
	}
	b.WriteString("IP: " + ip + "\r\n")

	for _, name := range e.parameters {
		b.WriteString(name + ":\r\n" + form.Get(name) + "\r\n\r\n")
	}
	return b.String()
}

func (e *EmailSending) succeed(s Session, req *http.Request, vars Variables) {
	if e.successHandler != nil {
		e.successHandler.HandlePost(s, req, vars)
		return
	}
	s.SendResponse(Redirect(s, req, e.successLocation, false), e.successLocation)
}

func (e *EmailSending) fail(s Session, req *http.Request, vars Variables) {
	if e.failureHandler != nil {
		e.failureHandler.HandlePost(s, req, vars)
		return
	}
	s.SendResponse(Redirect(s, req, e.failureLocation, false), e.failureLocation)
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	Host      string
	Port      int
	User      string
	Password  string
	UserAgent string
	// UseTLS upgrades the connection with STARTTLS before authenticating.
	UseTLS  bool
	Timeout time.Duration
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	timeout := m.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake with %s: %w", addr, err)
	}
	defer client.Close()

	if m.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.User != "" || m.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", m.User, m.Password, m.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range append([]string{msg.To}, msg.Cc...) {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := io.WriteString(w, m.render(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA close: %w", err)
	}
	return client.Quit()
}

func (m *SMTPMailer) render(msg Message) string {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	if len(msg.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(msg.Cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	if m.UserAgent != "" {
		b.WriteString("User-Agent: " + m.UserAgent + "\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
