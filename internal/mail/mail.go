// Package mail delivers login links.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/langalex/henry/internal/audit"
)

// LoginLink is the message published for the mail worker.
type LoginLink struct {
	To     string    `json:"to"`
	Link   string    `json:"link"`
	SentAt time.Time `json:"sent_at"`
}

// LogSender writes login links to the log instead of mailing them. Links are
// only included when ShowLinks is set, which is meant for development.
type LogSender struct {
	Log       zerolog.Logger
	ShowLinks bool
}

func (s LogSender) SendLoginLink(_ context.Context, address, link string) error {
	ev := s.Log.Info().Str("to", audit.MaskEmail(address))
	if s.ShowLinks {
		ev = ev.Str("link", link)
	}
	ev.Msg("login link")
	return nil
}

// Publisher is the subset of *nats.Conn used for sending.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSender publishes login links as JSON for an external mail worker.
type NATSSender struct {
	pub     Publisher
	subject string
	now     func() time.Time
	closer  func()
}

// NewNATSSender publishes on subject through pub.
func NewNATSSender(pub Publisher, subject string) (*NATSSender, error) {
	if pub == nil {
		return nil, errors.New("mail: publisher is required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.New("mail: subject is required")
	}
	return &NATSSender{pub: pub, subject: subject, now: func() time.Time { return time.Now().UTC() }}, nil
}

// DialNATS connects to url and returns a sender publishing on subject.
func DialNATS(url, subject string, opts ...nats.Option) (*NATSSender, error) {
	opts = append([]nats.Option{nats.Name("henry-api")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: connect nats: %w", err)
	}
	s, err := NewNATSSender(nc, subject)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return s, nil
}

func (s *NATSSender) SendLoginLink(_ context.Context, address, link string) error {
	data, err := json.Marshal(LoginLink{To: address, Link: link, SentAt: s.now()})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("mail: publish %s: %w", s.subject, err)
	}
	return nil
}

// Close drains the connection opened by DialNATS.
func (s *NATSSender) Close() {
	if s != nil && s.closer != nil {
		s.closer()
	}
}
