package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return p.err
}

func TestLogSenderHidesAddress(t *testing.T) {
	cases := []struct {
		name      string
		showLinks bool
	}{
		{"production", false},
		{"development", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := LogSender{Log: zerolog.New(&buf), ShowLinks: tc.showLinks}
			if err := s.SendLoginLink(context.Background(), "alice@example.com", "http://app/auth/verify?token=abc"); err != nil {
				t.Fatalf("SendLoginLink: %v", err)
			}
			out := buf.String()
			if strings.Contains(out, "alice@example.com") {
				t.Fatalf("address leaked: %s", out)
			}
			if got := strings.Contains(out, "token=abc"); got != tc.showLinks {
				t.Fatalf("link present=%v, want %v: %s", got, tc.showLinks, out)
			}
		})
	}
}

func TestNATSSenderPublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	s, err := NewNATSSender(pub, "henry.mail.login")
	if err != nil {
		t.Fatalf("NewNATSSender: %v", err)
	}
	if err := s.SendLoginLink(context.Background(), "bob@example.com", "http://app/auth/verify?token=xyz"); err != nil {
		t.Fatalf("SendLoginLink: %v", err)
	}
	if pub.subject != "henry.mail.login" {
		t.Fatalf("subject = %q", pub.subject)
	}
	var msg LoginLink
	if err := json.Unmarshal(pub.data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.To != "bob@example.com" || msg.Link != "http://app/auth/verify?token=xyz" || msg.SentAt.IsZero() {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestNATSSenderErrors(t *testing.T) {
	if _, err := NewNATSSender(nil, "x"); err == nil {
		t.Fatal("expected error for nil publisher")
	}
	if _, err := NewNATSSender(&recordingPublisher{}, " "); err == nil {
		t.Fatal("expected error for empty subject")
	}
	boom := errors.New("boom")
	s, _ := NewNATSSender(&recordingPublisher{err: boom}, "subj")
	if err := s.SendLoginLink(context.Background(), "a@b.c", "link"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
