package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/migrate"
)

func TestCommandsRequireDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	for _, args := range [][]string{
		{"migrate", "up"},
		{"users", "create", "--email", "a@example.com", "--name", "A"},
		{"audit", "list"},
	} {
		var out bytes.Buffer
		cmd := newRootCommand(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "missing DSN") {
			t.Fatalf("%v: expected missing DSN error, got %v", args, err)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	err := printStatus(&out, []migrate.Status{
		{Version: 1, Name: "00001_init.sql", Applied: true, AppliedAt: at},
		{Version: 2, Name: "00002_next.sql"},
	})
	if err != nil {
		t.Fatalf("print status: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "2030-01-02T03:04:05Z") || !strings.Contains(got, "pending") {
		t.Fatalf("unexpected status output:\n%s", got)
	}
}

func TestPrintAudit(t *testing.T) {
	var out bytes.Buffer
	err := printAudit(&out, audit.Page{
		Page: 1, TotalPages: 1, Total: 1,
		Entries: []audit.View{{
			Entry: audit.Entry{
				ActorName:    "Ada",
				ActorEmail:   "a*a@***",
				Action:       audit.ActionAssign,
				ResourceType: "job",
				ResourceName: "Grill",
				TargetName:   "Bob",
				TargetEmail:  "b*b@***",
			},
			ActorDisplayName: "Ada L.",
		}},
	})
	if err != nil {
		t.Fatalf("print audit: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Ada L. <a*a@***>", "job Grill", "Bob <b*b@***>", "page 1 of 1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in output:\n%s", want, got)
		}
	}
}
