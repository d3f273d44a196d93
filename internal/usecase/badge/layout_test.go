package badge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gatehouse/internal/ports"
)

func TestRenderUsesDefaultLayout(t *testing.T) {
	provider := NewLayoutProvider("")

	badge, err := provider.Render(ports.BadgePrintJob{
		ID:        "job-1",
		TicketID:  "tkt-1",
		BadgeData: `{"attendee_name":"Ada Okafor","tier":"speaker","ticket_id":"tkt-1"}`,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if badge.JobID != "job-1" || badge.TicketID != "tkt-1" {
		t.Fatalf("badge = %+v", badge)
	}

	joined := strings.Join(badge.Lines, "\n")
	for _, want := range []string{"ATTENDEE", "* SPEAKER *", "ADA OKAFOR", "Tier: speaker", "Ticket: tkt-1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("line %q missing:\n%s", want, joined)
		}
	}
}

func TestRenderSkipsEmptyFields(t *testing.T) {
	provider := NewLayoutProvider("")

	badge, err := provider.Render(ports.BadgePrintJob{
		ID:        "job-1",
		TicketID:  "tkt-1",
		BadgeData: `{"attendee_name":"Ada Okafor"}`,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	joined := strings.Join(badge.Lines, "\n")
	if strings.Contains(joined, "Tier:") {
		t.Fatalf("empty tier rendered:\n%s", joined)
	}
}

func TestLoadAndReloadLayoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	first := `
version = 1

[header]
title = "GUEST"

[[fields]]
source = "attendee_name"
`
	if err := os.WriteFile(path, []byte(first), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	provider := NewLayoutProvider(path)
	if provider.Current().Header.Title != "GUEST" {
		t.Fatalf("initial title = %q", provider.Current().Header.Title)
	}

	second := strings.Replace(first, "GUEST", "VISITOR", 1)
	if err := os.WriteFile(path, []byte(second), 0o644); err != nil {
		t.Fatalf("rewrite layout: %v", err)
	}
	if err := provider.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if provider.Current().Header.Title != "VISITOR" {
		t.Fatalf("reloaded title = %q", provider.Current().Header.Title)
	}
}

func TestReloadKeepsProfileOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	valid := `
version = 1

[header]
title = "GUEST"

[[fields]]
source = "attendee_name"
`
	if err := os.WriteFile(path, []byte(valid), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	provider := NewLayoutProvider(path)

	if err := os.WriteFile(path, []byte("version = ["), 0o644); err != nil {
		t.Fatalf("corrupt layout: %v", err)
	}
	if err := provider.Reload(); err == nil {
		t.Fatalf("Reload() error = nil, want parse failure")
	}
	if provider.Current().Header.Title != "GUEST" {
		t.Fatalf("profile lost on bad reload: %q", provider.Current().Header.Title)
	}
}

func TestMissingLayoutFileFallsBackToDefault(t *testing.T) {
	provider := NewLayoutProvider(filepath.Join(t.TempDir(), "absent.toml"))

	if len(provider.Current().Fields) == 0 {
		t.Fatalf("no default fields")
	}
	if provider.Current().Header.Title == "" {
		t.Fatalf("no default title")
	}
}
