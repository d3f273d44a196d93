package gateclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/ports"
)

func TestSubmitCheckInRoundTrip(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/checkins" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"outcome":       checkin.OutcomeDuplicate,
			"checked_in_at": "2026-09-01T09:00:00Z",
			"station_id":    "station-2",
		})
	}))
	defer server.Close()

	client, err := New(server.URL + "/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := client.SubmitCheckIn(context.Background(), ports.QueuedCheckIn{
		ID:              "evt-1",
		TicketID:        "tkt-1",
		StationID:       "station-1",
		ClientTimestamp: "2026-09-01T08:59:00Z",
		Method:          "qr",
	})
	if err != nil {
		t.Fatalf("SubmitCheckIn() error = %v", err)
	}
	if result.Outcome != checkin.OutcomeDuplicate || result.StationID != "station-2" {
		t.Fatalf("result = %+v", result)
	}

	if got["id"] != "evt-1" || got["ticket_id"] != "tkt-1" || got["method"] != "qr" {
		t.Fatalf("request payload = %v", got)
	}
}

func TestSubmitCheckInServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.SubmitCheckIn(context.Background(), ports.QueuedCheckIn{ID: "evt-1"}); err == nil {
		t.Fatalf("SubmitCheckIn() error = nil, want transport error")
	}
}

func TestLookupTicketNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	view, err := client.LookupTicket(context.Background(), "tkt-1")
	if err != nil {
		t.Fatalf("LookupTicket() error = %v", err)
	}
	if view.Known || view.TicketID != "tkt-1" {
		t.Fatalf("view = %+v", view)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatalf("New() error = nil")
	}
}
