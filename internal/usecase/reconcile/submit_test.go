package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/infrastructure/persistence/sqlite/model"
	"gatehouse/internal/infrastructure/persistence/sqlite/repository"
	"gatehouse/internal/infrastructure/persistence/sqlite/uow"
	"gatehouse/internal/ports"
)

type fixture struct {
	svc    *Service
	badges ports.BadgeQueue
}

func setupService(t *testing.T) fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "server.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(
		&model.Ticket{},
		&model.CanonicalCheckIn{},
		&model.BadgePrintJob{},
		&model.EventStats{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	badges := repository.NewBadgeRepository(db)
	svc := NewService(
		repository.NewTicketRepository(db),
		repository.NewCanonicalRepository(db),
		badges,
		uow.NewUnitOfWork(db),
		nil,
	)
	return fixture{svc: svc, badges: badges}
}

func seedTicket(t *testing.T, svc *Service, id string, tier string, status string) {
	t.Helper()

	if err := svc.SeedTicket(context.Background(), ports.Ticket{
		ID:           id,
		EventID:      "evt-conf",
		AttendeeName: "Sam Chen",
		Tier:         tier,
		Status:       status,
	}); err != nil {
		t.Fatalf("SeedTicket(%s) error = %v", id, err)
	}
}

func TestSubmitAdmitsAndQueuesBadge(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	seedTicket(t, fx.svc, "tkt-1", "vip", ports.TicketActive)

	result, err := fx.svc.Submit(ctx, SubmitInput{
		ID:        "chk-1",
		TicketID:  "tkt-1",
		StationID: "station-1",
		Method:    "qr",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != checkin.OutcomeAdmitted {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.CheckedInAt == "" || result.StationID != "station-1" {
		t.Fatalf("result = %+v", result)
	}

	jobs, err := fx.badges.List(ctx, ports.BadgeJobFilter{TicketID: "tkt-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("badge jobs = %d", len(jobs))
	}
	if jobs[0].Status != checkin.JobPending {
		t.Fatalf("badge status = %s", jobs[0].Status)
	}
	if jobs[0].Priority != 0 {
		t.Fatalf("vip priority = %d", jobs[0].Priority)
	}

	stats, found, err := fx.svc.EventStats(ctx, "evt-conf")
	if err != nil || !found {
		t.Fatalf("EventStats() = %v, %v", found, err)
	}
	if stats.CheckedIn != 1 {
		t.Fatalf("checked_in = %d", stats.CheckedIn)
	}
}

func TestSubmitReplaySameEventID(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	seedTicket(t, fx.svc, "tkt-1", "general", ports.TicketActive)

	input := SubmitInput{ID: "chk-1", TicketID: "tkt-1", StationID: "station-1", Method: "qr"}
	first, err := fx.svc.Submit(ctx, input)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	for round := 0; round < 3; round++ {
		replay, err := fx.svc.Submit(ctx, input)
		if err != nil {
			t.Fatalf("Submit() replay error = %v", err)
		}
		if replay.Outcome != checkin.OutcomeAdmitted {
			t.Fatalf("replay outcome = %s", replay.Outcome)
		}
		if replay.CheckedInAt != first.CheckedInAt {
			t.Fatalf("replay timestamp changed: %s vs %s", replay.CheckedInAt, first.CheckedInAt)
		}
	}

	stats, _, err := fx.svc.EventStats(ctx, "evt-conf")
	if err != nil {
		t.Fatalf("EventStats() error = %v", err)
	}
	if stats.CheckedIn != 1 {
		t.Fatalf("checked_in after replays = %d", stats.CheckedIn)
	}

	jobs, err := fx.badges.List(ctx, ports.BadgeJobFilter{TicketID: "tkt-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("badge jobs after replays = %d", len(jobs))
	}
}

func TestSubmitSecondEventLosesRace(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	seedTicket(t, fx.svc, "tkt-1", "general", ports.TicketActive)

	winner, err := fx.svc.Submit(ctx, SubmitInput{
		ID: "chk-1", TicketID: "tkt-1", StationID: "station-1", Method: "qr",
	})
	if err != nil {
		t.Fatalf("Submit() winner error = %v", err)
	}

	loser, err := fx.svc.Submit(ctx, SubmitInput{
		ID: "chk-2", TicketID: "tkt-1", StationID: "station-2", Method: "manual",
	})
	if err != nil {
		t.Fatalf("Submit() loser error = %v", err)
	}
	if loser.Outcome != checkin.OutcomeDuplicate {
		t.Fatalf("loser outcome = %s", loser.Outcome)
	}
	if loser.CheckedInAt != winner.CheckedInAt || loser.StationID != "station-1" {
		t.Fatalf("loser must report the winner: %+v", loser)
	}

	stats, _, err := fx.svc.EventStats(ctx, "evt-conf")
	if err != nil {
		t.Fatalf("EventStats() error = %v", err)
	}
	if stats.CheckedIn != 1 {
		t.Fatalf("checked_in = %d", stats.CheckedIn)
	}
}

func TestSubmitConcurrentEventsAdmitExactlyOnce(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	seedTicket(t, fx.svc, "tkt-1", "general", ports.TicketActive)

	inputs := []SubmitInput{
		{ID: "chk-a", TicketID: "tkt-1", StationID: "station-1", Method: "qr"},
		{ID: "chk-b", TicketID: "tkt-1", StationID: "station-2", Method: "manual"},
	}

	results := make([]ports.SubmitResult, len(inputs))
	submitErrs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], submitErrs[i] = fx.svc.Submit(ctx, inputs[i])
		}(i)
	}
	wg.Wait()

	for i, err := range submitErrs {
		if err != nil {
			t.Fatalf("Submit(%s) error = %v", inputs[i].ID, err)
		}
	}

	var winner, loser ports.SubmitResult
	switch {
	case results[0].Outcome == checkin.OutcomeAdmitted && results[1].Outcome == checkin.OutcomeDuplicate:
		winner, loser = results[0], results[1]
	case results[0].Outcome == checkin.OutcomeDuplicate && results[1].Outcome == checkin.OutcomeAdmitted:
		winner, loser = results[1], results[0]
	default:
		t.Fatalf("outcomes = %s, %s", results[0].Outcome, results[1].Outcome)
	}
	if loser.CheckedInAt != winner.CheckedInAt || loser.StationID != winner.StationID {
		t.Fatalf("loser must report the winner: winner %+v loser %+v", winner, loser)
	}

	stats, _, err := fx.svc.EventStats(ctx, "evt-conf")
	if err != nil {
		t.Fatalf("EventStats() error = %v", err)
	}
	if stats.CheckedIn != 1 {
		t.Fatalf("checked_in = %d", stats.CheckedIn)
	}

	jobs, err := fx.badges.List(ctx, ports.BadgeJobFilter{TicketID: "tkt-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("badge jobs = %d", len(jobs))
	}
}

func TestSubmitUnknownTicket(t *testing.T) {
	fx := setupService(t)

	result, err := fx.svc.Submit(context.Background(), SubmitInput{
		ID: "chk-1", TicketID: "tkt-missing", StationID: "station-1", Method: "qr",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != checkin.OutcomeInvalid {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.Reason != checkin.ErrTicketUnknown.Error() {
		t.Fatalf("reason = %q", result.Reason)
	}
}

func TestSubmitCancelledTicket(t *testing.T) {
	fx := setupService(t)
	seedTicket(t, fx.svc, "tkt-1", "general", ports.TicketCancelled)

	result, err := fx.svc.Submit(context.Background(), SubmitInput{
		ID: "chk-1", TicketID: "tkt-1", StationID: "station-1", Method: "qr",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != checkin.OutcomeInvalid {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.Reason != checkin.ErrTicketCancelled.Error() {
		t.Fatalf("reason = %q", result.Reason)
	}
}

func TestSubmitUnknownMethodRejected(t *testing.T) {
	fx := setupService(t)
	seedTicket(t, fx.svc, "tkt-1", "general", ports.TicketActive)

	result, err := fx.svc.Submit(context.Background(), SubmitInput{
		ID: "chk-1", TicketID: "tkt-1", StationID: "station-1", Method: "telepathy",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != checkin.OutcomeInvalid {
		t.Fatalf("outcome = %s", result.Outcome)
	}
}

func TestSubmitValidation(t *testing.T) {
	fx := setupService(t)

	if _, err := fx.svc.Submit(context.Background(), SubmitInput{
		TicketID: "tkt-1", StationID: "station-1",
	}); !errors.Is(err, checkin.ErrEventIDRequired) {
		t.Fatalf("missing event id error = %v", err)
	}
	if _, err := fx.svc.Submit(context.Background(), SubmitInput{
		ID: "chk-1", StationID: "station-1",
	}); !errors.Is(err, checkin.ErrTicketIDRequired) {
		t.Fatalf("missing ticket id error = %v", err)
	}
	if _, err := fx.svc.Submit(context.Background(), SubmitInput{
		ID: "chk-1", TicketID: "tkt-1",
	}); !errors.Is(err, checkin.ErrStationIDRequired) {
		t.Fatalf("missing station id error = %v", err)
	}
}

func TestSubmitUnknownTierGetsDefaultPriority(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	seedTicket(t, fx.svc, "tkt-1", "press", ports.TicketActive)

	if _, err := fx.svc.Submit(ctx, SubmitInput{
		ID: "chk-1", TicketID: "tkt-1", StationID: "station-1", Method: "qr",
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	jobs, err := fx.badges.List(ctx, ports.BadgeJobFilter{TicketID: "tkt-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].Priority != defaultPriority {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestTicketView(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	seedTicket(t, fx.svc, "tkt-1", "general", ports.TicketActive)

	view, err := fx.svc.TicketView(ctx, "tkt-1")
	if err != nil {
		t.Fatalf("TicketView() error = %v", err)
	}
	if !view.Known || view.Admitted {
		t.Fatalf("view before admission = %+v", view)
	}

	if _, err := fx.svc.Submit(ctx, SubmitInput{
		ID: "chk-1", TicketID: "tkt-1", StationID: "station-1", Method: "qr",
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	view, err = fx.svc.TicketView(ctx, "tkt-1")
	if err != nil {
		t.Fatalf("TicketView() error = %v", err)
	}
	if !view.Admitted || view.StationID != "station-1" {
		t.Fatalf("view after admission = %+v", view)
	}

	view, err = fx.svc.TicketView(ctx, "tkt-missing")
	if err != nil {
		t.Fatalf("TicketView(missing) error = %v", err)
	}
	if view.Known {
		t.Fatalf("unknown ticket reported known")
	}
}
