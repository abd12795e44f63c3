package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
)

func seedMatch(t *testing.T, store Store) *models.Match {
	t.Helper()
	ctx := context.Background()

	tournament := &models.Tournament{Name: "Cup", CreatorID: 1}
	if err := store.Tournaments().Create(ctx, tournament); err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	p1 := &models.Participant{TournamentID: tournament.ID, DisplayName: "A"}
	p2 := &models.Participant{TournamentID: tournament.ID, DisplayName: "B"}
	for _, p := range []*models.Participant{p1, p2} {
		if err := store.Participants().Create(ctx, p); err != nil {
			t.Fatalf("create participant: %v", err)
		}
	}
	match := &models.Match{TournamentID: tournament.ID, Participant1ID: &p1.ID, Participant2ID: &p2.ID}
	if err := store.Matches().Create(ctx, match); err != nil {
		t.Fatalf("create match: %v", err)
	}
	return match
}

func TestMemoryStore_InMatchTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	match := seedMatch(t, store)
	errBoom := errors.New("boom")

	err := store.InMatchTx(ctx, match.ID, func(tx Tx) error {
		m, err := tx.Matches().GetByID(ctx, match.ID)
		if err != nil {
			return err
		}
		m.Status = models.MatchStatusInProgress
		if err := tx.Matches().Update(ctx, m); err != nil {
			return err
		}
		sub := &models.ScoreSubmission{MatchID: match.ID, SubmittedBy: *match.Participant1ID, Status: models.SubmissionStatusPending}
		if err := tx.Scores().CreateSubmission(ctx, sub); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want %v", err, errBoom)
	}

	m, err := store.Matches().GetByID(ctx, match.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m.Status != models.MatchStatusPending {
		t.Errorf("status = %q, want pending after rollback", m.Status)
	}
	subs, err := store.Scores().ListSubmissions(ctx, match.ID)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("got %d submissions after rollback, want 0", len(subs))
	}
}

func TestMemoryStore_InMatchTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	match := seedMatch(t, store)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		_ = store.InMatchTx(ctx, match.ID, func(tx Tx) error {
			m, _ := tx.Matches().GetByID(ctx, match.ID)
			m.Status = models.MatchStatusCompleted
			_ = tx.Matches().Update(ctx, m)
			panic("unexpected")
		})
	}()

	m, err := store.Matches().GetByID(ctx, match.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m.Status != models.MatchStatusPending {
		t.Errorf("status = %q, want pending after panic", m.Status)
	}
	// Мьютекс освобожден: следующая транзакция не блокируется.
	if err := store.InMatchTx(ctx, match.ID, func(Tx) error { return nil }); err != nil {
		t.Errorf("InMatchTx after panic: %v", err)
	}
}

func TestMemoryStore_InMatchTxUnknownMatch(t *testing.T) {
	store := NewMemoryStore()
	called := false
	err := store.InMatchTx(context.Background(), 42, func(Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("err = %v, want ErrMatchNotFound", err)
	}
	if called {
		t.Error("fn called for unknown match")
	}
}

func TestMemoryStore_Privileges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	match := seedMatch(t, store)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	older := &models.ParticipantPrivilege{MatchID: match.ID, ParticipantID: *match.Participant1ID, Token: "t1", ExpiresAt: now.Add(time.Hour), IsActive: true}
	newer := &models.ParticipantPrivilege{MatchID: match.ID, ParticipantID: *match.Participant1ID, Token: "t2", ExpiresAt: now.Add(2 * time.Hour), IsActive: true}
	for _, p := range []*models.ParticipantPrivilege{older, newer} {
		if err := store.Privileges().Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	dup := &models.ParticipantPrivilege{MatchID: match.ID, ParticipantID: *match.Participant2ID, Token: "t1", ExpiresAt: now.Add(time.Hour), IsActive: true}
	if err := store.Privileges().Create(ctx, dup); !errors.Is(err, ErrPrivilegeTokenConflict) {
		t.Errorf("duplicate token err = %v, want ErrPrivilegeTokenConflict", err)
	}

	cur, err := store.Privileges().GetCurrent(ctx, match.ID, *match.Participant1ID, now)
	if err != nil || cur.Token != "t2" {
		t.Errorf("GetCurrent = %+v, %v, want t2", cur, err)
	}

	later := now.Add(90 * time.Minute)
	if _, err := store.Privileges().GetUsable(ctx, match.ID, "t1", later); !errors.Is(err, ErrPrivilegeNotFound) {
		t.Errorf("expired GetUsable err = %v, want ErrPrivilegeNotFound", err)
	}
	n, err := store.Privileges().DeactivateExpired(ctx, later)
	if err != nil || n != 1 {
		t.Errorf("DeactivateExpired = %d, %v, want 1", n, err)
	}
	n, err = store.Privileges().DeactivateByMatch(ctx, match.ID)
	if err != nil || n != 1 {
		t.Errorf("DeactivateByMatch = %d, %v, want 1", n, err)
	}
	if _, err := store.Privileges().GetUsable(ctx, match.ID, "t2", now); !errors.Is(err, ErrPrivilegeNotFound) {
		t.Errorf("deactivated GetUsable err = %v, want ErrPrivilegeNotFound", err)
	}
}

func TestMemoryStore_TemplatePositions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	match := seedMatch(t, store)

	var ids []int
	for _, name := range []string{"a", "b", "c"} {
		tpl := &models.TournamentPhase{TournamentID: match.TournamentID, Name: name, PhaseType: name, MaxSelections: 1, IsEnabled: true}
		if err := store.Phases().CreateTemplate(ctx, tpl); err != nil {
			t.Fatalf("CreateTemplate: %v", err)
		}
		ids = append(ids, tpl.ID)
	}
	if err := store.Phases().DeleteTemplate(ctx, match.TournamentID, ids[0]); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}

	templates, err := store.Phases().ListTemplates(ctx, match.TournamentID)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	for i, tpl := range templates {
		if tpl.Position != i+1 {
			t.Errorf("template %s position = %d, want %d", tpl.Name, tpl.Position, i+1)
		}
	}
	if err := store.Phases().DeleteTemplate(ctx, match.TournamentID+1000, ids[1]); !errors.Is(err, ErrPhaseNotFound) {
		t.Errorf("delete from other tournament err = %v, want ErrPhaseNotFound", err)
	}
}
