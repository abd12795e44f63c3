package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
	"github.com/Dosada05/tournament-matchroom/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.MatchEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []models.MatchEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]models.MatchEventType, len(p.events))
	for i, ev := range p.events {
		types[i] = ev.Type
	}
	return types
}

func (p *recordingPublisher) count(eventType models.MatchEventType) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []AccessEmail
	err  error
}

func (m *fakeMailer) SendAccessLinkEmail(_ context.Context, email AccessEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type roomSetup struct {
	opts   Options
	public bool
	slots  int
}

type roomOption func(*roomSetup)

func withOptions(fn func(*Options)) roomOption {
	return func(s *roomSetup) { fn(&s.opts) }
}

func publicTournament() roomOption {
	return func(s *roomSetup) { s.public = true }
}

func withSlots(n int) roomOption {
	return func(s *roomSetup) { s.slots = n }
}

// room - турнир с владельцем, двумя участниками и одним матчем в хранилище в памяти.
type room struct {
	t   *testing.T
	ctx context.Context

	store    repositories.Store
	opts     Options
	logger   *slog.Logger
	clock    *testClock
	events   *recordingPublisher
	mailer   *fakeMailer
	uploader *storage.MemoryUploader

	tournament *models.Tournament
	match      *models.Match
	alice      *models.Participant
	bob        *models.Participant

	ownerID, aliceUserID, bobUserID, strangerID int

	access    AccessResolver
	engine    PhaseEngine
	scores    ScoreService
	matches   MatchService
	links     AccessLinkService
	templates PhaseTemplateService
}

func newRoom(t *testing.T, phases []models.TournamentPhase, options ...roomOption) *room {
	t.Helper()

	setup := roomSetup{opts: DefaultOptions(), slots: 2}
	setup.opts.PublicURL = "https://play.example.com"
	for _, o := range options {
		o(&setup)
	}

	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	setup.opts.Now = clock.Now

	r := &room{
		t:        t,
		ctx:      context.Background(),
		store:    repositories.NewMemoryStore(),
		clock:    clock,
		events:   &recordingPublisher{},
		mailer:   &fakeMailer{},
		uploader: storage.NewMemoryUploader("https://cdn.example.com"),
	}

	r.ownerID = r.createUser("owner@example.com")
	r.aliceUserID = r.createUser("alice@example.com")
	r.bobUserID = r.createUser("bob@example.com")
	r.strangerID = r.createUser("stranger@example.com")

	r.tournament = &models.Tournament{Name: "Spring Cup", CreatorID: r.ownerID, IsPublic: setup.public}
	if err := r.store.Tournaments().Create(r.ctx, r.tournament); err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	for i := range phases {
		phases[i].TournamentID = r.tournament.ID
		if err := r.store.Phases().CreateTemplate(r.ctx, &phases[i]); err != nil {
			t.Fatalf("create phase template %q: %v", phases[i].Name, err)
		}
	}

	aliceEmail := "alice.player@example.com"
	r.alice = r.createParticipant("Alice", r.aliceUserID, &aliceEmail)
	r.bob = r.createParticipant("Bob", r.bobUserID, nil)

	r.match = &models.Match{TournamentID: r.tournament.ID, Round: 1, MatchNumber: 3}
	if setup.slots >= 1 {
		r.match.Participant1ID = &r.alice.ID
	}
	if setup.slots >= 2 {
		r.match.Participant2ID = &r.bob.ID
	}
	if err := r.store.Matches().Create(r.ctx, r.match); err != nil {
		t.Fatalf("create match: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.opts, r.logger = setup.opts, logger
	r.access = NewAccessResolver(r.store, setup.opts, logger)
	t.Cleanup(r.access.Wait)
	finalizer := NewMatchFinalizer(r.store, r.uploader, setup.opts, logger)
	r.engine = NewPhaseEngine(r.store, r.access, r.events, setup.opts, logger)
	r.scores = NewScoreService(r.store, r.access, finalizer, r.events, setup.opts, logger)
	r.matches = NewMatchService(r.store, r.access, r.events, setup.opts, logger)
	r.links = NewAccessLinkService(r.store, r.access, r.mailer, r.events, setup.opts, logger)
	r.templates = NewPhaseTemplateService(r.store)
	return r
}

func (r *room) createUser(email string) int {
	r.t.Helper()
	u := &models.User{Email: email, DisplayName: email, PasswordHash: "x"}
	if err := r.store.Users().Create(r.ctx, u); err != nil {
		r.t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

func (r *room) createParticipant(name string, userID int, email *string) *models.Participant {
	r.t.Helper()
	p := &models.Participant{TournamentID: r.tournament.ID, UserID: &userID, DisplayName: name, Email: email}
	if err := r.store.Participants().Create(r.ctx, p); err != nil {
		r.t.Fatalf("create participant %s: %v", name, err)
	}
	return p
}

func session(userID int) Principal {
	return Principal{UserID: &userID}
}

func (r *room) owner() Principal    { return session(r.ownerID) }
func (r *room) asAlice() Principal  { return session(r.aliceUserID) }
func (r *room) asBob() Principal    { return session(r.bobUserID) }
func (r *room) stranger() Principal { return session(r.strangerID) }

func (r *room) start() *StartMatchResult {
	r.t.Helper()
	res, err := r.engine.StartMatch(r.ctx, r.match.ID, r.owner())
	if err != nil {
		r.t.Fatalf("StartMatch: %v", err)
	}
	return res
}

func (r *room) reload() *models.Match {
	r.t.Helper()
	m, err := r.store.Matches().GetByID(r.ctx, r.match.ID)
	if err != nil {
		r.t.Fatalf("load match: %v", err)
	}
	return m
}

func (r *room) phases() []*models.MatchPhase {
	r.t.Helper()
	phases, err := r.store.Phases().ListMatchPhases(r.ctx, r.match.ID)
	if err != nil {
		r.t.Fatalf("list match phases: %v", err)
	}
	return phases
}

func (r *room) submissions() []*models.ScoreSubmission {
	r.t.Helper()
	subs, err := r.store.Scores().ListSubmissions(r.ctx, r.match.ID)
	if err != nil {
		r.t.Fatalf("list submissions: %v", err)
	}
	return subs
}

func (r *room) selectMap(principal Principal, phaseID int, name string) (*SelectionResult, error) {
	return r.engine.MakeSelection(r.ctx, r.match.ID, phaseID, principal, SelectionInput{
		SelectionType: "map",
		SelectionData: json.RawMessage(fmt.Sprintf(`{"map":%q}`, name)),
	})
}

func phaseTemplate(name string, turnBased bool, maxSelections int) models.TournamentPhase {
	return models.TournamentPhase{
		Name:             name,
		PhaseType:        "map_" + name,
		TurnBased:        turnBased,
		MaxSelections:    maxSelections,
		TimeLimitSeconds: 30,
		IsEnabled:        true,
	}
}

func intPtr(v int) *int { return &v }
