package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
)

// memoryData - содержимое хранилища в памяти. Значения хранятся по значению,
// поэтому копия карт дает независимый снимок для отката.
type memoryData struct {
	nextID int

	tournaments  map[int]models.Tournament
	participants map[int]models.Participant
	matches      map[int]models.Match
	templates    map[int]models.TournamentPhase
	matchPhases  map[int]models.MatchPhase
	selections   []models.PhaseSelection
	privileges   map[int]models.ParticipantPrivilege
	submissions  map[int]models.ScoreSubmission
	actions      []models.ScoreVerificationAction
	events       []models.MatchEvent
	users        map[int]models.User
}

func newMemoryData() *memoryData {
	return &memoryData{
		tournaments:  make(map[int]models.Tournament),
		participants: make(map[int]models.Participant),
		matches:      make(map[int]models.Match),
		templates:    make(map[int]models.TournamentPhase),
		matchPhases:  make(map[int]models.MatchPhase),
		privileges:   make(map[int]models.ParticipantPrivilege),
		submissions:  make(map[int]models.ScoreSubmission),
		users:        make(map[int]models.User),
	}
}

func (d *memoryData) id() int {
	d.nextID++
	return d.nextID
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		nextID:       d.nextID,
		tournaments:  cloneMap(d.tournaments),
		participants: cloneMap(d.participants),
		matches:      cloneMap(d.matches),
		templates:    cloneMap(d.templates),
		matchPhases:  cloneMap(d.matchPhases),
		selections:   append([]models.PhaseSelection(nil), d.selections...),
		privileges:   cloneMap(d.privileges),
		submissions:  cloneMap(d.submissions),
		actions:      append([]models.ScoreVerificationAction(nil), d.actions...),
		events:       append([]models.MatchEvent(nil), d.events...),
		users:        cloneMap(d.users),
	}
}

type memoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

// NewMemoryStore возвращает хранилище в памяти с той же семантикой, что и
// PostgreSQL-версия: InMatchTx сериализует действия и откатывает их при ошибке.
func NewMemoryStore() Store {
	return &memoryStore{data: newMemoryData()}
}

// memoryRepos - репозитории поверх memoryStore. Внутри InMatchTx мьютекс
// уже захвачен, поэтому locked=true отключает повторную блокировку.
type memoryRepos struct {
	s      *memoryStore
	locked bool
}

func (r memoryRepos) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memoryRepos) Tournaments() TournamentRepository   { return memoryTournaments{r} }
func (r memoryRepos) Participants() ParticipantRepository { return memoryParticipants{r} }
func (r memoryRepos) Matches() MatchRepository           { return memoryMatches{r} }
func (r memoryRepos) Phases() PhaseRepository             { return memoryPhases{r} }
func (r memoryRepos) Selections() SelectionRepository     { return memorySelections{r} }
func (r memoryRepos) Privileges() PrivilegeRepository     { return memoryPrivileges{r} }
func (r memoryRepos) Scores() ScoreRepository             { return memoryScores{r} }
func (r memoryRepos) Events() EventRepository             { return memoryEvents{r} }
func (r memoryRepos) Users() UserRepository               { return memoryUsers{r} }

func (s *memoryStore) repos() memoryRepos { return memoryRepos{s: s} }

func (s *memoryStore) Tournaments() TournamentRepository   { return s.repos().Tournaments() }
func (s *memoryStore) Participants() ParticipantRepository { return s.repos().Participants() }
func (s *memoryStore) Matches() MatchRepository           { return s.repos().Matches() }
func (s *memoryStore) Phases() PhaseRepository             { return s.repos().Phases() }
func (s *memoryStore) Selections() SelectionRepository     { return s.repos().Selections() }
func (s *memoryStore) Privileges() PrivilegeRepository     { return s.repos().Privileges() }
func (s *memoryStore) Scores() ScoreRepository             { return s.repos().Scores() }
func (s *memoryStore) Events() EventRepository             { return s.repos().Events() }
func (s *memoryStore) Users() UserRepository               { return s.repos().Users() }

func (s *memoryStore) InMatchTx(ctx context.Context, matchID int, fn func(tx Tx) error) (txErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.matches[matchID]; !ok {
		return ErrMatchNotFound
	}

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		} else if txErr != nil {
			s.data = snapshot
		}
	}()

	return fn(memoryRepos{s: s, locked: true})
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *memoryStore) Close() error {
	return nil
}

func memoryNow() time.Time {
	return time.Now().UTC()
}

// --- tournaments / participants ---

type memoryTournaments struct{ memoryRepos }

func (r memoryTournaments) Create(_ context.Context, t *models.Tournament) error {
	defer r.lock()()
	d := r.s.data
	t.ID = d.id()
	t.CreatedAt = memoryNow()
	d.tournaments[t.ID] = *t
	return nil
}

func (r memoryTournaments) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	defer r.lock()()
	t, ok := r.s.data.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return &t, nil
}

type memoryParticipants struct{ memoryRepos }

func (r memoryParticipants) Create(_ context.Context, p *models.Participant) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.tournaments[p.TournamentID]; !ok {
		return ErrTournamentNotFound
	}
	p.ID = d.id()
	p.CreatedAt = memoryNow()
	d.participants[p.ID] = *p
	return nil
}

func (r memoryParticipants) GetByID(_ context.Context, id int) (*models.Participant, error) {
	defer r.lock()()
	p, ok := r.s.data.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return &p, nil
}

// --- matches ---

type memoryMatches struct{ memoryRepos }

func (r memoryMatches) Create(_ context.Context, m *models.Match) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.tournaments[m.TournamentID]; !ok {
		return ErrMatchTournamentInvalid
	}
	for _, pid := range m.ParticipantIDs() {
		if _, ok := d.participants[pid]; !ok {
			return ErrMatchParticipantInvalid
		}
	}
	if m.Status == "" {
		m.Status = models.MatchStatusPending
	}
	m.ID = d.id()
	m.CreatedAt = memoryNow()
	d.matches[m.ID] = *m
	return nil
}

func (r memoryMatches) GetByID(_ context.Context, id int) (*models.Match, error) {
	defer r.lock()()
	m, ok := r.s.data.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return &m, nil
}

func (r memoryMatches) Update(_ context.Context, m *models.Match) error {
	defer r.lock()()
	d := r.s.data
	stored, ok := d.matches[m.ID]
	if !ok {
		return ErrMatchNotFound
	}
	stored.Status = m.Status
	stored.Participant1Ready = m.Participant1Ready
	stored.Participant2Ready = m.Participant2Ready
	stored.StartedAt = m.StartedAt
	stored.CompletedAt = m.CompletedAt
	stored.WinnerID = m.WinnerID
	stored.CurrentScoreSubmissionID = m.CurrentScoreSubmissionID
	stored.ScoreSubmissionStatus = m.ScoreSubmissionStatus
	d.matches[m.ID] = stored
	return nil
}

// --- phases ---

type memoryPhases struct{ memoryRepos }

func (r memoryPhases) CreateTemplate(_ context.Context, t *models.TournamentPhase) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.tournaments[t.TournamentID]; !ok {
		return ErrTournamentNotFound
	}
	maxPos := 0
	for _, existing := range d.templates {
		if existing.TournamentID == t.TournamentID && existing.Position > maxPos {
			maxPos = existing.Position
		}
	}
	t.ID = d.id()
	t.Position = maxPos + 1
	t.CreatedAt = memoryNow()
	d.templates[t.ID] = *t
	return nil
}

func (r memoryPhases) GetTemplate(_ context.Context, id int) (*models.TournamentPhase, error) {
	defer r.lock()()
	t, ok := r.s.data.templates[id]
	if !ok {
		return nil, ErrPhaseNotFound
	}
	return &t, nil
}

func (r memoryPhases) ListTemplates(_ context.Context, tournamentID int) ([]*models.TournamentPhase, error) {
	defer r.lock()()
	return r.templatesOf(tournamentID), nil
}

func (r memoryPhases) templatesOf(tournamentID int) []*models.TournamentPhase {
	templates := make([]*models.TournamentPhase, 0)
	for _, t := range r.s.data.templates {
		if t.TournamentID == tournamentID {
			t := t
			templates = append(templates, &t)
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Position < templates[j].Position })
	return templates
}

func (r memoryPhases) DeleteTemplate(_ context.Context, tournamentID, id int) error {
	defer r.lock()()
	d := r.s.data
	t, ok := d.templates[id]
	if !ok || t.TournamentID != tournamentID {
		return ErrPhaseNotFound
	}
	delete(d.templates, id)
	for i, rest := range r.templatesOf(tournamentID) {
		rest.Position = i + 1
		d.templates[rest.ID] = *rest
	}
	return nil
}

func (r memoryPhases) CreateMatchPhase(_ context.Context, p *models.MatchPhase) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.matches[p.MatchID]; !ok {
		return ErrMatchNotFound
	}
	p.ID = d.id()
	stored := *p
	stored.Selections = nil
	d.matchPhases[p.ID] = stored
	return nil
}

func (r memoryPhases) GetMatchPhase(_ context.Context, id int) (*models.MatchPhase, error) {
	defer r.lock()()
	p, ok := r.s.data.matchPhases[id]
	if !ok {
		return nil, ErrPhaseNotFound
	}
	return &p, nil
}

func (r memoryPhases) ListMatchPhases(_ context.Context, matchID int) ([]*models.MatchPhase, error) {
	defer r.lock()()
	return r.filterMatchPhases(func(p models.MatchPhase) bool { return p.MatchID == matchID }), nil
}

func (r memoryPhases) UpdateMatchPhase(_ context.Context, p *models.MatchPhase) error {
	defer r.lock()()
	d := r.s.data
	stored, ok := d.matchPhases[p.ID]
	if !ok {
		return ErrPhaseNotFound
	}
	stored.Status = p.Status
	stored.CurrentTurnParticipantID = p.CurrentTurnParticipantID
	stored.TimeRemaining = p.TimeRemaining
	stored.TurnStartedAt = p.TurnStartedAt
	stored.CompletedAt = p.CompletedAt
	d.matchPhases[p.ID] = stored
	return nil
}

func (r memoryPhases) ListExpiredTurns(_ context.Context, now time.Time) ([]*models.MatchPhase, error) {
	defer r.lock()()
	return r.filterMatchPhases(func(p models.MatchPhase) bool {
		if p.Status != models.PhaseStatusActive {
			return false
		}
		deadline, ok := p.TurnDeadline()
		return ok && !deadline.After(now)
	}), nil
}

func (r memoryPhases) filterMatchPhases(keep func(models.MatchPhase) bool) []*models.MatchPhase {
	phases := make([]*models.MatchPhase, 0)
	for _, p := range r.s.data.matchPhases {
		if keep(p) {
			p := p
			phases = append(phases, &p)
		}
	}
	sort.Slice(phases, func(i, j int) bool {
		if phases[i].MatchID != phases[j].MatchID {
			return phases[i].MatchID < phases[j].MatchID
		}
		if phases[i].Position != phases[j].Position {
			return phases[i].Position < phases[j].Position
		}
		return phases[i].ID < phases[j].ID
	})
	return phases
}

// --- selections ---

type memorySelections struct{ memoryRepos }

func (r memorySelections) Create(_ context.Context, s *models.PhaseSelection) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.matchPhases[s.MatchPhaseID]; !ok {
		return ErrPhaseNotFound
	}
	for _, existing := range d.selections {
		if existing.MatchPhaseID == s.MatchPhaseID &&
			existing.ParticipantID == s.ParticipantID &&
			existing.SelectionOrder == s.SelectionOrder {
			return ErrSelectionOrderConflict
		}
	}
	s.ID = d.id()
	s.CreatedAt = memoryNow()
	d.selections = append(d.selections, *s)
	return nil
}

func (r memorySelections) CountByParticipant(_ context.Context, phaseID, participantID int) (int, error) {
	defer r.lock()()
	count := 0
	for _, s := range r.s.data.selections {
		if s.MatchPhaseID == phaseID && s.ParticipantID == participantID {
			count++
		}
	}
	return count, nil
}

func (r memorySelections) CountByPhase(_ context.Context, phaseID int) (int, error) {
	defer r.lock()()
	count := 0
	for _, s := range r.s.data.selections {
		if s.MatchPhaseID == phaseID {
			count++
		}
	}
	return count, nil
}

func (r memorySelections) ListByPhase(_ context.Context, phaseID int) ([]models.PhaseSelection, error) {
	defer r.lock()()
	selections := make([]models.PhaseSelection, 0)
	for _, s := range r.s.data.selections {
		if s.MatchPhaseID == phaseID {
			selections = append(selections, s)
		}
	}
	return selections, nil
}

// --- privileges ---

type memoryPrivileges struct{ memoryRepos }

func (r memoryPrivileges) Create(_ context.Context, p *models.ParticipantPrivilege) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.matches[p.MatchID]; !ok {
		return ErrPrivilegeParticipantInvalid
	}
	if _, ok := d.participants[p.ParticipantID]; !ok {
		return ErrPrivilegeParticipantInvalid
	}
	for _, existing := range d.privileges {
		if existing.Token == p.Token {
			return ErrPrivilegeTokenConflict
		}
	}
	p.ID = d.id()
	p.CreatedAt = memoryNow()
	d.privileges[p.ID] = *p
	return nil
}

func (r memoryPrivileges) GetUsable(_ context.Context, matchID int, token string, now time.Time) (*models.ParticipantPrivilege, error) {
	defer r.lock()()
	for _, p := range r.s.data.privileges {
		if p.MatchID == matchID && p.Token == token && p.Usable(now) {
			return &p, nil
		}
	}
	return nil, ErrPrivilegeNotFound
}

func (r memoryPrivileges) GetCurrent(_ context.Context, matchID, participantID int, now time.Time) (*models.ParticipantPrivilege, error) {
	defer r.lock()()
	var current *models.ParticipantPrivilege
	for _, p := range r.s.data.privileges {
		if p.MatchID != matchID || p.ParticipantID != participantID || !p.Usable(now) {
			continue
		}
		if current == nil || p.ID > current.ID {
			p := p
			current = &p
		}
	}
	if current == nil {
		return nil, ErrPrivilegeNotFound
	}
	return current, nil
}

func (r memoryPrivileges) deactivate(match func(models.ParticipantPrivilege) bool) int64 {
	d := r.s.data
	var n int64
	for id, p := range d.privileges {
		if p.IsActive && match(p) {
			p.IsActive = false
			d.privileges[id] = p
			n++
		}
	}
	return n
}

func (r memoryPrivileges) DeactivateByMatch(_ context.Context, matchID int) (int64, error) {
	defer r.lock()()
	return r.deactivate(func(p models.ParticipantPrivilege) bool { return p.MatchID == matchID }), nil
}

func (r memoryPrivileges) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	defer r.lock()()
	return r.deactivate(func(p models.ParticipantPrivilege) bool { return !now.Before(p.ExpiresAt) }), nil
}

func (r memoryPrivileges) TouchLastUsed(_ context.Context, id int, at time.Time) error {
	defer r.lock()()
	p, ok := r.s.data.privileges[id]
	if !ok {
		return ErrPrivilegeNotFound
	}
	p.LastUsedAt = &at
	r.s.data.privileges[id] = p
	return nil
}

func (r memoryPrivileges) MarkEmailSent(_ context.Context, id int, at time.Time) error {
	defer r.lock()()
	p, ok := r.s.data.privileges[id]
	if !ok {
		return ErrPrivilegeNotFound
	}
	p.LastEmailSentAt = &at
	r.s.data.privileges[id] = p
	return nil
}

// --- scores ---

type memoryScores struct{ memoryRepos }

func (r memoryScores) CreateSubmission(_ context.Context, s *models.ScoreSubmission) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.matches[s.MatchID]; !ok {
		return ErrMatchNotFound
	}
	s.ID = d.id()
	s.CreatedAt = memoryNow()
	stored := *s
	stored.Actions = nil
	d.submissions[s.ID] = stored
	return nil
}

func (r memoryScores) GetSubmission(_ context.Context, id int) (*models.ScoreSubmission, error) {
	defer r.lock()()
	s, ok := r.s.data.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return &s, nil
}

func (r memoryScores) UpdateSubmissionStatus(_ context.Context, id int, status models.SubmissionStatus) error {
	defer r.lock()()
	s, ok := r.s.data.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	s.Status = status
	r.s.data.submissions[id] = s
	return nil
}

func (r memoryScores) ListSubmissions(_ context.Context, matchID int) ([]*models.ScoreSubmission, error) {
	defer r.lock()()
	submissions := make([]*models.ScoreSubmission, 0)
	for _, s := range r.s.data.submissions {
		if s.MatchID == matchID {
			s := s
			submissions = append(submissions, &s)
		}
	}
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].ID < submissions[j].ID })
	return submissions, nil
}

func (r memoryScores) CreateAction(_ context.Context, a *models.ScoreVerificationAction) error {
	defer r.lock()()
	d := r.s.data
	if _, ok := d.submissions[a.SubmissionID]; !ok {
		return ErrSubmissionNotFound
	}
	a.ID = d.id()
	a.CreatedAt = memoryNow()
	d.actions = append(d.actions, *a)
	return nil
}

func (r memoryScores) ListActions(_ context.Context, submissionID int) ([]models.ScoreVerificationAction, error) {
	defer r.lock()()
	actions := make([]models.ScoreVerificationAction, 0)
	for _, a := range r.s.data.actions {
		if a.SubmissionID == submissionID {
			actions = append(actions, a)
		}
	}
	return actions, nil
}

// --- events ---

type memoryEvents struct{ memoryRepos }

func (r memoryEvents) Append(_ context.Context, e *models.MatchEvent) error {
	defer r.lock()()
	r.s.data.events = append(r.s.data.events, *e)
	return nil
}

func (r memoryEvents) ListByMatch(_ context.Context, matchID int, limit int) ([]models.MatchEvent, error) {
	defer r.lock()()
	if limit <= 0 {
		limit = 100
	}
	events := make([]models.MatchEvent, 0)
	for i := len(r.s.data.events) - 1; i >= 0 && len(events) < limit; i-- {
		if e := r.s.data.events[i]; e.MatchID == matchID {
			events = append(events, e)
		}
	}
	return events, nil
}

// --- users ---

type memoryUsers struct{ memoryRepos }

func (r memoryUsers) Create(_ context.Context, u *models.User) error {
	defer r.lock()()
	d := r.s.data
	email := strings.ToLower(u.Email)
	for _, existing := range d.users {
		if existing.Email == email {
			return ErrUserEmailConflict
		}
	}
	u.Email = email
	u.ID = d.id()
	u.CreatedAt = memoryNow()
	d.users[u.ID] = *u
	return nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.lock()()
	email = strings.ToLower(email)
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}
