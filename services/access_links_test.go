package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

func (r *room) generateLinks() map[int]AccessLink {
	r.t.Helper()
	links, err := r.links.GenerateAccessLinks(r.ctx, r.match.ID, r.owner())
	if err != nil {
		r.t.Fatalf("GenerateAccessLinks: %v", err)
	}
	byParticipant := make(map[int]AccessLink, len(links))
	for _, l := range links {
		byParticipant[l.ParticipantID] = l
	}
	return byParticipant
}

func TestGenerateAccessLinks(t *testing.T) {
	r := newRoom(t, nil)

	links := r.generateLinks()

	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	wantExpiry := r.clock.Now().Add(defaultAccessTokenTTL)
	for _, pid := range []int{r.alice.ID, r.bob.ID} {
		l, ok := links[pid]
		if !ok {
			t.Fatalf("no link for participant %d", pid)
		}
		if len(l.Token) != 43 {
			t.Errorf("token length = %d, want 43", len(l.Token))
		}
		if !strings.HasPrefix(l.URL, "https://play.example.com/matches/") || !strings.HasSuffix(l.URL, "?token="+l.Token) {
			t.Errorf("url = %q", l.URL)
		}
		if !l.ExpiresAt.Equal(wantExpiry) {
			t.Errorf("expires_at = %v, want %v", l.ExpiresAt, wantExpiry)
		}
	}
	if links[r.alice.ID].Token == links[r.bob.ID].Token {
		t.Error("participants share a token")
	}

	if len(r.events.events) != 1 || r.events.events[0].Type != models.EventAccessLinksGenerated {
		t.Fatalf("events = %v, want one access_links_generated", r.events.types())
	}
	payload := string(r.events.events[0].Payload)
	for _, l := range links {
		if strings.Contains(payload, l.Token) {
			t.Error("access token leaked into the public event payload")
		}
	}
}

func TestGenerateAccessLinks_RegenerationRevokesOldTokens(t *testing.T) {
	r := newRoom(t, nil)
	old := r.generateLinks()[r.alice.ID].Token
	fresh := r.generateLinks()[r.alice.ID].Token

	if _, err := r.matches.GetMatchState(r.ctx, r.match.ID, Principal{AccessToken: old}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("old token err = %v, want ErrAccessDenied", err)
	}
	state, err := r.matches.GetMatchState(r.ctx, r.match.ID, Principal{AccessToken: fresh})
	if err != nil {
		t.Fatalf("fresh token: %v", err)
	}
	if state.ParticipantID == nil || *state.ParticipantID != r.alice.ID {
		t.Errorf("participant = %v, want alice", state.ParticipantID)
	}
}

func TestGenerateAccessLinks_OwnerOnly(t *testing.T) {
	tests := []struct {
		name    string
		who     func(r *room) Principal
		wantErr error
	}{
		{"participant", (*room).asAlice, ErrOwnerRequired},
		{"stranger", (*room).stranger, ErrAccessDenied},
		{"anonymous", func(*room) Principal { return Principal{} }, ErrAuthenticationRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom(t, nil)
			_, err := r.links.GenerateAccessLinks(r.ctx, r.match.ID, tt.who(r))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccessToken_Expiry(t *testing.T) {
	r := newRoom(t, nil)
	token := r.generateLinks()[r.bob.ID].Token

	r.clock.Advance(defaultAccessTokenTTL)

	if _, err := r.matches.GetMatchState(r.ctx, r.match.ID, Principal{AccessToken: token}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expired token err = %v, want ErrAccessDenied", err)
	}
	n, err := r.links.DeactivateExpired(r.ctx)
	if err != nil {
		t.Fatalf("DeactivateExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("deactivated = %d, want 2", n)
	}
	if n, _ = r.links.DeactivateExpired(r.ctx); n != 0 {
		t.Errorf("second sweep deactivated %d, want 0", n)
	}
}

func TestAccessToken_TokenWinsOverSession(t *testing.T) {
	r := newRoom(t, nil)
	bobToken := r.generateLinks()[r.bob.ID].Token

	// Сессия Алисы и токен Боба: действует участник из токена.
	p := r.asAlice()
	p.AccessToken = bobToken
	state, err := r.matches.GetMatchState(r.ctx, r.match.ID, p)
	if err != nil {
		t.Fatalf("GetMatchState: %v", err)
	}
	if state.ParticipantID == nil || *state.ParticipantID != r.bob.ID {
		t.Errorf("participant = %v, want bob", state.ParticipantID)
	}
}

func TestAccessToken_TouchesLastUsed(t *testing.T) {
	r := newRoom(t, nil)
	token := r.generateLinks()[r.alice.ID].Token
	r.clock.Advance(time.Minute)

	if _, err := r.matches.GetMatchState(r.ctx, r.match.ID, Principal{AccessToken: token}); err != nil {
		t.Fatalf("GetMatchState: %v", err)
	}
	r.access.Wait()

	priv, err := r.store.Privileges().GetCurrent(r.ctx, r.match.ID, r.alice.ID, r.clock.Now())
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if priv.LastUsedAt == nil || !priv.LastUsedAt.Equal(r.clock.Now()) {
		t.Errorf("last_used_at = %v, want %v", priv.LastUsedAt, r.clock.Now())
	}
}

func TestTokenIssuer_RetriesOnConflict(t *testing.T) {
	r := newRoom(t, nil)
	taken := r.generateLinks()[r.bob.ID].Token

	tests := []struct {
		name    string
		tokens  []string
		want    string
		wantErr error
	}{
		{"second attempt succeeds", []string{taken, "fresh-token"}, "fresh-token", nil},
		{"all attempts collide", []string{taken, taken, taken}, "", ErrAccessTokenGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := newTokenIssuer(r.opts)
			calls := 0
			issuer.generate = func(int) (string, error) {
				token := tt.tokens[calls]
				calls++
				return token, nil
			}

			var got *models.ParticipantPrivilege
			err := r.store.InMatchTx(r.ctx, r.match.ID, func(tx repositories.Tx) error {
				var err error
				got, err = issuer.issue(r.ctx, tx, r.match.ID, r.alice.ID)
				return err
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			if got.Token != tt.want || calls != len(tt.tokens) {
				t.Errorf("token = %q after %d calls, want %q after %d", got.Token, calls, tt.want, len(tt.tokens))
			}
		})
	}
}

func TestSendAccessEmail(t *testing.T) {
	r := newRoom(t, nil)
	token := r.generateLinks()[r.alice.ID].Token

	res, err := r.links.SendAccessEmail(r.ctx, r.match.ID, r.alice.ID, r.owner())
	if err != nil {
		t.Fatalf("SendAccessEmail: %v", err)
	}
	if !res.SentAt.Equal(r.clock.Now()) {
		t.Errorf("sent_at = %v, want %v", res.SentAt, r.clock.Now())
	}
	if r.mailer.sentCount() != 1 {
		t.Fatalf("sent %d emails, want 1", r.mailer.sentCount())
	}
	email := r.mailer.sent[0]
	if email.To != "alice.player@example.com" || email.TournamentName != "Spring Cup" || email.MatchNumber != 3 {
		t.Errorf("email = %+v", email)
	}
	if !strings.Contains(email.Link, token) {
		t.Errorf("link %q does not carry the current token", email.Link)
	}

	if _, err := r.links.SendAccessEmail(r.ctx, r.match.ID, r.alice.ID, r.owner()); !errors.Is(err, ErrAccessEmailCooldown) {
		t.Fatalf("resend err = %v, want ErrAccessEmailCooldown", err)
	}
	if r.mailer.sentCount() != 1 {
		t.Errorf("cooldown still sent an email")
	}

	r.clock.Advance(defaultAccessEmailCooldown)
	if _, err := r.links.SendAccessEmail(r.ctx, r.match.ID, r.alice.ID, r.owner()); err != nil {
		t.Fatalf("resend after cooldown: %v", err)
	}
	if r.mailer.sentCount() != 2 {
		t.Errorf("sent %d emails, want 2", r.mailer.sentCount())
	}
}

func TestSendAccessEmail_IssuesTokenWhenMissing(t *testing.T) {
	r := newRoom(t, nil)

	if _, err := r.links.SendAccessEmail(r.ctx, r.match.ID, r.alice.ID, r.owner()); err != nil {
		t.Fatalf("SendAccessEmail: %v", err)
	}
	priv, err := r.store.Privileges().GetCurrent(r.ctx, r.match.ID, r.alice.ID, r.clock.Now())
	if err != nil {
		t.Fatalf("no token issued: %v", err)
	}
	if priv.LastEmailSentAt == nil {
		t.Error("last_email_sent_at not stamped")
	}
}

func TestSendAccessEmail_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		participant func(r *room) int
		who         func(r *room) Principal
		mailerErr   error
		wantErr     error
	}{
		{
			name:        "participant without email",
			participant: func(r *room) int { return r.bob.ID },
			who:         (*room).owner,
			wantErr:     ErrParticipantNoEmail,
		},
		{
			name: "participant outside the match",
			participant: func(r *room) int {
				email := "carol@example.com"
				return r.createParticipant("Carol", r.strangerID, &email).ID
			},
			who:     (*room).owner,
			wantErr: ErrParticipantNotInMatch,
		},
		{
			name:        "not the owner",
			participant: func(r *room) int { return r.alice.ID },
			who:         (*room).asAlice,
			wantErr:     ErrOwnerRequired,
		},
		{
			name:        "mailer failure",
			participant: func(r *room) int { return r.alice.ID },
			who:         (*room).owner,
			mailerErr:   errors.New("smtp: connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom(t, nil)
			r.mailer.err = tt.mailerErr

			_, err := r.links.SendAccessEmail(r.ctx, r.match.ID, tt.participant(r), tt.who(r))
			switch {
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			case tt.wantErr == nil && (err == nil || !errors.Is(err, tt.mailerErr)):
				t.Fatalf("err = %v, want wrapped %v", err, tt.mailerErr)
			}

			if tt.mailerErr != nil {
				// Неудачная отправка не запускает отсчет повторной отправки.
				r.mailer.err = nil
				if _, err := r.links.SendAccessEmail(r.ctx, r.match.ID, r.alice.ID, r.owner()); err != nil {
					t.Errorf("retry after mailer failure: %v", err)
				}
			}
		})
	}
}

func TestSendAccessEmail_MailerNotConfigured(t *testing.T) {
	r := newRoom(t, nil)
	links := NewAccessLinkService(r.store, r.access, nil, r.events, r.opts, r.logger)

	_, err := links.SendAccessEmail(r.ctx, r.match.ID, r.alice.ID, r.owner())
	if !errors.Is(err, ErrMailerNotConfigured) {
		t.Fatalf("err = %v, want ErrMailerNotConfigured", err)
	}
}
