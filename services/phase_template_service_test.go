package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/Dosada05/tournament-matchroom/models"
)

func TestPhaseTemplates_CreateListDelete(t *testing.T) {
	r := newRoom(t, nil)
	tid := r.tournament.ID

	var ids []int
	for _, name := range []string{"ban", "pick", "side"} {
		tpl, err := r.templates.CreateTemplate(r.ctx, tid, r.owner(), PhaseTemplateInput{
			Name:          name,
			PhaseType:     "map_" + name,
			TurnBased:     true,
			MaxSelections: 1,
		})
		if err != nil {
			t.Fatalf("CreateTemplate %s: %v", name, err)
		}
		if !tpl.IsEnabled {
			t.Errorf("template %s disabled by default", name)
		}
		ids = append(ids, tpl.ID)
	}

	if err := r.templates.DeleteTemplate(r.ctx, tid, ids[1], r.owner()); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}

	list, err := r.templates.ListTemplates(r.ctx, tid, r.owner())
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d templates, want 2", len(list))
	}
	for i, want := range []struct {
		name     string
		position int
	}{{"ban", 1}, {"side", 2}} {
		if list[i].Name != want.name || list[i].Position != want.position {
			t.Errorf("template %d = %s@%d, want %s@%d", i, list[i].Name, list[i].Position, want.name, want.position)
		}
	}

	if err := r.templates.DeleteTemplate(r.ctx, tid, ids[1], r.owner()); !errors.Is(err, ErrPhaseNotFound) {
		t.Errorf("second delete err = %v, want ErrPhaseNotFound", err)
	}
}

func TestPhaseTemplates_OwnerOnly(t *testing.T) {
	r := newRoom(t, nil, publicTournament())
	input := PhaseTemplateInput{Name: "ban", PhaseType: "map_ban", MaxSelections: 1}

	tests := []struct {
		name    string
		who     Principal
		tid     int
		wantErr error
	}{
		{"participant", r.asAlice(), r.tournament.ID, ErrOwnerRequired},
		{"anonymous", Principal{}, r.tournament.ID, ErrAuthenticationRequired},
		{"token only", Principal{AccessToken: "whatever"}, r.tournament.ID, ErrAuthenticationRequired},
		{"unknown tournament", r.owner(), 9999, ErrTournamentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.templates.CreateTemplate(r.ctx, tt.tid, tt.who, input); !errors.Is(err, tt.wantErr) {
				t.Errorf("create err = %v, want %v", err, tt.wantErr)
			}
			if _, err := r.templates.ListTemplates(r.ctx, tt.tid, tt.who); !errors.Is(err, tt.wantErr) {
				t.Errorf("list err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPhaseTemplates_Validation(t *testing.T) {
	r := newRoom(t, nil)

	tests := []struct {
		name  string
		input PhaseTemplateInput
	}{
		{"blank name", PhaseTemplateInput{Name: " ", PhaseType: "ban", MaxSelections: 1}},
		{"long name", PhaseTemplateInput{Name: strings.Repeat("x", 101), PhaseType: "ban", MaxSelections: 1}},
		{"blank type", PhaseTemplateInput{Name: "ban", MaxSelections: 1}},
		{"zero selections", PhaseTemplateInput{Name: "ban", PhaseType: "ban"}},
		{"negative time limit", PhaseTemplateInput{Name: "ban", PhaseType: "ban", MaxSelections: 1, TimeLimitSeconds: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.templates.CreateTemplate(r.ctx, r.tournament.ID, r.owner(), tt.input)
			if !errors.Is(err, ErrPhaseTemplateInvalid) || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrPhaseTemplateInvalid", err)
			}
		})
	}
}

func TestPhaseTemplates_StartedMatchKeepsItsRules(t *testing.T) {
	r := newRoom(t, []models.TournamentPhase{phaseTemplate("ban", false, 1)})
	r.start()

	if _, err := r.templates.CreateTemplate(r.ctx, r.tournament.ID, r.owner(), PhaseTemplateInput{
		Name: "pick", PhaseType: "map_pick", MaxSelections: 3,
	}); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	phases := r.phases()
	if len(phases) != 1 || phases[0].MaxSelections != 1 {
		t.Errorf("match phases = %+v, want the single phase copied at start", phases)
	}
}
