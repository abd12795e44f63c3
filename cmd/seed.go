package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

const (
	demoOwnerEmail    = "organizer@example.com"
	demoOwnerPassword = "organizer"
)

// seedDemo наполняет хранилище в памяти: организатор, турнир с двумя этапами
// и матч на двух участников, чтобы комнату можно было открыть сразу после запуска.
func seedDemo(ctx context.Context, store repositories.Store, logger *slog.Logger) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoOwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	owner := &models.User{Email: demoOwnerEmail, DisplayName: "Organizer", PasswordHash: string(hash)}
	if err := store.Users().Create(ctx, owner); err != nil {
		return fmt.Errorf("create demo owner: %w", err)
	}

	tournament := &models.Tournament{Name: "Demo Cup", CreatorID: owner.ID, IsPublic: true}
	if err := store.Tournaments().Create(ctx, tournament); err != nil {
		return fmt.Errorf("create demo tournament: %w", err)
	}

	templates := []*models.TournamentPhase{
		{TournamentID: tournament.ID, Name: "Map ban", PhaseType: "map_ban", TurnBased: true, MaxSelections: 2, TimeLimitSeconds: 60, IsEnabled: true},
		{TournamentID: tournament.ID, Name: "Map pick", PhaseType: "map_pick", TurnBased: true, MaxSelections: 1, TimeLimitSeconds: 60, IsEnabled: true},
	}
	for _, t := range templates {
		if err := store.Phases().CreateTemplate(ctx, t); err != nil {
			return fmt.Errorf("create demo phase %q: %w", t.Name, err)
		}
	}

	var ids []int
	for _, name := range []string{"Alpha", "Bravo"} {
		p := &models.Participant{TournamentID: tournament.ID, DisplayName: name}
		if err := store.Participants().Create(ctx, p); err != nil {
			return fmt.Errorf("create demo participant %q: %w", name, err)
		}
		ids = append(ids, p.ID)
	}

	match := &models.Match{
		TournamentID:   tournament.ID,
		Round:          1,
		MatchNumber:    1,
		Participant1ID: &ids[0],
		Participant2ID: &ids[1],
	}
	if err := store.Matches().Create(ctx, match); err != nil {
		return fmt.Errorf("create demo match: %w", err)
	}

	logger.Info("demo data seeded",
		slog.String("owner_email", demoOwnerEmail),
		slog.Int("tournament_id", tournament.ID),
		slog.Int("match_id", match.ID))
	return nil
}
