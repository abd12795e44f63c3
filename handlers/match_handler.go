package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-matchroom/services"
)

type ReadyRequest struct {
	Ready *bool `json:"ready"`
}

type MatchHandler struct {
	matchService services.MatchService
	phaseEngine  services.PhaseEngine
	scoreService services.ScoreService
	accessLinks  services.AccessLinkService
	logger       *slog.Logger
}

func NewMatchHandler(
	matchService services.MatchService,
	phaseEngine services.PhaseEngine,
	scoreService services.ScoreService,
	accessLinks services.AccessLinkService,
	logger *slog.Logger,
) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		phaseEngine:  phaseEngine,
		scoreService: scoreService,
		accessLinks:  accessLinks,
		logger:       logger,
	}
}

func (h *MatchHandler) GetMatchState(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	state, err := h.matchService.GetMatchState(r.Context(), matchID, principalFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, state)
}

func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	result, err := h.phaseEngine.StartMatch(r.Context(), matchID, principalFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, result)
}

func (h *MatchHandler) SetReady(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	var input ReadyRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	if input.Ready == nil {
		badRequestResponse(w, r, h.logger, errors.New("ready is required"))
		return
	}

	result, err := h.matchService.SetReady(r.Context(), matchID, principalFromRequest(r), *input.Ready)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, result)
}

func (h *MatchHandler) MakeSelection(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	var input services.SelectionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	result, err := h.phaseEngine.MakeSelection(r.Context(), matchID, phaseID, principalFromRequest(r), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusCreated, result)
}

func (h *MatchHandler) SkipPhase(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	phase, err := h.phaseEngine.SkipPhase(r.Context(), matchID, phaseID, principalFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, jsonResponse{"next_phase": phase})
}

func (h *MatchHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	var input services.SubmitScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	submission, err := h.scoreService.SubmitScore(r.Context(), matchID, principalFromRequest(r), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusCreated, submission)
}

func (h *MatchHandler) VerifyScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	var input services.VerifyScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	result, err := h.scoreService.VerifyScore(r.Context(), matchID, submissionID, principalFromRequest(r), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, result)
}

func (h *MatchHandler) GenerateAccessLinks(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	links, err := h.accessLinks.GenerateAccessLinks(r.Context(), matchID, principalFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusCreated, jsonResponse{"links": links})
}

func (h *MatchHandler) SendAccessEmail(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	result, err := h.accessLinks.SendAccessEmail(r.Context(), matchID, participantID, principalFromRequest(r))
	if err != nil {
		if errors.Is(err, services.ErrMailerNotConfigured) {
			errorResponse(w, r, h.logger, http.StatusServiceUnavailable, kindInternal, "email delivery is not configured")
			return
		}
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, result)
}
