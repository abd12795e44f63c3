package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-matchroom/services"
)

type PhaseTemplateHandler struct {
	phaseService services.PhaseTemplateService
	logger       *slog.Logger
}

func NewPhaseTemplateHandler(phaseService services.PhaseTemplateService, logger *slog.Logger) *PhaseTemplateHandler {
	return &PhaseTemplateHandler{phaseService: phaseService, logger: logger}
}

func (h *PhaseTemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	templates, err := h.phaseService.ListTemplates(r.Context(), tournamentID, principalFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusOK, jsonResponse{"phases": templates})
}

func (h *PhaseTemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	var input services.PhaseTemplateInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	template, err := h.phaseService.CreateTemplate(r.Context(), tournamentID, principalFromRequest(r), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, h.logger, http.StatusCreated, template)
}

func (h *PhaseTemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	if err := h.phaseService.DeleteTemplate(r.Context(), tournamentID, phaseID, principalFromRequest(r)); err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
