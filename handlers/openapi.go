package handlers

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/services"
)

type matchPath struct {
	MatchID int `path:"matchID"`
}

type phasePath struct {
	MatchID int `path:"matchID"`
	PhaseID int `path:"phaseID"`
}

type readyRequest struct {
	MatchID int `path:"matchID"`
	ReadyRequest
}

type selectionRequest struct {
	MatchID int `path:"matchID"`
	PhaseID int `path:"phaseID"`
	services.SelectionInput
}

type submitScoreRequest struct {
	MatchID int `path:"matchID"`
	services.SubmitScoreInput
}

type verifyScoreRequest struct {
	MatchID      int `path:"matchID"`
	SubmissionID int `path:"submissionID"`
	services.VerifyScoreInput
}

type accessEmailRequest struct {
	MatchID       int `path:"matchID"`
	ParticipantID int `path:"participantID"`
}

type tournamentPath struct {
	TournamentID int `path:"tournamentID"`
}

type createTemplateRequest struct {
	TournamentID int `path:"tournamentID"`
	services.PhaseTemplateInput
}

type deleteTemplateRequest struct {
	TournamentID int `path:"tournamentID"`
	PhaseID      int `path:"phaseID"`
}

type accessedRequest struct {
	AccessToken string `header:"X-Access-Token"`
}

type nextPhaseResponse struct {
	NextPhase *models.MatchPhase `json:"next_phase"`
}

type accessLinksResponse struct {
	Links []services.AccessLink `json:"links"`
}

type phaseTemplatesResponse struct {
	Phases []models.TournamentPhase `json:"phases"`
}

type operation struct {
	method, path, summary string
	req                   any
	resp                  any
	status                int
	errors                []int
}

const successEnvelopeNote = `Успешный ответ оборачивается в {"success": true, "data": ...}; ошибки - {"success": false, "error": {"kind", "message"}}.`

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Tournament Match Room API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Комната матча: этапы выбора, отправка и подтверждение счета, ссылки доступа.")

	ops := []operation{
		{http.MethodPost, "/auth/login", "Login", services.LoginInput{}, LoginResponse{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusUnauthorized}},
		{http.MethodGet, "/matches/{matchID}", "Get match state", matchPath{}, services.MatchState{}, http.StatusOK,
			[]int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/matches/{matchID}/start", "Start match", matchPath{}, services.StartMatchResult{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/matches/{matchID}/ready", "Set ready flag", readyRequest{}, services.ReadyResult{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/matches/{matchID}/phases/{phaseID}/selections", "Make selection", selectionRequest{}, services.SelectionResult{}, http.StatusCreated,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/matches/{matchID}/phases/{phaseID}/skip", "Skip optional phase", phasePath{}, nextPhaseResponse{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/matches/{matchID}/scores", "Submit score", submitScoreRequest{}, models.ScoreSubmission{}, http.StatusCreated,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/matches/{matchID}/scores/{submissionID}/verify", "Verify score", verifyScoreRequest{}, services.VerifyScoreResult{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/matches/{matchID}/access-links", "Generate access links", matchPath{}, accessLinksResponse{}, http.StatusCreated,
			[]int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/matches/{matchID}/participants/{participantID}/access-email", "Send access email", accessEmailRequest{}, services.AccessEmailResult{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable}},
		{http.MethodGet, "/tournaments/{tournamentID}/phases", "List phase templates", tournamentPath{}, phaseTemplatesResponse{}, http.StatusOK,
			[]int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/tournaments/{tournamentID}/phases", "Create phase template", createTemplateRequest{}, models.TournamentPhase{}, http.StatusCreated,
			[]int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}},
		{http.MethodDelete, "/tournaments/{tournamentID}/phases/{phaseID}", "Delete phase template", deleteTemplateRequest{}, nil, http.StatusNoContent,
			[]int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodGet, "/healthz", "Health check", nil, HealthResponse{}, http.StatusOK,
			[]int{http.StatusServiceUnavailable}},
	}

	for _, op := range ops {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.path != "/healthz" {
			oc.SetDescription(successEnvelopeNote)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddReqStructure(accessedRequest{})
		oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	ws, err := r.NewOperationContext(http.MethodGet, "/ws/matches/{matchID}")
	if err == nil {
		ws.SetSummary("Match event stream")
		ws.SetDescription("WebSocket: первое сообщение match_state, затем события матча.")
		ws.AddReqStructure(matchPath{})
		ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
			openapi.WithContentType("text/plain"))
		_ = r.AddOperation(ws)
	}

	return r.Spec
}

// OpenAPIHandler отдает описание API; спецификация собирается один раз.
func OpenAPIHandler() http.HandlerFunc {
	data, _ := json.MarshalIndent(newOpenAPISpec(), "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(data)
	}
}
