package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournament-matchroom/middleware"
	"github.com/Dosada05/tournament-matchroom/services"
)

type jsonResponse map[string]interface{}

// ErrorBody - тело ошибки в ответе: вид ошибки и сообщение.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

const (
	kindUnauthorized = "unauthorized"
	kindForbidden    = "forbidden"
	kindNotFound     = "not_found"
	kindInvalidState = "invalid_state"
	kindInvalidInput = "invalid_input"
	kindConflict     = "conflict"
	kindInternal     = "internal"
)

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // ошибка программиста: передан не указатель
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// readOptionalJSON допускает пустое тело запроса.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := readJSON(w, r, dst)
	if err != nil && err.Error() == "body must not be empty" {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// writeSuccess оборачивает данные в {"success": true, "data": ...}.
func writeSuccess(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, data interface{}) {
	if err := writeJSON(w, status, jsonResponse{"success": true, "data": data}, nil); err != nil {
		logger.ErrorContext(r.Context(), "failed to write JSON response", slog.Any("error", err))
	}
}

func errorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, kind, message string) {
	env := ErrorResponse{Error: ErrorBody{Kind: kind, Message: message}}
	if err := writeJSON(w, status, env, nil); err != nil {
		logger.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	// Детали внутренних ошибок только в логе.
	logger.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, logger, http.StatusInternalServerError, kindInternal, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	errorResponse(w, r, logger, http.StatusBadRequest, kindInvalidInput, err.Error())
}

// mapServiceErrorToHTTP сопоставляет вид ошибки сервиса со статусом ответа.
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		errorResponse(w, r, logger, http.StatusUnauthorized, kindUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		errorResponse(w, r, logger, http.StatusForbidden, kindForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		errorResponse(w, r, logger, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		errorResponse(w, r, logger, http.StatusBadRequest, kindInvalidState, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		errorResponse(w, r, logger, http.StatusBadRequest, kindInvalidInput, err.Error())
	case errors.Is(err, services.ErrConflict):
		errorResponse(w, r, logger, http.StatusConflict, kindConflict, err.Error())
	default:
		serverErrorResponse(w, r, logger, err)
	}
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing URL parameter: %s", paramName)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid URL parameter %s: %q", paramName, idStr)
	}
	return id, nil
}

// principalFromRequest собирает вызывающего из сессии и токена доступа.
func principalFromRequest(r *http.Request) services.Principal {
	var p services.Principal
	if userID, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		p.UserID = &userID
	}
	p.AccessToken = middleware.AccessTokenFromRequest(r)
	return p
}
