package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error to a status code and error body.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			logger.Int("status", status),
			logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrDiaryNotFound):
		return http.StatusNotFound, "diary_not_found"
	case errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound, "card_not_found"
	case errors.Is(err, domain.ErrCardLocked):
		return http.StatusConflict, "card_locked"
	case errors.Is(err, domain.ErrStaleSuggestion):
		return http.StatusConflict, "stale_suggestion"
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return http.StatusBadGateway, "collaborator_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON body into v and validates its struct tags.
// Every failure is a domain validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("body", "empty request body")
		}
		return domain.Invalid("body", err.Error())
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.Invalid(jsonField(fe.Namespace()), fmt.Sprintf("failed %q rule", fe.Tag()))
		}
		return domain.Invalid("body", err.Error())
	}
	return nil
}

// jsonField turns a validator namespace like "moveRequest.CardID" into
// "cardId".
func jsonField(ns string) string {
	if i := strings.LastIndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return ns
	}
	ns = strings.Replace(ns, "ID", "Id", 1)
	ns = strings.Replace(ns, "URL", "Url", 1)
	return strings.ToLower(ns[:1]) + ns[1:]
}
