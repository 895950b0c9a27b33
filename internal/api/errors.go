package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/qforms/internal/middleware"
	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
	"github.com/soaringjerry/qforms/internal/utils"
)

type errorBody struct {
	Error    string                  `json:"error"`
	Message  string                  `json:"message"`
	Detail   string                  `json:"detail,omitempty"`
	Failures []questionnaire.Failure `json:"failures,omitempty"`
}

// classify maps an error to a status code and a translation key.
func classify(err error) (int, string) {
	var (
		agg      *questionnaire.AggregatedValidationError
		defErr   *questionnaire.DefinitionError
		unknown  *questionnaire.UnknownRuleError
		argErr   *questionnaire.RuleArgError
		count    *questionnaire.AnswerCountMismatchError
		missing  *questionnaire.AnswerNotFoundError
		mismatch *questionnaire.QuestionMismatchError
		parseErr *questionnaire.ParseError
	)
	switch {
	case errors.Is(err, services.ErrQuestionnaireNotFound):
		return http.StatusNotFound, "error.not_found"
	case errors.Is(err, services.ErrNotOwner):
		return http.StatusForbidden, "error.not_owner"
	case errors.Is(err, services.ErrHasAnswers):
		return http.StatusConflict, "error.has_answers"
	case errors.Is(err, services.ErrAnswersNotAccepted):
		return http.StatusConflict, "error.answers_not_accepted"
	case errors.Is(err, services.ErrConcurrentUpdate):
		return http.StatusConflict, "error.concurrent_update"
	case errors.As(err, &agg):
		return http.StatusUnprocessableEntity, "error.validation"
	case errors.As(err, &unknown):
		return http.StatusBadRequest, "error.unknown_rule"
	case errors.As(err, &defErr), errors.As(err, &argErr), errors.As(err, &parseErr):
		return http.StatusBadRequest, "error.definition"
	case errors.As(err, &count):
		return http.StatusBadRequest, "error.answer_count"
	case errors.As(err, &missing):
		return http.StatusBadRequest, "error.answer_not_found"
	case errors.As(err, &mismatch):
		return http.StatusBadRequest, "error.question_mismatch"
	}
	if se, ok := services.AsServiceError(err); ok {
		switch se.Code {
		case services.ErrorInvalid:
			return http.StatusBadRequest, "error.invalid"
		case services.ErrorUnauthorized:
			return http.StatusUnauthorized, "error.unauthorized"
		case services.ErrorForbidden:
			return http.StatusForbidden, "error.forbidden"
		case services.ErrorNotFound:
			return http.StatusNotFound, "error.not_found"
		case services.ErrorConflict:
			return http.StatusConflict, "error.conflict"
		}
	}
	return http.StatusInternalServerError, "error.internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, key := classify(err)
	body := errorBody{
		Error:   key,
		Message: utils.T(middleware.LocaleFromContext(r.Context()), key),
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	} else {
		body.Detail = err.Error()
	}
	var agg *questionnaire.AggregatedValidationError
	if errors.As(err, &agg) {
		body.Failures = agg.Failures
	}
	writeJSON(w, status, body)
}
