package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/soaringjerry/qforms/internal/middleware"
	"github.com/soaringjerry/qforms/internal/services"
)

const maxBodyBytes = 1 << 20

type Router struct {
	questionnaires *services.QuestionnaireService
	auth           *services.AuthService
	tokens         *middleware.TokenIssuer
	validate       *validator.Validate
}

func NewRouter(questionnaires *services.QuestionnaireService, auth *services.AuthService, tokens *middleware.TokenIssuer) *Router {
	return &Router{
		questionnaires: questionnaires,
		auth:           auth,
		tokens:         tokens,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.HandleFunc("GET /api/rules", rt.handleRules)

	mux.Handle("GET /api/questionnaires", rt.authed(rt.handleListMine))
	mux.Handle("POST /api/questionnaires", rt.authed(rt.handleCreate))
	mux.Handle("GET /api/questionnaires/{id}", rt.authed(rt.handleGet))
	mux.Handle("PUT /api/questionnaires/{id}", rt.authed(rt.handleUpdate))
	mux.Handle("PUT /api/questionnaires/{id}/accept", rt.authed(rt.handleSetAccept))
	mux.Handle("DELETE /api/questionnaires/{id}", rt.authed(rt.handleDelete))
	mux.Handle("POST /api/questionnaires/{id}/answers", rt.authed(rt.handleSubmit))
	mux.Handle("GET /api/questionnaires/{id}/answers", rt.authed(rt.handleAnswerSets))
	mux.Handle("GET /api/questionnaires/{id}/export", rt.authed(rt.handleExport))
}

func (rt *Router) authed(h http.HandlerFunc) http.Handler {
	return rt.tokens.WithAuth(middleware.RequireAuth(h))
}

// decode reads a JSON body into dst, rejecting unknown fields, and runs the
// struct's validate tags.
func (rt *Router) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewInvalidError("request body required")
		}
		return services.NewInvalidError("invalid JSON: " + err.Error())
	}
	if err := rt.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
			}
			return services.NewInvalidError(strings.Join(fields, "; "))
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func uid(r *http.Request) string {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}
