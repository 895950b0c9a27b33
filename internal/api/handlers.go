package api

import (
	"fmt"
	"net/http"

	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type questionnaireRequest struct {
	Title         string                      `json:"title" validate:"max=200"`
	Description   string                      `json:"description" validate:"max=4000"`
	AcceptAnswers bool                        `json:"accept_answers"`
	Questions     []questionnaire.QuestionDef `json:"questions"`
}

type acceptRequest struct {
	AcceptAnswers *bool `json:"accept_answers" validate:"required"`
}

type answerRequest struct {
	QuestionNumber int                 `json:"question_number" validate:"gte=1"`
	Value          questionnaire.Value `json:"value"`
}

type submitRequest struct {
	Answers []answerRequest `json:"answers" validate:"dive"`
}

func (req submitRequest) answers() []questionnaire.Answer {
	out := make([]questionnaire.Answer, len(req.Answers))
	for i, a := range req.Answers {
		out[i] = questionnaire.Answer{QuestionNumber: a.QuestionNumber, Value: a.Value}
	}
	return out
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := rt.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := rt.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := rt.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := rt.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/rules
func (rt *Router) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": rt.questionnaires.Registry().Names()})
}

// GET /api/questionnaires
func (rt *Router) handleListMine(w http.ResponseWriter, r *http.Request) {
	recs, err := rt.questionnaires.ListByOwner(r.Context(), uid(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*questionnaire.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questionnaires": recs})
}

// POST /api/questionnaires
func (rt *Router) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req questionnaireRequest
	if err := rt.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := rt.questionnaires.CreateFromDefinition(r.Context(), uid(r), questionnaire.Definition{
		Title:         req.Title,
		Description:   req.Description,
		AcceptAnswers: req.AcceptAnswers,
		Questions:     req.Questions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// GET /api/questionnaires/{id}
func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	q, err := rt.questionnaires.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// PUT /api/questionnaires/{id}
func (rt *Router) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch services.Patch
	if err := rt.decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := rt.questionnaires.Update(r.Context(), r.PathValue("id"), uid(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// PUT /api/questionnaires/{id}/accept opens or closes a questionnaire for
// answers. Unlike PUT /api/questionnaires/{id} it stays allowed once answers
// exist.
func (rt *Router) handleSetAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := rt.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := rt.questionnaires.SetAcceptAnswers(r.Context(), r.PathValue("id"), uid(r), *req.AcceptAnswers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// DELETE /api/questionnaires/{id}
func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := rt.questionnaires.Delete(r.Context(), r.PathValue("id"), uid(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/questionnaires/{id}/answers
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := rt.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	set, err := rt.questionnaires.SubmitAnswers(r.Context(), r.PathValue("id"), uid(r), req.answers())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

// GET /api/questionnaires/{id}/answers, owner only
func (rt *Router) handleAnswerSets(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := rt.questionnaires.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if q.OwnerID != uid(r) {
		writeError(w, r, services.ErrNotOwner)
		return
	}
	sets, err := rt.questionnaires.AnswerSets(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sets == nil {
		sets = []*questionnaire.AnswerSet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer_sets": sets})
}

// GET /api/questionnaires/{id}/export?format=long|wide
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := services.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	b, err := rt.questionnaires.ExportCSV(r.Context(), id, uid(r), format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s.csv", id, format))
	_, _ = w.Write(b)
}
