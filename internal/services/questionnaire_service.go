package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/qforms/internal/questionnaire"
)

// QuestionnaireStore persists questionnaires and their answer sets.
// GetQuestionnaire returns nil, nil when the id is unknown. The guarded
// writes compare expectedVersion with the stored version and fail with
// ErrConcurrentUpdate, ErrHasAnswers or ErrAnswersNotAccepted.
type QuestionnaireStore interface {
	InsertQuestionnaire(ctx context.Context, rec *questionnaire.Record) error
	GetQuestionnaire(ctx context.Context, id string) (*questionnaire.Record, error)
	ListQuestionnairesByOwner(ctx context.Context, ownerID string) ([]*questionnaire.Record, error)
	UpdateQuestionnaire(ctx context.Context, rec *questionnaire.Record, expectedVersion int) error
	SetAcceptAnswers(ctx context.Context, id string, accept bool, expectedVersion int) error
	DeleteQuestionnaire(ctx context.Context, id string, expectedVersion int) error
	InsertAnswerSet(ctx context.Context, set *questionnaire.AnswerSet, expectedVersion int) error
	ListAnswerSets(ctx context.Context, questionnaireID string) ([]*questionnaire.AnswerSet, error)
}

type QuestionnaireService struct {
	store    QuestionnaireStore
	registry *questionnaire.Registry
	locks    *keyedMutex
	now      func() time.Time
	idGen    func() string
}

// Patch is a partial update. Nil fields are left alone; a non-nil Questions
// list replaces every question and must not be empty.
type Patch struct {
	Title         *string                     `json:"title"`
	Description   *string                     `json:"description"`
	AcceptAnswers *bool                       `json:"accept_answers"`
	Questions     []questionnaire.QuestionDef `json:"questions"`
}

func NewQuestionnaireService(store QuestionnaireStore, registry *questionnaire.Registry) *QuestionnaireService {
	if registry == nil {
		registry = questionnaire.DefaultRegistry()
	}
	return &QuestionnaireService{
		store:    store,
		registry: registry,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    uuid.NewString,
	}
}

func (s *QuestionnaireService) Registry() *questionnaire.Registry { return s.registry }

// Create stores a questionnaire authored in code. Every rule must be
// rebuildable from its name and args through the service registry.
func (s *QuestionnaireService) Create(ctx context.Context, ownerID, title, description string, acceptAnswers bool, questions []*questionnaire.Question) (*questionnaire.Questionnaire, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, NewInvalidError("owner id required")
	}
	q, err := questionnaire.New(title, description, acceptAnswers, ownerID, questions)
	if err != nil {
		return nil, err
	}
	if err := s.checkRebuildable(q); err != nil {
		return nil, err
	}
	return s.insert(ctx, q)
}

// CreateFromDefinition stores a questionnaire described by plain data.
func (s *QuestionnaireService) CreateFromDefinition(ctx context.Context, ownerID string, def questionnaire.Definition) (*questionnaire.Questionnaire, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, NewInvalidError("owner id required")
	}
	qs, err := questionnaire.BuildQuestions(def.Questions, s.registry)
	if err != nil {
		return nil, err
	}
	q, err := questionnaire.New(def.Title, def.Description, def.AcceptAnswers, ownerID, qs)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, q)
}

func (s *QuestionnaireService) insert(ctx context.Context, q *questionnaire.Questionnaire) (*questionnaire.Questionnaire, error) {
	now := s.now()
	q.ID = s.idGen()
	q.Version = 1
	q.CreatedAt = now
	q.UpdatedAt = now
	if err := s.store.InsertQuestionnaire(ctx, q.Record()); err != nil {
		return nil, fmt.Errorf("insert questionnaire: %w", err)
	}
	slog.Info("questionnaire created",
		slog.String("id", q.ID),
		slog.String("owner", q.OwnerID),
		slog.Int("questions", len(q.Questions())))
	return q, nil
}

func (s *QuestionnaireService) checkRebuildable(q *questionnaire.Questionnaire) error {
	for _, question := range q.Questions() {
		for i, r := range question.Rules() {
			if _, err := s.registry.ConstructConfig(questionnaire.ConfigOf(r)); err != nil {
				return fmt.Errorf("question %d: rules[%d]: %w", question.Number(), i, err)
			}
		}
	}
	return nil
}

// Get loads a questionnaire and rebuilds its rules.
func (s *QuestionnaireService) Get(ctx context.Context, id string) (*questionnaire.Questionnaire, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	return questionnaire.Build(rec, s.registry)
}

func (s *QuestionnaireService) record(ctx context.Context, id string) (*questionnaire.Record, error) {
	rec, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get questionnaire: %w", err)
	}
	if rec == nil {
		return nil, ErrQuestionnaireNotFound
	}
	return rec, nil
}

// mutable loads a record for a structural change: the caller must own it and
// it must have no answers yet.
func (s *QuestionnaireService) mutable(ctx context.Context, id, ownerID, action string) (*questionnaire.Record, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		slog.Warn("questionnaire "+action+" refused: not owner", slog.String("id", id), slog.String("caller", ownerID))
		return nil, ErrNotOwner
	}
	if len(rec.AnswerSetIDs) > 0 {
		slog.Warn("questionnaire "+action+" refused: has answers", slog.String("id", id), slog.Int("answer_sets", len(rec.AnswerSetIDs)))
		return nil, ErrHasAnswers
	}
	return rec, nil
}

func (s *QuestionnaireService) Update(ctx context.Context, id, ownerID string, patch Patch) (*questionnaire.Questionnaire, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.mutable(ctx, id, ownerID, "update")
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	if patch.AcceptAnswers != nil {
		rec.AcceptAnswers = *patch.AcceptAnswers
	}
	if patch.Questions != nil {
		qs, err := questionnaire.BuildQuestions(patch.Questions, s.registry)
		if err != nil {
			return nil, err
		}
		rec.Questions = make([]questionnaire.QuestionDef, 0, len(qs))
		for _, q := range qs {
			rec.Questions = append(rec.Questions, q.Def())
		}
	}
	q, err := questionnaire.Build(rec, s.registry)
	if err != nil {
		return nil, err
	}
	expected := q.Version
	q.Version++
	q.UpdatedAt = s.now()
	if err := s.store.UpdateQuestionnaire(ctx, q.Record(), expected); err != nil {
		return nil, fmt.Errorf("update questionnaire: %w", err)
	}
	slog.Info("questionnaire updated", slog.String("id", id), slog.Int("version", q.Version))
	return q, nil
}

// SetAcceptAnswers opens or closes a questionnaire. It is not a structural
// change, so it is allowed after answers exist.
func (s *QuestionnaireService) SetAcceptAnswers(ctx context.Context, id, ownerID string, accept bool) (*questionnaire.Questionnaire, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	if err := s.store.SetAcceptAnswers(ctx, id, accept, rec.Version); err != nil {
		return nil, fmt.Errorf("set accept answers: %w", err)
	}
	rec.AcceptAnswers = accept
	rec.Version++
	slog.Info("questionnaire accept answers changed", slog.String("id", id), slog.Bool("accept", accept))
	return questionnaire.Build(rec, s.registry)
}

func (s *QuestionnaireService) Delete(ctx context.Context, id, ownerID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.mutable(ctx, id, ownerID, "delete")
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuestionnaire(ctx, id, rec.Version); err != nil {
		return fmt.Errorf("delete questionnaire: %w", err)
	}
	slog.Info("questionnaire deleted", slog.String("id", id))
	return nil
}

// SubmitAnswers validates a full answer set and stores it.
func (s *QuestionnaireService) SubmitAnswers(ctx context.Context, id, issuerID string, answers []questionnaire.Answer) (*questionnaire.AnswerSet, error) {
	if strings.TrimSpace(issuerID) == "" {
		return nil, NewInvalidError("issuer id required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.AcceptAnswers {
		return nil, ErrAnswersNotAccepted
	}
	if err := q.ValidateAnswers(answers); err != nil {
		return nil, err
	}
	set := &questionnaire.AnswerSet{
		ID:              s.idGen(),
		QuestionnaireID: q.ID,
		IssuerID:        issuerID,
		SubmittedAt:     s.now(),
		Answers:         append([]questionnaire.Answer(nil), answers...),
	}
	if err := s.store.InsertAnswerSet(ctx, set, q.Version); err != nil {
		return nil, fmt.Errorf("insert answer set: %w", err)
	}
	slog.Info("answers submitted",
		slog.String("questionnaire", q.ID),
		slog.String("answer_set", set.ID),
		slog.String("issuer", issuerID))
	return set, nil
}

func (s *QuestionnaireService) AnswerSets(ctx context.Context, id string) ([]*questionnaire.AnswerSet, error) {
	if _, err := s.record(ctx, id); err != nil {
		return nil, err
	}
	sets, err := s.store.ListAnswerSets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list answer sets: %w", err)
	}
	return sets, nil
}

func (s *QuestionnaireService) ListByOwner(ctx context.Context, ownerID string) ([]*questionnaire.Record, error) {
	recs, err := s.store.ListQuestionnairesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list questionnaires: %w", err)
	}
	return recs, nil
}
