package db

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
)

// MemoryStore is a process-local store. Records are cloned on the way in and
// out so callers never share state with it.
type MemoryStore struct {
	mu             sync.RWMutex
	questionnaires map[string]*questionnaire.Record
	answerSets     map[string][]*questionnaire.AnswerSet
	usersByEmail   map[string]*services.User
}

var (
	_ services.QuestionnaireStore = (*MemoryStore)(nil)
	_ services.UserStore          = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questionnaires: map[string]*questionnaire.Record{},
		answerSets:     map[string][]*questionnaire.AnswerSet{},
		usersByEmail:   map[string]*services.User{},
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) InsertQuestionnaire(_ context.Context, rec *questionnaire.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questionnaires[rec.ID]; ok {
		return services.NewConflictError("questionnaire id exists")
	}
	s.questionnaires[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) GetQuestionnaire(_ context.Context, id string) (*questionnaire.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionnaires[id].Clone(), nil
}

func (s *MemoryStore) ListQuestionnairesByOwner(_ context.Context, ownerID string) ([]*questionnaire.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*questionnaire.Record
	for _, rec := range s.questionnaires {
		if rec.OwnerID == ownerID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// guarded returns the live record when its version matches. Callers hold mu.
func (s *MemoryStore) guarded(id string, expectedVersion int) (*questionnaire.Record, error) {
	cur, ok := s.questionnaires[id]
	if !ok {
		return nil, services.ErrQuestionnaireNotFound
	}
	if cur.Version != expectedVersion {
		return nil, services.ErrConcurrentUpdate
	}
	return cur, nil
}

func (s *MemoryStore) UpdateQuestionnaire(_ context.Context, rec *questionnaire.Record, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.guarded(rec.ID, expectedVersion)
	if err != nil {
		return err
	}
	if len(cur.AnswerSetIDs) > 0 {
		return services.ErrHasAnswers
	}
	next := rec.Clone()
	next.OwnerID = cur.OwnerID
	next.CreatedAt = cur.CreatedAt
	next.AnswerSetIDs = nil
	s.questionnaires[rec.ID] = next
	return nil
}

func (s *MemoryStore) SetAcceptAnswers(_ context.Context, id string, accept bool, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.guarded(id, expectedVersion)
	if err != nil {
		return err
	}
	cur.AcceptAnswers = accept
	cur.Version++
	return nil
}

func (s *MemoryStore) DeleteQuestionnaire(_ context.Context, id string, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.guarded(id, expectedVersion)
	if err != nil {
		return err
	}
	if len(cur.AnswerSetIDs) > 0 {
		return services.ErrHasAnswers
	}
	delete(s.questionnaires, id)
	delete(s.answerSets, id)
	return nil
}

func (s *MemoryStore) InsertAnswerSet(_ context.Context, set *questionnaire.AnswerSet, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.guarded(set.QuestionnaireID, expectedVersion)
	if err != nil {
		return err
	}
	if !cur.AcceptAnswers {
		return services.ErrAnswersNotAccepted
	}
	s.answerSets[cur.ID] = append(s.answerSets[cur.ID], set.Clone())
	cur.AnswerSetIDs = append(cur.AnswerSetIDs, set.ID)
	return nil
}

func (s *MemoryStore) ListAnswerSets(_ context.Context, questionnaireID string) ([]*questionnaire.AnswerSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sets := s.answerSets[questionnaireID]
	out := make([]*questionnaire.AnswerSet, 0, len(sets))
	for _, set := range sets {
		out = append(out, set.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) InsertUser(_ context.Context, u *services.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := s.usersByEmail[key]; ok {
		return services.NewConflictError("email exists")
	}
	cp := *u
	cp.Email = key
	s.usersByEmail[key] = &cp
	return nil
}
