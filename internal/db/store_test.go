package db

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
)

type testStore interface {
	services.QuestionnaireStore
	services.UserStore
}

func sampleRecord(id, owner string, created time.Time) *questionnaire.Record {
	return &questionnaire.Record{
		ID:            id,
		OwnerID:       owner,
		Title:         "Farm census",
		Description:   "Yearly",
		AcceptAnswers: true,
		Version:       1,
		CreatedAt:     created,
		UpdatedAt:     created,
		Questions: []questionnaire.QuestionDef{
			{Number: 1, Prompt: "Name", Type: questionnaire.TypeText, Rules: []questionnaire.RuleConfig{
				{Name: questionnaire.RuleRequired},
				{Name: questionnaire.RuleMinLength, Args: []questionnaire.Arg{questionnaire.IntArg(3)}},
			}},
			{Number: 2, Prompt: "Crops", Type: questionnaire.TypeCheckbox, Options: []string{"corn", "rice"}, AllowOtherOption: true,
				Rules: []questionnaire.RuleConfig{
					{Name: questionnaire.RuleInList, Args: []questionnaire.Arg{questionnaire.StrArg("corn"), questionnaire.StrArg("rice")}},
				}},
		},
	}
}

func sampleSet(id, qid string, at time.Time) *questionnaire.AnswerSet {
	return &questionnaire.AnswerSet{
		ID:              id,
		QuestionnaireID: qid,
		IssuerID:        "respondent",
		SubmittedAt:     at,
		Answers: []questionnaire.Answer{
			{QuestionNumber: 1, Value: questionnaire.TextValue("Ana")},
			{QuestionNumber: 2, Value: questionnaire.ChoiceValue("corn", "rice")},
		},
	}
}

// runStoreContract checks the behaviour every store must share.
func runStoreContract(t *testing.T, st testStore) {
	ctx := context.Background()
	base := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		rec := sampleRecord("q-rt", "owner-rt", base)
		if err := st.InsertQuestionnaire(ctx, rec); err != nil {
			t.Fatalf("InsertQuestionnaire: %v", err)
		}
		got, err := st.GetQuestionnaire(ctx, "q-rt")
		if err != nil {
			t.Fatalf("GetQuestionnaire: %v", err)
		}
		if !reflect.DeepEqual(got, rec) {
			t.Fatalf("GetQuestionnaire = %+v, want %+v", got, rec)
		}
		built, err := questionnaire.Build(got, questionnaire.DefaultRegistry())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if n := len(built.Questions()[0].Rules()); n != 2 {
			t.Fatalf("rules = %d, want 2", n)
		}
		missing, err := st.GetQuestionnaire(ctx, "nope")
		if err != nil || missing != nil {
			t.Fatalf("GetQuestionnaire(nope) = %v, %v", missing, err)
		}
	})

	t.Run("guarded update", func(t *testing.T) {
		rec := sampleRecord("q-up", "owner-up", base)
		if err := st.InsertQuestionnaire(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		next := rec.Clone()
		next.Title = "Renamed"
		next.Version = 2
		if err := st.UpdateQuestionnaire(ctx, next, 1); err != nil {
			t.Fatalf("UpdateQuestionnaire: %v", err)
		}
		stale := rec.Clone()
		stale.Version = 2
		if err := st.UpdateQuestionnaire(ctx, stale, 1); !errors.Is(err, services.ErrConcurrentUpdate) {
			t.Fatalf("stale update err = %v, want ErrConcurrentUpdate", err)
		}
		if err := st.SetAcceptAnswers(ctx, "q-up", false, 2); err != nil {
			t.Fatalf("SetAcceptAnswers: %v", err)
		}
		got, _ := st.GetQuestionnaire(ctx, "q-up")
		if got.Title != "Renamed" || got.AcceptAnswers || got.Version != 3 {
			t.Fatalf("after updates = %+v", got)
		}
		if err := st.InsertAnswerSet(ctx, sampleSet("s-closed", "q-up", base), 3); !errors.Is(err, services.ErrAnswersNotAccepted) {
			t.Fatalf("insert into closed err = %v", err)
		}
		if err := st.UpdateQuestionnaire(ctx, next, 99); !errors.Is(err, services.ErrConcurrentUpdate) {
			t.Fatalf("wrong version err = %v", err)
		}
		missing := next.Clone()
		missing.ID = "ghost"
		if err := st.UpdateQuestionnaire(ctx, missing, 1); !errors.Is(err, services.ErrQuestionnaireNotFound) {
			t.Fatalf("missing update err = %v", err)
		}
	})

	t.Run("answer sets freeze the questionnaire", func(t *testing.T) {
		rec := sampleRecord("q-ans", "owner-ans", base)
		if err := st.InsertQuestionnaire(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := st.InsertAnswerSet(ctx, sampleSet("s2", "q-ans", base.Add(time.Minute)), 1); err != nil {
			t.Fatalf("InsertAnswerSet: %v", err)
		}
		if err := st.InsertAnswerSet(ctx, sampleSet("s1", "q-ans", base), 1); err != nil {
			t.Fatalf("InsertAnswerSet: %v", err)
		}
		sets, err := st.ListAnswerSets(ctx, "q-ans")
		if err != nil || len(sets) != 2 {
			t.Fatalf("ListAnswerSets = %d, %v", len(sets), err)
		}
		if !sets[1].Answers[1].Value.Equal(questionnaire.ChoiceValue("corn", "rice")) {
			t.Fatalf("choice answer = %v", sets[1].Answers[1].Value)
		}
		got, _ := st.GetQuestionnaire(ctx, "q-ans")
		if len(got.AnswerSetIDs) != 2 {
			t.Fatalf("answer set ids = %v", got.AnswerSetIDs)
		}
		next := rec.Clone()
		next.Version = 2
		if err := st.UpdateQuestionnaire(ctx, next, 1); !errors.Is(err, services.ErrHasAnswers) {
			t.Fatalf("update answered err = %v, want ErrHasAnswers", err)
		}
		if err := st.DeleteQuestionnaire(ctx, "q-ans", 1); !errors.Is(err, services.ErrHasAnswers) {
			t.Fatalf("delete answered err = %v, want ErrHasAnswers", err)
		}
		if err := st.SetAcceptAnswers(ctx, "q-ans", false, 1); err != nil {
			t.Fatalf("closing an answered questionnaire: %v", err)
		}
	})

	t.Run("answer sets list in submission order", func(t *testing.T) {
		if err := st.InsertQuestionnaire(ctx, sampleRecord("q-order", "owner-order", base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		// a fraction after the second must not sort before the whole second
		for _, set := range []*questionnaire.AnswerSet{
			sampleSet("s-late", "q-order", base.Add(2*time.Second)),
			sampleSet("s-half", "q-order", base.Add(500*time.Millisecond)),
			sampleSet("s-whole", "q-order", base),
		} {
			if err := st.InsertAnswerSet(ctx, set, 1); err != nil {
				t.Fatalf("InsertAnswerSet(%s): %v", set.ID, err)
			}
		}
		sets, err := st.ListAnswerSets(ctx, "q-order")
		if err != nil {
			t.Fatalf("ListAnswerSets: %v", err)
		}
		var ids []string
		for _, set := range sets {
			ids = append(ids, set.ID)
		}
		if want := []string{"s-whole", "s-half", "s-late"}; !reflect.DeepEqual(ids, want) {
			t.Fatalf("order = %v, want %v", ids, want)
		}
		if !sets[1].SubmittedAt.Equal(base.Add(500 * time.Millisecond)) {
			t.Fatalf("submitted_at = %v", sets[1].SubmittedAt)
		}
	})

	t.Run("delete and list", func(t *testing.T) {
		for i, id := range []string{"q-l1", "q-l2", "q-l3"} {
			if err := st.InsertQuestionnaire(ctx, sampleRecord(id, "owner-list", base.Add(time.Duration(i)*time.Second))); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		if err := st.DeleteQuestionnaire(ctx, "q-l2", 1); err != nil {
			t.Fatalf("DeleteQuestionnaire: %v", err)
		}
		recs, err := st.ListQuestionnairesByOwner(ctx, "owner-list")
		if err != nil {
			t.Fatalf("ListQuestionnairesByOwner: %v", err)
		}
		if len(recs) != 2 || recs[0].ID != "q-l1" || recs[1].ID != "q-l3" {
			t.Fatalf("list = %+v", recs)
		}
		if err := st.DeleteQuestionnaire(ctx, "q-l2", 1); !errors.Is(err, services.ErrQuestionnaireNotFound) {
			t.Fatalf("second delete err = %v", err)
		}
	})

	t.Run("users", func(t *testing.T) {
		u := &services.User{ID: "u1", Email: "Owner@Example.com", PassHash: []byte("hash"), Admin: true, CreatedAt: base}
		if err := st.InsertUser(ctx, u); err != nil {
			t.Fatalf("InsertUser: %v", err)
		}
		got, err := st.FindUserByEmail(ctx, "owner@example.com")
		if err != nil || got == nil || got.ID != "u1" || !got.Admin || string(got.PassHash) != "hash" {
			t.Fatalf("FindUserByEmail = %+v, %v", got, err)
		}
		err = st.InsertUser(ctx, &services.User{ID: "u2", Email: "owner@example.com", PassHash: []byte("x"), CreatedAt: base})
		if se, ok := services.AsServiceError(err); !ok || se.Code != services.ErrorConflict {
			t.Fatalf("duplicate email err = %v", err)
		}
		if none, err := st.FindUserByEmail(ctx, "nobody@example.com"); err != nil || none != nil {
			t.Fatalf("FindUserByEmail(nobody) = %v, %v", none, err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "qforms.db"), "")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()
	runStoreContract(t, st)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "qforms.db"), "")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()
	if err := RunMigrations(ctx, st.db, ""); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
	var n int
	if err := st.db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("schema_migrations rows = %d, want 1", n)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	rec := sampleRecord("q1", "o", time.Now().UTC())
	if err := st.InsertQuestionnaire(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec.Title = "changed after insert"
	got, _ := st.GetQuestionnaire(ctx, "q1")
	got.Questions[0].Prompt = "changed after read"
	again, _ := st.GetQuestionnaire(ctx, "q1")
	if again.Title != "Farm census" || again.Questions[0].Prompt != "Name" {
		t.Fatalf("store shares state with callers: %+v", again)
	}
}
