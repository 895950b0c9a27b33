package services

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soaringjerry/qforms/internal/questionnaire"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(b)))
	return r.ReadAll()
}

func exportFixture(t *testing.T) (*questionnaire.Questionnaire, []*questionnaire.AnswerSet) {
	t.Helper()
	qs, err := questionnaire.BuildQuestions([]questionnaire.QuestionDef{
		{Prompt: "Crop", Type: questionnaire.TypeCheckbox, Options: []string{"corn", "rice"}},
		{Prompt: "Hectares", Type: questionnaire.TypeNumber},
	}, questionnaire.DefaultRegistry())
	if err != nil {
		t.Fatalf("BuildQuestions: %v", err)
	}
	q, err := questionnaire.New("Census", "", true, "owner-a", qs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	sets := []*questionnaire.AnswerSet{
		{ID: "s2", IssuerID: "r2", SubmittedAt: base.Add(time.Hour), Answers: []questionnaire.Answer{
			{QuestionNumber: 2, Value: questionnaire.NumberValue(3.5)},
			{QuestionNumber: 1, Value: questionnaire.ChoiceValue("rice")},
		}},
		{ID: "s1", IssuerID: "r1", SubmittedAt: base, Answers: []questionnaire.Answer{
			{QuestionNumber: 1, Value: questionnaire.ChoiceValue("corn", "rice")},
			{QuestionNumber: 2, Value: questionnaire.NumberValue(12)},
		}},
	}
	return q, sets
}

func TestExportLongCSV(t *testing.T) {
	q, sets := exportFixture(t)
	rows := LongRows(q, sets)
	if len(rows) != 4 {
		t.Fatalf("want 4 rows, got %d", len(rows))
	}
	if rows[0].AnswerSetID != "s1" || rows[0].QuestionNumber != 1 || rows[2].AnswerSetID != "s2" || rows[2].QuestionNumber != 1 {
		t.Fatalf("rows not ordered by submission then question: %+v", rows)
	}
	b, err := ExportLongCSV(rows)
	if err != nil {
		t.Fatalf("export long: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if got := strings.Join(recs[0], ","); got != "answer_set_id,issuer_id,submitted_at,question_number,prompt,value" {
		t.Fatalf("bad header: %s", got)
	}
	want := []string{"s1", "r1", "2025-01-02T00:00:00Z", "1", "Crop", "corn, rice"}
	if strings.Join(recs[1], "|") != strings.Join(want, "|") {
		t.Fatalf("row 1 = %v, want %v", recs[1], want)
	}
	if recs[4][5] != "3.5" {
		t.Fatalf("number cell = %q", recs[4][5])
	}
}

func TestExportWideCSV(t *testing.T) {
	q, sets := exportFixture(t)
	b, err := ExportWideCSV(q, sets)
	if err != nil {
		t.Fatalf("export wide: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d", len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "answer_set_id,issuer_id,submitted_at,Q1,Q2" {
		t.Fatalf("bad header: %s", got)
	}
	if recs[1][0] != "s1" || recs[1][4] != "12" || recs[2][3] != "rice" {
		t.Fatalf("unexpected rows: %v", recs[1:])
	}
}

func TestParseExportFormat(t *testing.T) {
	cases := map[string]ExportFormat{"": ExportLong, "long": ExportLong, "wide": ExportWide}
	for in, want := range cases {
		got, err := ParseExportFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseExportFormat(%q) = %q, %v", in, got, err)
		}
	}
	_, err := ParseExportFormat("xlsx")
	if se, ok := AsServiceError(err); !ok || se.Code != ErrorInvalid {
		t.Fatalf("unknown format err = %v", err)
	}
}

func TestExportCSVRequiresOwner(t *testing.T) {
	svc := newTestService(newStubQuestionnaireStore())
	ctx := context.Background()
	created, err := svc.CreateFromDefinition(ctx, "owner-a", farmDefinition(true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SubmitAnswers(ctx, created.ID, "r", validAnswers()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.ExportCSV(ctx, created.ID, "owner-b", ExportLong); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	b, err := svc.ExportCSV(ctx, created.ID, "owner-a", ExportWide)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil || len(recs) != 2 || recs[1][3] != "1710034065" {
		t.Fatalf("wide export = %v, %v", recs, err)
	}
}
