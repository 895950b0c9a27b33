package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/soaringjerry/qforms/internal/questionnaire"
)

type ExportFormat string

const (
	ExportLong ExportFormat = "long"
	ExportWide ExportFormat = "wide"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportLong:
		return ExportLong, nil
	case ExportWide:
		return ExportWide, nil
	default:
		return "", NewInvalidError(fmt.Sprintf("unknown export format %q", s))
	}
}

// LongRow is one answer of one answer set.
type LongRow struct {
	AnswerSetID    string
	IssuerID       string
	SubmittedAt    string
	QuestionNumber int
	Prompt         string
	Value          string
}

func sortedSets(sets []*questionnaire.AnswerSet) []*questionnaire.AnswerSet {
	out := append([]*questionnaire.AnswerSet(nil), sets...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// LongRows flattens answer sets in submission order, answers in question order.
func LongRows(q *questionnaire.Questionnaire, sets []*questionnaire.AnswerSet) []LongRow {
	var rows []LongRow
	for _, set := range sortedSets(sets) {
		for _, question := range q.Questions() {
			a, err := questionnaire.FindAnswer(set.Answers, question.Number())
			if err != nil {
				continue
			}
			rows = append(rows, LongRow{
				AnswerSetID:    set.ID,
				IssuerID:       set.IssuerID,
				SubmittedAt:    set.SubmittedAt.UTC().Format(time.RFC3339),
				QuestionNumber: question.Number(),
				Prompt:         question.Prompt(),
				Value:          a.Value.String(),
			})
		}
	}
	return rows
}

// ExportLongCSV renders rows into a long-format CSV.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"answer_set_id", "issuer_id", "submitted_at", "question_number", "prompt", "value"})
	for _, r := range rows {
		rec := []string{r.AnswerSetID, r.IssuerID, r.SubmittedAt, strconv.Itoa(r.QuestionNumber), r.Prompt, r.Value}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders one row per answer set and one column per question.
func ExportWideCSV(q *questionnaire.Questionnaire, sets []*questionnaire.AnswerSet) ([]byte, error) {
	questions := q.Questions()
	header := []string{"answer_set_id", "issuer_id", "submitted_at"}
	for _, question := range questions {
		header = append(header, fmt.Sprintf("Q%d", question.Number()))
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write(header)
	for _, set := range sortedSets(sets) {
		row := make([]string, 0, len(header))
		row = append(row, set.ID, set.IssuerID, set.SubmittedAt.UTC().Format(time.RFC3339))
		for _, question := range questions {
			cell := ""
			if a, err := questionnaire.FindAnswer(set.Answers, question.Number()); err == nil {
				cell = a.Value.String()
			}
			row = append(row, cell)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportCSV renders every answer set of a questionnaire for its owner.
func (s *QuestionnaireService) ExportCSV(ctx context.Context, id, ownerID string, format ExportFormat) ([]byte, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	sets, err := s.store.ListAnswerSets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list answer sets: %w", err)
	}
	if format == ExportWide {
		return ExportWideCSV(q, sets)
	}
	return ExportLongCSV(LongRows(q, sets))
}
