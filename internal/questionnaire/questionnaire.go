package questionnaire

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Questionnaire is an ordered, numbered set of questions with its metadata.
type Questionnaire struct {
	ID            string
	OwnerID       string
	Title         string
	Description   string
	AcceptAnswers bool
	AnswerSetIDs  []string
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	questions []*Question
}

// Record is the stored form of a Questionnaire.
type Record struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	AcceptAnswers bool          `json:"accept_answers"`
	Questions     []QuestionDef `json:"questions"`
	AnswerSetIDs  []string      `json:"answer_set_ids"`
	Version       int           `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Definition is what an author submits to create a questionnaire.
type Definition struct {
	Title         string        `json:"title" yaml:"title"`
	Description   string        `json:"description" yaml:"description"`
	AcceptAnswers bool          `json:"accept_answers" yaml:"accept_answers"`
	Questions     []QuestionDef `json:"questions" yaml:"questions"`
}

// New builds a questionnaire and numbers its questions 1..N in order.
func New(title, description string, acceptAnswers bool, ownerID string, questions []*Question) (*Questionnaire, error) {
	numbered, err := Number(questions)
	if err != nil {
		return nil, err
	}
	return &Questionnaire{
		OwnerID:       ownerID,
		Title:         title,
		Description:   description,
		AcceptAnswers: acceptAnswers,
		questions:     numbered,
	}, nil
}

// Number returns copies of questions numbered 1..N. An empty list is a definition error.
func Number(questions []*Question) ([]*Question, error) {
	if len(questions) == 0 {
		return nil, definitionErr("questions", "must not be empty")
	}
	out := make([]*Question, len(questions))
	for i, q := range questions {
		if q == nil {
			return nil, definitionErr(fmt.Sprintf("questions[%d]", i), "is nil")
		}
		out[i] = q.withNumber(i + 1)
	}
	return out, nil
}

// BuildQuestions reconstructs and numbers a list of stored question definitions.
func BuildQuestions(defs []QuestionDef, reg *Registry) ([]*Question, error) {
	if len(defs) == 0 {
		return nil, definitionErr("questions", "must not be empty")
	}
	qs := make([]*Question, 0, len(defs))
	for i, def := range defs {
		q, err := BuildQuestion(def, reg)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		qs = append(qs, q)
	}
	return Number(qs)
}

// Build turns a stored record into a questionnaire with live rules.
func Build(rec *Record, reg *Registry) (*Questionnaire, error) {
	qs, err := BuildQuestions(rec.Questions, reg)
	if err != nil {
		return nil, fmt.Errorf("questionnaire %s: %w", rec.ID, err)
	}
	return &Questionnaire{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		Title:         rec.Title,
		Description:   rec.Description,
		AcceptAnswers: rec.AcceptAnswers,
		AnswerSetIDs:  append([]string(nil), rec.AnswerSetIDs...),
		Version:       rec.Version,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		questions:     qs,
	}, nil
}

func (q *Questionnaire) Questions() []*Question { return append([]*Question(nil), q.questions...) }

// ReplaceQuestions swaps the whole question list, renumbering it.
func (q *Questionnaire) ReplaceQuestions(questions []*Question) error {
	numbered, err := Number(questions)
	if err != nil {
		return err
	}
	q.questions = numbered
	return nil
}

func (q *Questionnaire) HasAnswers() bool { return len(q.AnswerSetIDs) > 0 }

// ValidateAnswers checks a full answer set. Shape problems fail at once;
// rule failures from every question are collected into one error.
func (q *Questionnaire) ValidateAnswers(answers []Answer) error {
	if len(answers) != len(q.questions) {
		return &AnswerCountMismatchError{Expected: len(q.questions), Got: len(answers)}
	}
	// every answer is located before any rule runs
	matched := make([]Answer, len(q.questions))
	for i, question := range q.questions {
		a, err := FindAnswer(answers, question.Number())
		if err != nil {
			return err
		}
		matched[i] = a
	}
	var failures []Failure
	for i, question := range q.questions {
		fs, err := question.ValidateAnswer(matched[i])
		if err != nil {
			return err
		}
		failures = append(failures, fs...)
	}
	if len(failures) > 0 {
		return &AggregatedValidationError{Failures: failures}
	}
	return nil
}

func (q *Questionnaire) Record() *Record {
	rec := &Record{
		ID:            q.ID,
		OwnerID:       q.OwnerID,
		Title:         q.Title,
		Description:   q.Description,
		AcceptAnswers: q.AcceptAnswers,
		Questions:     make([]QuestionDef, 0, len(q.questions)),
		AnswerSetIDs:  append([]string(nil), q.AnswerSetIDs...),
		Version:       q.Version,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
	for _, question := range q.questions {
		rec.Questions = append(rec.Questions, question.Def())
	}
	return rec
}

func (q *Questionnaire) MarshalJSON() ([]byte, error) { return json.Marshal(q.Record()) }

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.AnswerSetIDs = append([]string(nil), r.AnswerSetIDs...)
	cp.Questions = make([]QuestionDef, len(r.Questions))
	for i, def := range r.Questions {
		d := def
		d.Options = append([]string(nil), def.Options...)
		d.Rules = make([]RuleConfig, len(def.Rules))
		for j, rc := range def.Rules {
			d.Rules[j] = RuleConfig{Name: rc.Name, Args: append([]Arg(nil), rc.Args...)}
		}
		if len(d.Rules) == 0 {
			d.Rules = nil
		}
		if len(d.Options) == 0 {
			d.Options = nil
		}
		cp.Questions[i] = d
	}
	return &cp
}

// LoadDefinition decodes a YAML questionnaire definition. Unknown keys are rejected.
func LoadDefinition(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode questionnaire definition: %w", err)
	}
	return &def, nil
}
