package questionnaire

import (
	"errors"
	"fmt"
	"strings"
)

// Question is one prompt of a questionnaire. Built questions are immutable.
type Question struct {
	number     int
	prompt     string
	qtype      QuestionType
	options    []string
	allowOther bool
	rules      []Rule
}

// QuestionDef is the persisted form of a Question.
type QuestionDef struct {
	Number           int          `json:"number,omitempty" yaml:"number,omitempty"`
	Prompt           string       `json:"prompt" yaml:"prompt"`
	Type             QuestionType `json:"type" yaml:"type"`
	Options          []string     `json:"options,omitempty" yaml:"options,omitempty"`
	AllowOtherOption bool         `json:"allow_other_option,omitempty" yaml:"allow_other_option,omitempty"`
	Rules            []RuleConfig `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// NewQuestion checks the shape of a question. Its number stays 0 until the
// question is placed in a Questionnaire.
func NewQuestion(prompt string, t QuestionType, options []string, allowOther bool, rules ...Rule) (*Question, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, definitionErr("prompt", "is required")
	}
	if !t.Valid() {
		return nil, definitionErr("type", "is required")
	}
	if len(options) == 0 && allowOther {
		return nil, definitionErr("allow_other_option", "needs a non-empty options list")
	}
	if len(options) > 0 && !t.IsChoice() {
		return nil, definitionErr("options", "only allowed on RADIO, CHECKBOX and SELECT questions, not %s", t)
	}
	for i, r := range rules {
		if r == nil {
			return nil, definitionErr(fmt.Sprintf("rules[%d]", i), "is nil")
		}
	}
	q := &Question{
		prompt:     prompt,
		qtype:      t,
		allowOther: allowOther,
	}
	if len(options) > 0 {
		q.options = append([]string(nil), options...)
	}
	if len(rules) > 0 {
		q.rules = append([]Rule(nil), rules...)
	}
	return q, nil
}

// BuildQuestion reconstructs a question from its stored form. Blank options
// and unnamed rule entries are dropped first.
func BuildQuestion(def QuestionDef, reg *Registry) (*Question, error) {
	var options []string
	for _, o := range def.Options {
		if strings.TrimSpace(o) != "" {
			options = append(options, o)
		}
	}
	var rules []Rule
	for i, rc := range def.Rules {
		if strings.TrimSpace(rc.Name) == "" {
			continue
		}
		r, err := reg.ConstructConfig(rc)
		if err != nil {
			var argErr *RuleArgError
			if errors.As(err, &argErr) {
				return nil, &DefinitionError{Field: fmt.Sprintf("rules[%d]", i), Reason: argErr.Error(), Err: err}
			}
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	q, err := NewQuestion(def.Prompt, def.Type, options, def.AllowOtherOption, rules...)
	if err != nil {
		return nil, err
	}
	q.number = def.Number
	return q, nil
}

func (q *Question) Number() int { return q.number }

func (q *Question) Prompt() string { return q.prompt }

func (q *Question) Type() QuestionType { return q.qtype }

func (q *Question) Options() []string { return append([]string(nil), q.options...) }

func (q *Question) AllowOtherOption() bool { return q.allowOther }

func (q *Question) Rules() []Rule { return append([]Rule(nil), q.rules...) }

func (q *Question) withNumber(n int) *Question {
	cp := *q
	cp.number = n
	return &cp
}

func (q *Question) Def() QuestionDef {
	def := QuestionDef{
		Number:           q.number,
		Prompt:           q.prompt,
		Type:             q.qtype,
		Options:          q.Options(),
		AllowOtherOption: q.allowOther,
	}
	if len(def.Options) == 0 {
		def.Options = nil
	}
	for _, r := range q.rules {
		def.Rules = append(def.Rules, ConfigOf(r))
	}
	return def
}

// ValidateAnswer runs every rule in order and returns all failures. An answer
// addressed to another question is a caller error, not a failure.
func (q *Question) ValidateAnswer(a Answer) ([]Failure, error) {
	if a.QuestionNumber != q.number {
		return nil, &QuestionMismatchError{QuestionNumber: q.number, AnswerNumber: a.QuestionNumber}
	}
	var failures []Failure
	for _, r := range q.rules {
		out := r.Evaluate(a.Value)
		if out.Valid {
			continue
		}
		failures = append(failures, Failure{QuestionNumber: q.number, Rule: r.Name(), Message: out.Message})
	}
	return failures, nil
}
