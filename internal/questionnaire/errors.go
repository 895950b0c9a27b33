package questionnaire

import (
	"fmt"
	"strings"
)

// DefinitionError rejects a question or questionnaire shape before anything is stored.
type DefinitionError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	if e.Field == "" {
		return "invalid definition: " + e.Reason
	}
	return fmt.Sprintf("invalid definition: %s: %s", e.Field, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

func definitionErr(field, format string, args ...any) error {
	return &DefinitionError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RuleArgError is returned by a rule factory given arguments it cannot use.
type RuleArgError struct {
	Rule   string
	Reason string
}

func (e *RuleArgError) Error() string { return fmt.Sprintf("rule %s: %s", e.Rule, e.Reason) }

// UnknownRuleError means a rule name has no registered factory.
type UnknownRuleError struct {
	Name string
}

func (e *UnknownRuleError) Error() string { return fmt.Sprintf("unknown validation rule %q", e.Name) }

// QuestionMismatchError is a caller error: an answer was checked against the wrong question.
type QuestionMismatchError struct {
	QuestionNumber int
	AnswerNumber   int
}

func (e *QuestionMismatchError) Error() string {
	return fmt.Sprintf("answer for question %d checked against question %d", e.AnswerNumber, e.QuestionNumber)
}

type AnswerCountMismatchError struct {
	Expected int
	Got      int
}

func (e *AnswerCountMismatchError) Error() string {
	return fmt.Sprintf("expected %d answers, got %d", e.Expected, e.Got)
}

type AnswerNotFoundError struct {
	QuestionNumber int
}

func (e *AnswerNotFoundError) Error() string {
	return fmt.Sprintf("no answer for question %d", e.QuestionNumber)
}

// Failure is one rule violation on one question.
type Failure struct {
	QuestionNumber int    `json:"question_number"`
	Rule           string `json:"rule"`
	Message        string `json:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("question %d: %s", f.QuestionNumber, f.Message)
}

// AggregatedValidationError carries every failure of one submission attempt.
type AggregatedValidationError struct {
	Failures []Failure
}

func (e *AggregatedValidationError) Error() string {
	switch len(e.Failures) {
	case 0:
		return "answers failed validation"
	case 1:
		return e.Failures[0].String()
	default:
		return fmt.Sprintf("%s (and %d more)", e.Failures[0].String(), len(e.Failures)-1)
	}
}

func (e *AggregatedValidationError) Messages() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.String())
	}
	return out
}

// Detail joins every failure on its own line.
func (e *AggregatedValidationError) Detail() string {
	return strings.Join(e.Messages(), "\n")
}

// ParseError reports text that does not name a known enum value.
type ParseError struct {
	Type  string
	Value string
}

func (e *ParseError) Error() string { return fmt.Sprintf("invalid %s %q", e.Type, e.Value) }
