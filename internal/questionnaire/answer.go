package questionnaire

import "time"

// Answer ties a value to a question by its number.
type Answer struct {
	QuestionNumber int   `json:"question_number" yaml:"question_number"`
	Value          Value `json:"value" yaml:"value"`
}

func FindAnswer(answers []Answer, questionNumber int) (Answer, error) {
	for _, a := range answers {
		if a.QuestionNumber == questionNumber {
			return a, nil
		}
	}
	return Answer{}, &AnswerNotFoundError{QuestionNumber: questionNumber}
}

// AnswerSet is one respondent's accepted submission. It is never modified.
type AnswerSet struct {
	ID              string    `json:"id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	IssuerID        string    `json:"issuer_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Answers         []Answer  `json:"answers"`
}

func (s *AnswerSet) Clone() *AnswerSet {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Answers = append([]Answer(nil), s.Answers...)
	return &cp
}
