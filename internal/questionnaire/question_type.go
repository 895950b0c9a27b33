package questionnaire

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// QuestionType is the kind of answer a question expects.
type QuestionType int

const (
	TypeUnset QuestionType = iota
	TypeText
	TypeNumber
	TypeTel
	TypeRadio
	TypeCheckbox
	TypeSelect
	TypeLocation
	TypeCustom
)

var questionTypeNames = [...]string{
	TypeUnset:    "",
	TypeText:     "TEXT",
	TypeNumber:   "NUMBER",
	TypeTel:      "TEL",
	TypeRadio:    "RADIO",
	TypeCheckbox: "CHECKBOX",
	TypeSelect:   "SELECT",
	TypeLocation: "LOCATION",
	TypeCustom:   "CUSTOM",
}

func ParseQuestionType(s string) (QuestionType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return TypeUnset, &ParseError{Type: "QuestionType", Value: s}
	}
	for i, n := range questionTypeNames {
		if n == name {
			return QuestionType(i), nil
		}
	}
	return TypeUnset, &ParseError{Type: "QuestionType", Value: s}
}

func (t QuestionType) String() string {
	if t.Valid() {
		return questionTypeNames[t]
	}
	return "unknown"
}

func (t QuestionType) Valid() bool { return t > TypeUnset && t <= TypeCustom }

// IsChoice reports whether the type takes a fixed option set.
func (t QuestionType) IsChoice() bool {
	return t == TypeRadio || t == TypeCheckbox || t == TypeSelect
}

func (t QuestionType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal QuestionType: invalid value %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *QuestionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal QuestionType: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*t = TypeUnset
		return nil
	}
	parsed, err := ParseQuestionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t QuestionType) MarshalYAML() (any, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal QuestionType: invalid value %d", int(t))
	}
	return t.String(), nil
}

func (t *QuestionType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("unmarshal QuestionType: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*t = TypeUnset
		return nil
	}
	parsed, err := ParseQuestionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t QuestionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal QuestionType: invalid value %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *QuestionType) UnmarshalText(text []byte) error {
	parsed, err := ParseQuestionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
