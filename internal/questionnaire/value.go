package questionnaire

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindChoice
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindChoice:
		return "choice"
	default:
		return "unknown"
	}
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// Value is a respondent-supplied answer value: null, free text, a number, or
// the ordered list of options picked on a choice question.
type Value struct {
	kind    Kind
	text    string
	number  float64
	choices []string
}

func NullValue() Value { return Value{} }

func TextValue(s string) Value { return Value{kind: KindText, text: s} }

func NumberValue(f float64) Value { return Value{kind: KindNumber, number: f} }

func ChoiceValue(items ...string) Value {
	out := make([]string, len(items))
	copy(out, items)
	return Value{kind: KindChoice, choices: out}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Text() (string, bool) { return v.text, v.kind == KindText }

func (v Value) Number() (float64, bool) { return v.number, v.kind == KindNumber }

func (v Value) Choices() []string {
	if v.kind != KindChoice {
		return nil
	}
	out := make([]string, len(v.choices))
	copy(out, v.choices)
	return out
}

// String renders the value the way text rules see it.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindChoice:
		return strings.Join(v.choices, ", ")
	default:
		return ""
	}
}

// Empty reports whether the value counts as not answered.
func (v Value) Empty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.text == ""
	case KindChoice:
		return len(v.choices) == 0
	default:
		return false
	}
}

// numeric is a number, or text made only of ASCII digits.
func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.number, true
	case KindText:
		if !digitsOnly.MatchString(v.text) {
			return 0, false
		}
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) items() []string {
	if v.kind == KindChoice {
		return v.choices
	}
	if v.kind == KindNull {
		return nil
	}
	return []string{v.String()}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.number == o.number
	case KindChoice:
		if len(v.choices) != len(o.choices) {
			return false
		}
		for i := range v.choices {
			if v.choices[i] != o.choices[i] {
				return false
			}
		}
	}
	return true
}

// Any returns the plain Go form: nil, string, float64 or []string.
func (v Value) Any() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.number
	case KindChoice:
		return v.Choices()
	default:
		return nil
	}
}

// FromAny converts a decoded document value into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return TextValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int32:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("answer value %q: %w", t.String(), err)
		}
		return NumberValue(f), nil
	case []string:
		return ChoiceValue(t...), nil
	case []any:
		items := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("answer value: choice item %d is %T, want string", i, e)
			}
			items = append(items, s)
		}
		return ChoiceValue(items...), nil
	default:
		return Value{}, fmt.Errorf("answer value: unsupported type %T", x)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.number) || math.IsInf(v.number, 0)) {
		return nil, fmt.Errorf("answer value: %v is not representable", v.number)
	}
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalYAML() (any, error) { return v.Any(), nil }

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			*v = NullValue()
		case "!!int", "!!float":
			f, err := strconv.ParseFloat(node.Value, 64)
			if err != nil {
				return fmt.Errorf("answer value %q: %w", node.Value, err)
			}
			*v = NumberValue(f)
		case "!!str":
			*v = TextValue(node.Value)
		default:
			return fmt.Errorf("answer value: unsupported yaml tag %s", node.Tag)
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return fmt.Errorf("answer value: %w", err)
		}
		*v = ChoiceValue(items...)
		return nil
	default:
		return fmt.Errorf("answer value: unsupported yaml node at line %d", node.Line)
	}
}
