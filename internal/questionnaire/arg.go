package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Arg is one construction argument of a rule: an integer or a string.
type Arg struct {
	isInt bool
	i     int
	s     string
}

func IntArg(n int) Arg { return Arg{isInt: true, i: n} }

func StrArg(s string) Arg { return Arg{s: s} }

func (a Arg) Int() (int, bool) { return a.i, a.isInt }

func (a Arg) Str() (string, bool) { return a.s, !a.isInt }

func (a Arg) String() string {
	if a.isInt {
		return strconv.Itoa(a.i)
	}
	return a.s
}

func (a Arg) Any() any {
	if a.isInt {
		return a.i
	}
	return a.s
}

// ArgFromAny converts a decoded document value into an Arg.
func ArgFromAny(x any) (Arg, error) {
	switch t := x.(type) {
	case string:
		return StrArg(t), nil
	case int:
		return IntArg(t), nil
	case int32:
		return IntArg(int(t)), nil
	case int64:
		return IntArg(int(t)), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return Arg{}, fmt.Errorf("rule arg %v is not an integer", t)
		}
		return IntArg(int(t)), nil
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return Arg{}, fmt.Errorf("rule arg %q is not an integer", t.String())
		}
		return IntArg(n), nil
	default:
		return Arg{}, fmt.Errorf("rule arg: unsupported type %T", x)
	}
}

func (a Arg) MarshalJSON() ([]byte, error) { return json.Marshal(a.Any()) }

func (a *Arg) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ArgFromAny(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Arg) MarshalYAML() (any, error) { return a.Any(), nil }

func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("rule arg: expected a scalar at line %d", node.Line)
	}
	switch node.Tag {
	case "!!int":
		var n int
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("rule arg %q: %w", node.Value, err)
		}
		*a = IntArg(n)
	case "!!str":
		*a = StrArg(node.Value)
	default:
		return fmt.Errorf("rule arg: unsupported yaml tag %s", node.Tag)
	}
	return nil
}
