package questionnaire

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

var sampleValues = []Value{
	NullValue(),
	TextValue(""),
	TextValue("hello"),
	TextValue("42"),
	TextValue("-3"),
	TextValue("ana@example.com"),
	TextValue("1710034065"),
	NumberValue(-7),
	NumberValue(0),
	NumberValue(3.5),
	NumberValue(100),
	ChoiceValue(),
	ChoiceValue("A"),
	ChoiceValue("B", "C"),
}

func builtinRules() []Rule {
	return []Rule{
		Required(), MinLength(2), MaxLength(5), Email(), Numeric(), NationalID(),
		Positive(), Negative(), PositiveOrZero(), NegativeOrZero(),
		GreaterThan(3), LessThan(50), GreaterThanOrEqual(0), LessThanOrEqual(100),
		InRange(1, 10), InList("A", "hello"), MustPattern(`[a-z]+`), mustNotPattern(`\d+`),
	}
}

func mustNotPattern(expr string) Rule {
	r, err := NotPattern(expr)
	if err != nil {
		panic(err)
	}
	return r
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := DefaultRegistry()
	for _, r := range builtinRules() {
		t.Run(r.Name(), func(t *testing.T) {
			cfg := ConfigOf(r)
			data, err := json.Marshal(cfg)
			if err != nil {
				t.Fatalf("marshal config: %v", err)
			}
			var stored RuleConfig
			if err := json.Unmarshal(data, &stored); err != nil {
				t.Fatalf("unmarshal config %s: %v", data, err)
			}
			rebuilt, err := reg.ConstructConfig(stored)
			if err != nil {
				t.Fatalf("Construct(%s): %v", data, err)
			}
			if !reflect.DeepEqual(ConfigOf(rebuilt), cfg) {
				t.Fatalf("config = %+v, want %+v", ConfigOf(rebuilt), cfg)
			}
			for _, v := range sampleValues {
				if got, want := rebuilt.Evaluate(v), r.Evaluate(v); got != want {
					t.Fatalf("Evaluate(%v %q) = %+v, want %+v", v.Kind(), v.String(), got, want)
				}
			}
		})
	}
}

func TestRegistryUnknownRule(t *testing.T) {
	_, err := DefaultRegistry().Construct("isPrime", nil)
	var unknown *UnknownRuleError
	if !errors.As(err, &unknown) || unknown.Name != "isPrime" {
		t.Fatalf("err = %v, want UnknownRuleError for isPrime", err)
	}
}

func TestRegistryRejectsBadArgs(t *testing.T) {
	reg := DefaultRegistry()
	cases := []struct {
		name string
		args []Arg
	}{
		{RuleRequired, []Arg{IntArg(1)}},
		{RuleMinLength, nil},
		{RuleMaxLength, []Arg{StrArg("ten")}},
		{RuleInRange, []Arg{IntArg(1)}},
		{RuleInList, nil},
		{RulePattern, []Arg{IntArg(3)}},
		{RuleNotPattern, []Arg{StrArg("[")}},
	}
	for _, tc := range cases {
		_, err := reg.Construct(tc.name, tc.args)
		var argErr *RuleArgError
		if !errors.As(err, &argErr) {
			t.Fatalf("Construct(%s, %v) err = %v, want RuleArgError", tc.name, tc.args, err)
		}
	}
}

func TestRegistryCustomRuleAndLegacyName(t *testing.T) {
	reg := NewRegistry()
	if len(reg.Names()) != 0 {
		t.Fatalf("new registry should be empty")
	}
	reg.Register("even", func(args []Arg) (Rule, error) {
		return &rule{name: "even", eval: func(v Value) Outcome {
			n, ok := v.numeric()
			if !ok || int(n)%2 != 0 {
				return Invalid("must be even")
			}
			return OK()
		}}, nil
	})
	r, err := reg.Construct("even", nil)
	if err != nil {
		t.Fatalf("Construct(even): %v", err)
	}
	if r.Evaluate(NumberValue(3)).Valid {
		t.Fatalf("even accepted 3")
	}

	legacy, err := DefaultRegistry().Construct("ci", nil)
	if err != nil {
		t.Fatalf("Construct(ci): %v", err)
	}
	if legacy.Name() != RuleNationalID {
		t.Fatalf("legacy rule name = %q, want %q", legacy.Name(), RuleNationalID)
	}
}
