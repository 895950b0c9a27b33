package questionnaire

import (
	"errors"
	"testing"
)

func TestRequired(t *testing.T) {
	cases := []struct {
		name  string
		value Value
		valid bool
		msg   string
	}{
		{"null", NullValue(), false, "is required"},
		{"empty text", TextValue(""), false, "must not be empty"},
		{"empty choice", ChoiceValue(), false, "must select at least one option"},
		{"text", TextValue("x"), true, ""},
		{"zero", NumberValue(0), true, ""},
		{"choice", ChoiceValue("A"), true, ""},
	}
	r := Required()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := r.Evaluate(tc.value)
			if out.Valid != tc.valid || out.Message != tc.msg {
				t.Fatalf("Required().Evaluate(%v) = %+v, want valid=%v %q", tc.value, out, tc.valid, tc.msg)
			}
		})
	}
}

func TestNumericRulesCoerceDigitText(t *testing.T) {
	cases := []struct {
		name  string
		rule  Rule
		value Value
		valid bool
		msg   string
	}{
		{"positive number", Positive(), NumberValue(3), true, ""},
		{"positive zero", Positive(), NumberValue(0), false, "must be > 0"},
		{"negative", Negative(), NumberValue(-1), true, ""},
		{"positiveOrZero digits", PositiveOrZero(), TextValue("12"), true, ""},
		{"positiveOrZero below", PositiveOrZero(), NumberValue(-5), false, "must be ≥ 0"},
		{"negativeOrZero zero", NegativeOrZero(), NumberValue(0), true, ""},
		{"negativeOrZero above", NegativeOrZero(), NumberValue(1), false, "must be ≤ 0"},
		{"signed text is not numeric", PositiveOrZero(), TextValue("-5"), false, msgNotNumber},
		{"decimal text is not numeric", GreaterThan(1), TextValue("2.5"), false, msgNotNumber},
		{"choice is not numeric", Numeric(), ChoiceValue("1"), false, msgNotNumber},
		{"greaterThan", GreaterThan(10), NumberValue(10), false, "must be > 10"},
		{"lessThan", LessThan(10), TextValue("9"), true, ""},
		{"greaterThanOrEqual", GreaterThanOrEqual(18), NumberValue(18), true, ""},
		{"lessThanOrEqual", LessThanOrEqual(5), NumberValue(5.5), false, "must be ≤ 5"},
		{"inRange inside", InRange(1, 5), TextValue("3"), true, ""},
		{"inRange outside", InRange(1, 5), NumberValue(6), false, "must be between 1 and 5"},
		{"number rule", Numeric(), TextValue("0042"), true, ""},
		{"number rule rejects words", Numeric(), TextValue("forty"), false, msgNotNumber},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.rule.Evaluate(tc.value)
			if out.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v (message %q)", out.Valid, tc.valid, out.Message)
			}
			if !tc.valid && out.Message != tc.msg {
				t.Fatalf("message = %q, want %q", out.Message, tc.msg)
			}
		})
	}
}

func TestNonRequiredRulesSkipUnanswered(t *testing.T) {
	rules := []Rule{
		MinLength(3), MaxLength(1), Email(), Numeric(), NationalID(), Positive(), Negative(),
		GreaterThan(100), InRange(5, 6), InList("A"), MustPattern(`\d+`),
	}
	for _, r := range rules {
		for _, v := range []Value{NullValue(), TextValue(""), ChoiceValue()} {
			if out := r.Evaluate(v); !out.Valid {
				t.Fatalf("%s.Evaluate(%v) = %q, want valid", r.Name(), v.Kind(), out.Message)
			}
		}
	}
}

func TestLengthRulesCountRunes(t *testing.T) {
	if MaxLength(4).Evaluate(TextValue("ñandú")).Valid {
		t.Fatalf("maxLength(4) accepted a five rune word")
	}
	if !MinLength(5).Evaluate(TextValue("ñandú")).Valid {
		t.Fatalf("minLength(5) rejected a five rune word")
	}
	if !MaxLength(2).Evaluate(NumberValue(42)).Valid {
		t.Fatalf("maxLength(2) rejected 42")
	}
}

func TestEmail(t *testing.T) {
	for _, s := range []string{"ana@example.com", "first.last-x@mail.co.ec", "a@example.museum", "a@x.online"} {
		if !Email().Evaluate(TextValue(s)).Valid {
			t.Fatalf("email rejected %q", s)
		}
	}
	for _, s := range []string{"ana", "ana@", "@example.com", "ana@example.c"} {
		if Email().Evaluate(TextValue(s)).Valid {
			t.Fatalf("email accepted %q", s)
		}
	}
}

func TestNationalID(t *testing.T) {
	if !NationalID().Evaluate(TextValue("1710034065")).Valid {
		t.Fatalf("nationalId rejected 1710034065")
	}
	if NationalID().Evaluate(TextValue("1710034066")).Valid {
		t.Fatalf("nationalId accepted 1710034066")
	}
	for _, s := range []string{"171003406", "17100340655", "17100340a5"} {
		if ValidNationalID(s) {
			t.Fatalf("ValidNationalID(%q) = true", s)
		}
	}
	if !ValidNationalID("0000000000") {
		t.Fatalf("zero sum should give check digit 0")
	}
}

func TestInListIntersects(t *testing.T) {
	r := InList("A", "B")
	if !r.Evaluate(TextValue("B")).Valid {
		t.Fatalf("inList rejected a listed text value")
	}
	if !r.Evaluate(ChoiceValue("Z", "A")).Valid {
		t.Fatalf("inList rejected a choice that contains a listed value")
	}
	out := r.Evaluate(ChoiceValue("Y", "Z"))
	if out.Valid || out.Message != "must be one of [A, B]" {
		t.Fatalf("inList outcome = %+v", out)
	}
}

func TestPatternMatchesWholeValue(t *testing.T) {
	p := MustPattern(`[A-Z]{3}\d{4}`)
	if !p.Evaluate(TextValue("PBA1234")).Valid {
		t.Fatalf("pattern rejected a plate")
	}
	if p.Evaluate(TextValue("xPBA1234")).Valid {
		t.Fatalf("pattern accepted a partial match")
	}
	np, err := NotPattern(`.*@.*`)
	if err != nil {
		t.Fatalf("NotPattern: %v", err)
	}
	if np.Evaluate(TextValue("a@b")).Valid {
		t.Fatalf("notPattern accepted a forbidden value")
	}
	_, err = Pattern(`(`)
	var argErr *RuleArgError
	if !errors.As(err, &argErr) {
		t.Fatalf("Pattern(\"(\") error = %v, want RuleArgError", err)
	}
}
