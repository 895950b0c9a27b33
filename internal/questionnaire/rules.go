package questionnaire

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	RuleRequired           = "required"
	RuleMinLength          = "minLength"
	RuleMaxLength          = "maxLength"
	RuleEmail              = "email"
	RuleNumber             = "number"
	RuleNationalID         = "nationalId"
	RulePositive           = "positive"
	RuleNegative           = "negative"
	RulePositiveOrZero     = "positiveOrZero"
	RuleNegativeOrZero     = "negativeOrZero"
	RuleGreaterThan        = "greaterThan"
	RuleLessThan           = "lessThan"
	RuleGreaterThanOrEqual = "greaterThanOrEqual"
	RuleLessThanOrEqual    = "lessThanOrEqual"
	RuleInRange            = "inRange"
	RuleInList             = "inList"
	RulePattern            = "pattern"
	RuleNotPattern         = "notPattern"
)

const msgNotNumber = "must be a number"

var emailPattern = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,}$`)

// Required fails on null, empty text and an empty selection.
func Required() Rule {
	return &rule{name: RuleRequired, eval: func(v Value) Outcome {
		switch {
		case v.IsNull():
			return Invalid("is required")
		case v.Kind() == KindChoice && v.Empty():
			return Invalid("must select at least one option")
		case v.Empty():
			return Invalid("must not be empty")
		}
		return OK()
	}}
}

func MinLength(n int) Rule {
	return &rule{name: RuleMinLength, args: []Arg{IntArg(n)}, eval: optional(func(v Value) Outcome {
		if utf8.RuneCountInString(v.String()) < n {
			return Invalid(fmt.Sprintf("must be at least %d characters", n))
		}
		return OK()
	})}
}

func MaxLength(n int) Rule {
	return &rule{name: RuleMaxLength, args: []Arg{IntArg(n)}, eval: optional(func(v Value) Outcome {
		if utf8.RuneCountInString(v.String()) > n {
			return Invalid(fmt.Sprintf("must be at most %d characters", n))
		}
		return OK()
	})}
}

func Email() Rule {
	return &rule{name: RuleEmail, eval: optional(func(v Value) Outcome {
		if !emailPattern.MatchString(v.String()) {
			return Invalid("must be a valid email address")
		}
		return OK()
	})}
}

// Numeric accepts numbers and digit-only text.
func Numeric() Rule {
	return &rule{name: RuleNumber, eval: optional(func(v Value) Outcome {
		if _, ok := v.numeric(); !ok {
			return Invalid(msgNotNumber)
		}
		return OK()
	})}
}

func NationalID() Rule {
	return &rule{name: RuleNationalID, eval: optional(func(v Value) Outcome {
		if !ValidNationalID(v.String()) {
			return Invalid("must be a valid national ID")
		}
		return OK()
	})}
}

func compare(name string, args []Arg, msg string, accept func(float64) bool) Rule {
	return &rule{name: name, args: args, eval: optional(func(v Value) Outcome {
		n, ok := v.numeric()
		if !ok {
			return Invalid(msgNotNumber)
		}
		if !accept(n) {
			return Invalid(msg)
		}
		return OK()
	})}
}

func Positive() Rule {
	return compare(RulePositive, nil, "must be > 0", func(n float64) bool { return n > 0 })
}

func Negative() Rule {
	return compare(RuleNegative, nil, "must be < 0", func(n float64) bool { return n < 0 })
}

func PositiveOrZero() Rule {
	return compare(RulePositiveOrZero, nil, "must be ≥ 0", func(n float64) bool { return n >= 0 })
}

func NegativeOrZero() Rule {
	return compare(RuleNegativeOrZero, nil, "must be ≤ 0", func(n float64) bool { return n <= 0 })
}

func GreaterThan(bound int) Rule {
	return compare(RuleGreaterThan, []Arg{IntArg(bound)}, fmt.Sprintf("must be > %d", bound),
		func(n float64) bool { return n > float64(bound) })
}

func LessThan(bound int) Rule {
	return compare(RuleLessThan, []Arg{IntArg(bound)}, fmt.Sprintf("must be < %d", bound),
		func(n float64) bool { return n < float64(bound) })
}

func GreaterThanOrEqual(bound int) Rule {
	return compare(RuleGreaterThanOrEqual, []Arg{IntArg(bound)}, fmt.Sprintf("must be ≥ %d", bound),
		func(n float64) bool { return n >= float64(bound) })
}

func LessThanOrEqual(bound int) Rule {
	return compare(RuleLessThanOrEqual, []Arg{IntArg(bound)}, fmt.Sprintf("must be ≤ %d", bound),
		func(n float64) bool { return n <= float64(bound) })
}

func InRange(lo, hi int) Rule {
	return compare(RuleInRange, []Arg{IntArg(lo), IntArg(hi)}, fmt.Sprintf("must be between %d and %d", lo, hi),
		func(n float64) bool { return n >= float64(lo) && n <= float64(hi) })
}

// InList passes when any of the answered items is one of values.
func InList(values ...string) Rule {
	args := make([]Arg, len(values))
	allowed := make(map[string]struct{}, len(values))
	for i, s := range values {
		args[i] = StrArg(s)
		allowed[s] = struct{}{}
	}
	msg := fmt.Sprintf("must be one of [%s]", strings.Join(values, ", "))
	return &rule{name: RuleInList, args: args, eval: optional(func(v Value) Outcome {
		for _, item := range v.items() {
			if _, ok := allowed[item]; ok {
				return OK()
			}
		}
		return Invalid(msg)
	})}
}

// Pattern requires the whole text view of the value to match expr.
func Pattern(expr string) (Rule, error) {
	re, err := compileWhole(RulePattern, expr)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("must match pattern %s", expr)
	return &rule{name: RulePattern, args: []Arg{StrArg(expr)}, eval: optional(func(v Value) Outcome {
		if !re.MatchString(v.String()) {
			return Invalid(msg)
		}
		return OK()
	})}, nil
}

func NotPattern(expr string) (Rule, error) {
	re, err := compileWhole(RuleNotPattern, expr)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("must not match pattern %s", expr)
	return &rule{name: RuleNotPattern, args: []Arg{StrArg(expr)}, eval: optional(func(v Value) Outcome {
		if re.MatchString(v.String()) {
			return Invalid(msg)
		}
		return OK()
	})}, nil
}

func MustPattern(expr string) Rule {
	r, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return r
}

func compileWhole(name, expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, &RuleArgError{Rule: name, Reason: err.Error()}
	}
	return re, nil
}
