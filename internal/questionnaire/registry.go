package questionnaire

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a rule from its persisted arguments.
type Factory func(args []Arg) (Rule, error)

// Registry maps rule names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry returns a registry holding every builtin rule.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RuleRequired, noArgs(RuleRequired, Required))
	r.Register(RuleEmail, noArgs(RuleEmail, Email))
	r.Register(RuleNumber, noArgs(RuleNumber, Numeric))
	r.Register(RuleNationalID, noArgs(RuleNationalID, NationalID))
	// legacy name of nationalId in stored definitions
	r.Register("ci", noArgs("ci", NationalID))
	r.Register(RulePositive, noArgs(RulePositive, Positive))
	r.Register(RuleNegative, noArgs(RuleNegative, Negative))
	r.Register(RulePositiveOrZero, noArgs(RulePositiveOrZero, PositiveOrZero))
	r.Register(RuleNegativeOrZero, noArgs(RuleNegativeOrZero, NegativeOrZero))
	r.Register(RuleMinLength, oneInt(RuleMinLength, MinLength))
	r.Register(RuleMaxLength, oneInt(RuleMaxLength, MaxLength))
	r.Register(RuleGreaterThan, oneInt(RuleGreaterThan, GreaterThan))
	r.Register(RuleLessThan, oneInt(RuleLessThan, LessThan))
	r.Register(RuleGreaterThanOrEqual, oneInt(RuleGreaterThanOrEqual, GreaterThanOrEqual))
	r.Register(RuleLessThanOrEqual, oneInt(RuleLessThanOrEqual, LessThanOrEqual))
	r.Register(RuleInRange, func(args []Arg) (Rule, error) {
		if len(args) != 2 {
			return nil, arityErr(RuleInRange, 2, len(args))
		}
		lo, ok := args[0].Int()
		if !ok {
			return nil, &RuleArgError{Rule: RuleInRange, Reason: "min must be an integer"}
		}
		hi, ok := args[1].Int()
		if !ok {
			return nil, &RuleArgError{Rule: RuleInRange, Reason: "max must be an integer"}
		}
		return InRange(lo, hi), nil
	})
	r.Register(RuleInList, func(args []Arg) (Rule, error) {
		if len(args) == 0 {
			return nil, &RuleArgError{Rule: RuleInList, Reason: "needs at least one value"}
		}
		values := make([]string, len(args))
		for i, a := range args {
			values[i] = a.String()
		}
		return InList(values...), nil
	})
	r.Register(RulePattern, oneStr(RulePattern, Pattern))
	r.Register(RuleNotPattern, oneStr(RuleNotPattern, NotPattern))
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Construct rebuilds the rule stored as (name, args).
func (r *Registry) Construct(name string, args []Arg) (Rule, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownRuleError{Name: name}
	}
	return f(args)
}

func (r *Registry) ConstructConfig(c RuleConfig) (Rule, error) {
	return r.Construct(c.Name, c.Args)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func arityErr(name string, want, got int) error {
	return &RuleArgError{Rule: name, Reason: fmt.Sprintf("takes %d args, got %d", want, got)}
}

func noArgs(name string, build func() Rule) Factory {
	return func(args []Arg) (Rule, error) {
		if len(args) != 0 {
			return nil, arityErr(name, 0, len(args))
		}
		return build(), nil
	}
}

func oneInt(name string, build func(int) Rule) Factory {
	return func(args []Arg) (Rule, error) {
		if len(args) != 1 {
			return nil, arityErr(name, 1, len(args))
		}
		n, ok := args[0].Int()
		if !ok {
			return nil, &RuleArgError{Rule: name, Reason: fmt.Sprintf("arg %q must be an integer", args[0].String())}
		}
		return build(n), nil
	}
}

func oneStr(name string, build func(string) (Rule, error)) Factory {
	return func(args []Arg) (Rule, error) {
		if len(args) != 1 {
			return nil, arityErr(name, 1, len(args))
		}
		s, ok := args[0].Str()
		if !ok {
			return nil, &RuleArgError{Rule: name, Reason: "arg must be a string"}
		}
		return build(s)
	}
}
