package questionnaire

// Outcome is the result of evaluating one rule against one value.
type Outcome struct {
	Valid   bool
	Message string
}

func OK() Outcome { return Outcome{Valid: true} }

func Invalid(msg string) Outcome { return Outcome{Message: msg} }

// Rule is a named predicate over a single answer value. Name and Args are
// enough to rebuild an identical rule through a Registry.
type Rule interface {
	Name() string
	Args() []Arg
	Evaluate(v Value) Outcome
}

// RuleConfig is the persisted form of a Rule.
type RuleConfig struct {
	Name string `json:"name" yaml:"name"`
	Args []Arg  `json:"args,omitempty" yaml:"args,omitempty"`
}

func ConfigOf(r Rule) RuleConfig {
	return RuleConfig{Name: r.Name(), Args: r.Args()}
}

type rule struct {
	name string
	args []Arg
	eval func(Value) Outcome
}

func (r *rule) Name() string { return r.name }

func (r *rule) Args() []Arg {
	if len(r.args) == 0 {
		return nil
	}
	out := make([]Arg, len(r.args))
	copy(out, r.args)
	return out
}

func (r *rule) Evaluate(v Value) Outcome { return r.eval(v) }

// optional wraps a rule body so an unanswered value passes; presence is the
// job of the required rule alone.
func optional(eval func(Value) Outcome) func(Value) Outcome {
	return func(v Value) Outcome {
		if v.Empty() {
			return OK()
		}
		return eval(v)
	}
}
