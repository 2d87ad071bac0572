// Package engine evaluates a grievance's structured facts against a list of
// regulatory rules. Rule applicability is expressed in CEL over the variables
// `type` (the grievance type) and `params` (the grievance parameter map).
package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/entreaty/entreaty/internal/models"
	"github.com/google/cel-go/cel"
)

// Evaluator evaluates rule conditions. Safe for concurrent use; the program
// cache is the only shared state and it is guarded.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// New constructs an Evaluator with the CEL environment all rulesets share.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Check compiles an expression without evaluating it. Used by ruleset
// validation to reject malformed conditions at load time.
func (e *Evaluator) Check(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate tests every rule against the facts and returns one Firing per rule,
// fired or not, in ascending rule-id order. It is a pure function of its
// inputs: same facts and rules, same firings. A rule whose condition cannot
// be evaluated is recorded as not fired with the failure captured in its
// condition checks; it never aborts the evaluation of other rules.
func (e *Evaluator) Evaluate(facts models.GrievanceFacts, rules []models.Rule) []models.Firing {
	ordered := make([]models.Rule, len(rules))
	copy(ordered, rules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	params := facts.Parameters
	if params == nil {
		params = map[string]any{}
	}

	firings := make([]models.Firing, 0, len(ordered))
	for _, rule := range ordered {
		firings = append(firings, e.evaluateRule(rule, facts.Type, params))
	}
	return firings
}

func (e *Evaluator) evaluateRule(rule models.Rule, grievanceType string, params map[string]any) (firing models.Firing) {
	firing = models.Firing{
		RuleID:   rule.ID,
		Tier:     rule.Tier,
		Salience: rule.Salience,
	}
	if !rule.EffectiveDate.IsZero() {
		firing.EffectiveDate = rule.EffectiveDate.Format("2006-01-02")
	}

	// One broken predicate must not take the whole evaluation down.
	defer func() {
		if r := recover(); r != nil {
			firing.Fired = false
			firing.Outcome = nil
			firing.ConditionsChecked = append(firing.ConditionsChecked, models.ConditionCheck{
				Expression: "<rule evaluation>",
				Satisfied:  false,
				Error:      fmt.Sprintf("predicate panicked: %v", r),
			})
		}
	}()

	allSatisfied := true

	if rule.AppliesTo != "" {
		check := models.ConditionCheck{
			Expression:    fmt.Sprintf("type == %q", rule.AppliesTo),
			Satisfied:     grievanceType == rule.AppliesTo,
			ObservedValue: grievanceType,
		}
		allSatisfied = allSatisfied && check.Satisfied
		firing.ConditionsChecked = append(firing.ConditionsChecked, check)
	}

	activation := map[string]any{
		"type":   grievanceType,
		"params": params,
	}

	for _, expr := range rule.Conditions {
		check := e.evaluateCondition(expr, activation, params)
		allSatisfied = allSatisfied && check.Satisfied
		firing.ConditionsChecked = append(firing.ConditionsChecked, check)
	}

	firing.Fired = allSatisfied
	if firing.Fired {
		outcome := rule.Then
		firing.Outcome = &outcome
	}
	return firing
}

func (e *Evaluator) evaluateCondition(expr string, activation map[string]any, params map[string]any) models.ConditionCheck {
	check := models.ConditionCheck{
		Expression:    expr,
		ObservedValue: observedParam(expr, params),
	}

	prg, err := e.program(expr)
	if err != nil {
		check.Error = fmt.Sprintf("CEL compile error: %v", err)
		return check
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		// A missing parameter is "condition not satisfied", not a failure.
		if !isMissingAttribute(err) {
			check.Error = fmt.Sprintf("CEL evaluation error: %v", err)
		}
		return check
	}

	satisfied, ok := out.Value().(bool)
	if !ok {
		check.Error = fmt.Sprintf("condition must evaluate to bool, got %T", out.Value())
		return check
	}

	check.Satisfied = satisfied
	return check
}

// program compiles and caches the CEL program for an expression.
func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// paramRef matches the first `params.name` reference in a condition so the
// trace can record the value the condition looked at.
var paramRef = regexp.MustCompile(`params\.([A-Za-z_][A-Za-z0-9_]*)`)

func observedParam(expr string, params map[string]any) any {
	m := paramRef.FindStringSubmatch(expr)
	if m == nil {
		return nil
	}
	return params[m[1]]
}

func isMissingAttribute(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such key") || strings.Contains(msg, "no such attribute")
}
