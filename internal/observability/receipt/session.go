package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/entreaty/entreaty/internal/observability"
)

// MaxErrorLength is the maximum length for error strings in receipts.
const MaxErrorLength = 2048

// Session tracks command execution
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

// Start session
func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithRuleset pins the ruleset the command ran against. File rulesets get a
// content hash so the receipt proves which rule text produced the decision.
func WithRuleset(source, name string) Option {
	return func(r *Receipt) {
		if name == "" {
			return
		}
		ref := &RulesetRef{Source: source, Name: name}
		if source == "file" {
			if hash, err := computeSHA256(name); err == nil {
				ref.SHA256 = hash
			}
		}
		r.Ruleset = ref
	}
}

// WithDecision option
func WithDecision(d DecisionSummary) Option {
	return func(r *Receipt) {
		r.Decision = &d
	}
}

// WithConflicts option
func WithConflicts(c ConflictSummary) Option {
	return func(r *Receipt) {
		if c.Total == 0 {
			return
		}
		r.Conflicts = &c
	}
}

// WithFairness option
func WithFairness(f FairnessSummary) Option {
	return func(r *Receipt) {
		r.Fairness = &f
	}
}

// WithDrift option
func WithDrift(critical, moderate, info int, summary string) Option {
	return func(r *Receipt) {
		r.Drift = &DriftSummary{
			Critical: critical,
			Moderate: moderate,
			Info:     info,
			Summary:  summary,
		}
	}
}

// Finish and write receipt
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		// No writer configured, receipts disabled
		return nil
	}

	// Redact student identifiers and credentials before storing
	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.Format(time.RFC3339Nano),
		TsEnd:         time.Now().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
	}

	// Set result
	if err != nil {
		r.Result = Result{
			Status: "fail",
			Error:  truncateError(err.Error()),
		}
	} else {
		r.Result = Result{
			Status: "success",
		}
	}

	// Apply options
	for _, opt := range opts {
		opt(&r)
	}

	return w.Write(r)
}

// computeSHA256 helper
func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// truncateError helper
func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
