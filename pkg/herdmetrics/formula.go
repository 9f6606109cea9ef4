package herdmetrics

import (
	"log/slog"
	"regexp"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// paramPattern finds PARAM calls with a single quoted literal argument.
var paramPattern = regexp.MustCompile(`(?i)PARAM\s*\(\s*["']([^"']+)["']\s*\)`)

// ValidationResult reports whether a formula parses.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Engine evaluates formulas. It holds no per-evaluation state and is safe
// for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report failed evaluations.
// Without it the engine logs through slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates a new Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Evaluate evaluates formula against env using the default engine.
// It never fails: any parse error yields null.
func Evaluate(formula string, env Context) value.Value {
	return defaultEngine.Evaluate(formula, env)
}

// Validate checks that formula parses, using the default engine.
func Validate(formula string) ValidationResult {
	return defaultEngine.Validate(formula)
}

// ExtractFields returns the field names referenced by formula, in source
// order with duplicates kept.
func ExtractFields(formula string) []string {
	fields := make([]string, 0)
	for _, tok := range Tokenize(formula) {
		if tok.Kind == TokenField {
			fields = append(fields, tok.Value.Str())
		}
	}
	return fields
}

// ExtractParams returns the literal names passed to PARAM, in source order
// with duplicates kept. It scans the text directly rather than parsing, so
// it also works on formulas that do not parse.
func ExtractParams(formula string) []string {
	params := make([]string, 0)
	for _, m := range paramPattern.FindAllStringSubmatch(formula, -1) {
		params = append(params, m[1])
	}
	return params
}

// Evaluate evaluates formula against env. Parse errors are logged and
// yield null.
func (e *Engine) Evaluate(formula string, env Context) value.Value {
	v, err := e.EvaluateE(formula, env)
	if err != nil {
		e.log().Warn("formula evaluation failed",
			slog.String("formula", formula),
			slog.String("error", err.Error()),
		)
		return value.Null()
	}
	return v
}

// EvaluateE evaluates formula against env and returns the parse error, if
// any, instead of logging it.
func (e *Engine) EvaluateE(formula string, env Context) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = value.Null(), &PanicError{Value: r}
		}
	}()

	// Pin TODAY for the whole evaluation.
	if env.ReferenceDate.IsZero() {
		env.ReferenceDate = env.Today()
	}

	return newParser(Tokenize(formula), &env).parse()
}

// Validate parses and evaluates formula against an empty context and
// reports the first error.
func (e *Engine) Validate(formula string) ValidationResult {
	if _, err := e.EvaluateE(formula, Context{}); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	return ValidationResult{Valid: true}
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
