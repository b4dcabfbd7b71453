package harness

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/logx"
)

// Result is the outcome of one scenario
type Result struct {
	Scenario string         `json:"scenario"`
	Passed   bool           `json:"passed"`
	Count    int            `json:"count"`
	Duration time.Duration  `json:"duration"`
	Code     string         `json:"code,omitempty"`
	Error    string         `json:"error,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// Report collects the results of one run
type Report struct {
	RunID     string    `json:"runId"`
	Backend   string    `json:"backend"`
	StartedAt time.Time `json:"startedAt"`
	Results   []Result  `json:"results"`
}

// Passed reports whether every scenario passed
func (r Report) Passed() bool {
	return lo.EveryBy(r.Results, func(res Result) bool { return res.Passed })
}

// Failed returns the failing results
func (r Report) Failed() []Result {
	return lo.Filter(r.Results, func(res Result, _ int) bool { return !res.Passed })
}

// Err returns ErrRunFailed naming the failed scenarios, or nil
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return ErrorRegistry.New(ErrRunFailed).
		WithDetail("runId", r.RunID).
		WithDetail("failed", lo.Map(failed, func(res Result, _ int) string { return res.Scenario + ": " + res.Error }))
}

type runSettings struct {
	timeout time.Duration
	only    []string
}

type RunOption func(*runSettings)

// WithTimeout bounds each scenario
func WithTimeout(d time.Duration) RunOption {
	return func(s *runSettings) {
		s.timeout = d
	}
}

// WithScenarios restricts the run to the named scenarios, in that order
func WithScenarios(names ...string) RunOption {
	return func(s *runSettings) {
		s.only = append(s.only, names...)
	}
}

// Run executes scenarios against env. A scenario error is recorded in the
// report; only an unknown scenario name fails the run itself.
func Run(ctx context.Context, env *Env, opts ...RunOption) (Report, error) {
	settings := &runSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	scenarios := Scenarios()
	if len(settings.only) > 0 {
		scenarios = make([]Scenario, 0, len(settings.only))
		for _, name := range settings.only {
			s, err := Lookup(name)
			if err != nil {
				return Report{}, err
			}
			scenarios = append(scenarios, s)
		}
	}

	report := Report{
		RunID:     uuid.NewString(),
		Backend:   env.Backend,
		StartedAt: time.Now().UTC(),
		Results:   make([]Result, 0, len(scenarios)),
	}

	for _, s := range scenarios {
		report.Results = append(report.Results, runOne(ctx, env, s, settings.timeout))
	}

	logx.Info("harness: run %s finished, %d/%d passed",
		report.RunID, len(report.Results)-len(report.Failed()), len(report.Results))
	return report, nil
}

func runOne(ctx context.Context, env *Env, s Scenario, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	count, err := s.Run(ctx, env)
	res := Result{
		Scenario: s.Name,
		Passed:   err == nil,
		Count:    count,
		Duration: time.Since(started),
	}
	if err == nil {
		logx.Debug("harness: %s passed with %d documents", s.Name, count)
		return res
	}

	res.Error = err.Error()
	var xerr *errx.Error
	if errors.As(err, &xerr) {
		res.Code = string(xerr.Code)
		res.Details = xerr.Details
	}
	logx.Warn("harness: %s failed: %v", s.Name, err)
	return res
}
