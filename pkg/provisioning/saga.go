package provisioning

import (
	"context"
	"fmt"
	"strings"
)

// Step is one unit of a saga. Compensate undoes a completed Action and may
// be nil when the step leaves nothing behind.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs its steps in order. When a step fails, the compensations of the
// steps that already completed run in reverse order. The failing step is
// never compensated.
type Saga struct {
	name  string
	steps []Step
}

func NewSaga(name string) *Saga {
	return &Saga{name: name}
}

// Step appends a step and returns the saga for chaining.
func (s *Saga) Step(name string, action, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Action: action, Compensate: compensate})
	return s
}

func (s *Saga) Name() string { return s.name }

// StepError ties an error to the step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e StepError) Error() string { return e.Step + ": " + e.Err.Error() }

// Failure is returned by Run when a step fails.
type Failure struct {
	Saga string

	// Step is the step whose action failed and Err what it returned.
	Step string
	Err  error

	// Compensated lists the steps whose compensation succeeded, in the
	// order they ran.
	Compensated []string

	// CompensationErrors lists the compensations that failed. A non-empty
	// list means the saga left side effects behind.
	CompensationErrors []StepError
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("saga %s: step %s failed: %v", f.Saga, f.Step, f.Err)
	if len(f.CompensationErrors) > 0 {
		parts := make([]string, len(f.CompensationErrors))
		for i, ce := range f.CompensationErrors {
			parts[i] = ce.Error()
		}
		msg += "; compensation failed: " + strings.Join(parts, "; ")
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Clean reports whether every compensation succeeded.
func (f *Failure) Clean() bool { return len(f.CompensationErrors) == 0 }

// Run executes the saga. It returns nil or a *Failure. Compensation runs
// even if ctx is done, so callers pass a context that outlives the request.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			return s.unwind(ctx, i, err)
		}
	}
	return nil
}

func (s *Saga) unwind(ctx context.Context, failed int, cause error) *Failure {
	f := &Failure{Saga: s.name, Step: s.steps[failed].Name, Err: cause}
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			f.CompensationErrors = append(f.CompensationErrors, StepError{Step: step.Name, Err: err})
			continue
		}
		f.Compensated = append(f.Compensated, step.Name)
	}
	return f
}
