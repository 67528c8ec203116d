// Package saga は永続化の手順を順番に実行し、途中で失敗したら
// 完了済みの手順を逆順で取り消す。
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Step は名前付きの処理と、その取り消し処理。
// 取り消すものが無ければCompensateはnil。
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// 各手順の前後で呼ぶ（どれもnil可）
type Hooks struct {
	StepStarted   func(ctx context.Context, step string)
	StepSucceeded func(ctx context.Context, step string, took time.Duration)
	StepFailed    func(ctx context.Context, step string, took time.Duration, err error)
	Compensated   func(ctx context.Context, step string, err error)
}

type Option func(*Saga)

// 処理1回・補償1回ごとの上限
func WithStepTimeout(d time.Duration) Option {
	return func(s *Saga) { s.timeout = d }
}

func WithHooks(h Hooks) Option {
	return func(s *Saga) { s.hooks = h }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Saga) { s.tracer = t }
}

type Saga struct {
	name    string
	steps   []Step
	timeout time.Duration
	hooks   Hooks
	tracer  trace.Tracer
}

func New(name string, opts ...Option) *Saga {
	s := &Saga{
		name:   name,
		tracer: otel.Tracer("storefront/saga"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run は手順を順番に実行する（前の手順が戻るまで次は始めない）。
// 失敗したら完了済みを新しい順に補償して *Failure を返す。
func (s *Saga) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, s.name)
	defer span.End()

	done := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		timedOut, err := s.runStep(ctx, step)
		if err == nil {
			done = append(done, step)
			continue
		}

		f := &Failure{Step: step.Name, Err: err, TimedOut: timedOut}
		f.Compensations = s.compensate(ctx, done)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return f
	}

	span.SetStatus(codes.Ok, "ok")
	return nil
}

func (s *Saga) runStep(ctx context.Context, step Step) (bool, error) {
	stepCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	stepCtx, span := s.tracer.Start(stepCtx, step.Name)
	defer span.End()

	if s.hooks.StepStarted != nil {
		s.hooks.StepStarted(stepCtx, step.Name)
	}

	start := time.Now()
	err := step.Action(stepCtx)
	took := time.Since(start)

	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(stepCtx.Err(), context.DeadlineExceeded)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.hooks.StepFailed != nil {
			s.hooks.StepFailed(stepCtx, step.Name, took, err)
		}
		return timedOut, err
	}

	span.SetStatus(codes.Ok, "ok")
	if s.hooks.StepSucceeded != nil {
		s.hooks.StepSucceeded(stepCtx, step.Name, took)
	}
	return false, nil
}

// 呼び出し元がキャンセルしても補償は走らせる
func (s *Saga) compensate(ctx context.Context, done []Step) []*CompensationError {
	base := context.WithoutCancel(ctx)
	var errs []*CompensationError

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}

		cctx, cancel := s.withTimeout(base)
		cctx, span := s.tracer.Start(cctx, "compensate."+step.Name)
		err := step.Compensate(cctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errs = append(errs, &CompensationError{Step: step.Name, Err: err})
		}
		span.End()
		cancel()

		if s.hooks.Compensated != nil {
			s.hooks.Compensated(base, step.Name, err)
		}
	}
	return errs
}

func (s *Saga) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// 失敗した手順と補償の結果
type Failure struct {
	Step          string
	Err           error
	TimedOut      bool
	Compensations []*CompensationError
}

func (f *Failure) Error() string {
	return fmt.Sprintf("step %s: %v", f.Step, f.Err)
}

func (f *Failure) Unwrap() []error {
	errs := []error{f.Err}
	for _, c := range f.Compensations {
		errs = append(errs, c)
	}
	return errs
}

// CompensationError は取り消しに失敗した（書き込みが残っている）こと。
type CompensationError struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensate %s: %v", e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }
