package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func record(log *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*log = append(*log, name)
		return err
	}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	var log []string
	s := New("test").
		AddStep(Step{Name: "a", Action: record(&log, "a", nil), Compensate: record(&log, "undo-a", nil)}).
		AddStep(Step{Name: "b", Action: record(&log, "b", nil), Compensate: record(&log, "undo-b", nil)})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"a", "b"}, log)
}

func TestRun_FailureCompensatesInReverse(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	s := New("test").
		AddStep(Step{Name: "a", Action: record(&log, "a", nil), Compensate: record(&log, "undo-a", nil)}).
		AddStep(Step{Name: "b", Action: record(&log, "b", nil), Compensate: record(&log, "undo-b", nil)}).
		AddStep(Step{Name: "c", Action: record(&log, "c", boom), Compensate: record(&log, "undo-c", nil)}).
		AddStep(Step{Name: "d", Action: record(&log, "d", nil)})

	err := s.Run(context.Background())
	require.Error(t, err)

	// 失敗したステップ自身と、その後のステップは補償しない
	assert.Equal(t, []string{"a", "b", "c", "undo-b", "undo-a"}, log)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "c", f.Step)
	assert.False(t, f.TimedOut)
	assert.Empty(t, f.Compensations)
	assert.ErrorIs(t, err, boom)
}

func TestRun_CompensationFailureIsReported(t *testing.T) {
	var log []string
	deleteErr := errors.New("delete failed")

	s := New("test").
		AddStep(Step{Name: "insert", Action: record(&log, "insert", nil), Compensate: record(&log, "undo-insert", deleteErr)}).
		AddStep(Step{Name: "items", Action: record(&log, "items", errors.New("fk"))})

	err := s.Run(context.Background())
	require.Error(t, err)

	var ce *CompensationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "insert", ce.Step)
	assert.ErrorIs(t, err, deleteErr)
}

func TestRun_StepTimeoutIsFlagged(t *testing.T) {
	s := New("test", WithStepTimeout(10*time.Millisecond)).
		AddStep(Step{Name: "slow", Action: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}})

	err := s.Run(context.Background())
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.True(t, f.TimedOut)
}

func TestRun_CompensatesEvenWhenCallerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensated bool

	s := New("test").
		AddStep(Step{
			Name:   "a",
			Action: func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensated = ctx.Err() == nil
				return nil
			},
		}).
		AddStep(Step{Name: "b", Action: func(context.Context) error {
			cancel()
			return context.Canceled
		}})

	require.Error(t, s.Run(ctx))
	assert.True(t, compensated)
}

func TestRun_HooksAndSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	var started, succeeded, failed, compensated []string
	hooks := Hooks{
		StepStarted:   func(_ context.Context, s string) { started = append(started, s) },
		StepSucceeded: func(_ context.Context, s string, _ time.Duration) { succeeded = append(succeeded, s) },
		StepFailed:    func(_ context.Context, s string, _ time.Duration, _ error) { failed = append(failed, s) },
		Compensated:   func(_ context.Context, s string, _ error) { compensated = append(compensated, s) },
	}

	s := New("order", WithHooks(hooks), WithTracer(tp.Tracer("test"))).
		AddStep(Step{Name: "a", Action: func(context.Context) error { return nil }, Compensate: func(context.Context) error { return nil }}).
		AddStep(Step{Name: "b", Action: func(context.Context) error { return errors.New("x") }})

	require.Error(t, s.Run(context.Background()))

	assert.Equal(t, []string{"a", "b"}, started)
	assert.Equal(t, []string{"a"}, succeeded)
	assert.Equal(t, []string{"b"}, failed)
	assert.Equal(t, []string{"a"}, compensated)

	var names []string
	for _, span := range sr.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{"a", "b", "compensate.a", "order"}, names)
}
