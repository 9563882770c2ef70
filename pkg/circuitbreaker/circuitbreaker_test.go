package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("collaborator down")

func failing(ctx context.Context) error { return errDown }
func succeeding(ctx context.Context) error { return nil }

func TestExecute_ClosedCircuitPassesThrough(t *testing.T) {
	cb := New("test")

	err := cb.Execute(context.Background(), succeeding)
	require.NoError(t, err)
	assert.True(t, cb.IsClosed())

	err = cb.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, errDown)
	assert.True(t, cb.IsClosed(), "one failure does not open the circuit")
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}

	assert.True(t, cb.IsOpen())

	err := cb.Execute(context.Background(), succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen, "open circuit sheds calls without invoking them")
}

func TestExecute_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), succeeding)
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)

	assert.True(t, cb.IsClosed())
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(2),
	)

	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	time.Sleep(15 * time.Millisecond)

	// Two successes in half-open close the circuit.
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.True(t, cb.IsClosed())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	time.Sleep(15 * time.Millisecond)

	err := cb.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, errDown)
	assert.True(t, cb.IsOpen())
}

func TestExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	fallbackHit := false
	err := cb.ExecuteWithFallback(context.Background(), succeeding, func(err error) error {
		fallbackHit = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, fallbackHit)
}

func TestOnStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := New("test",
		WithFailureThreshold(1),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	_ = cb.Execute(context.Background(), failing)

	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestIsFailureFilter(t *testing.T) {
	benign := errors.New("not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return benign })
	assert.True(t, cb.IsClosed(), "filtered errors do not count as failures")

	_ = cb.Execute(context.Background(), failing)
	assert.True(t, cb.IsOpen())
}

func TestReset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	cb.Reset()

	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
}
