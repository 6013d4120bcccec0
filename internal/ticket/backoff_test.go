package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestPacerWaitReturnsImmediatelyWithinBurst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPacer(10*time.Millisecond, 4, clock)

	for i := 0; i < 4; i++ {
		done := make(chan error, 1)
		go func() { done <- p.Wait(context.Background(), 1) }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Wait blocked inside the burst allowance")
		}
	}
}

func TestPacerWaitRespectsCtxCancellation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPacer(time.Minute, 1, clock)
	require.NoError(t, p.Wait(context.Background(), 1)) // consume the single burst slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPacerDistinguishesMutexes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPacer(time.Minute, 1, clock)
	require.NoError(t, p.Wait(context.Background(), 1))
	require.NoError(t, p.Wait(context.Background(), 2), "distinct mutex keys must not share the backoff budget")
}
