package onesided

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessStartEndExclusivity(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		require.NoError(t, err)
		require.NoError(t, p.AccessStart(bases[0]))
		require.Error(t, p.AccessStart(bases[0]), "a second AccessStart before AccessEnd must fail")
		require.NoError(t, p.AccessEnd(bases[0]))
		require.NoError(t, p.AccessStart(bases[0]))
		require.NoError(t, p.AccessEnd(bases[0]))
		return p.Free(ctx, bases[0])
	})
}

func TestGetPutInvalidAddress(t *testing.T) {
	rt := newTestRuntime(t, 2)
	runAll(t, rt, 2, func(ctx context.Context, p *Participant) error {
		if p.Rank() != 0 {
			return nil
		}
		buf := make([]byte, 8)
		err := p.Get(ctx, 1, 0xdeadbeef, buf)
		require.Error(t, err)
		var onesidedErr *Error
		require.ErrorAs(t, err, &onesidedErr)
		require.Equal(t, InvalidAddress, onesidedErr.Kind)
		return nil
	})
}

func TestPutOutOfRangeFails(t *testing.T) {
	rt := newTestRuntime(t, 2)
	runAll(t, rt, 2, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		require.NoError(t, err)
		if p.Rank() != 0 {
			if err := p.Barrier(ctx); err != nil {
				return err
			}
			return nil
		}
		oversized := make([]byte, 16)
		err = p.Put(ctx, 1, oversized, bases[1])
		require.Error(t, err)
		var onesidedErr *Error
		require.ErrorAs(t, err, &onesidedErr)
		require.Equal(t, InvalidAddress, onesidedErr.Kind)
		return p.Barrier(ctx)
	})
}

func TestAccRejectsUnalignedLength(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 16)
		require.NoError(t, err)
		err = p.Acc(ctx, 0, Int64, complex(1, 0), make([]byte, 5), bases[0])
		require.Error(t, err)
		var onesidedErr *Error
		require.ErrorAs(t, err, &onesidedErr)
		require.Equal(t, BadSize, onesidedErr.Kind)
		return p.Free(ctx, bases[0])
	})
}

func TestMallocGroupRejectsNegativeSize(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		_, err := p.Malloc(ctx, -1)
		require.Error(t, err)
		var onesidedErr *Error
		require.ErrorAs(t, err, &onesidedErr)
		require.Equal(t, BadSize, onesidedErr.Kind)
		return nil
	})
}

func TestGroupRankAndSize(t *testing.T) {
	const n = 3
	rt := newTestRuntime(t, n)
	runAll(t, rt, n, func(ctx context.Context, p *Participant) error {
		require.Equal(t, n, p.GroupSize(p.GetWorld()))
		rank, err := p.GroupRank(p.GetWorld())
		require.NoError(t, err)
		require.Equal(t, p.Rank(), rank)
		return nil
	})
}

func TestGroupCreateExcludesNonMembers(t *testing.T) {
	const n = 3
	rt := newTestRuntime(t, n)
	runAll(t, rt, n, func(ctx context.Context, p *Participant) error {
		child, err := p.GroupCreate(ctx, p.GetWorld(), []int{0, 1})
		require.NoError(t, err)
		if p.Rank() == 2 {
			require.False(t, child.Active())
		} else {
			require.True(t, child.Active())
			require.Equal(t, 2, child.Size())
		}
		return nil
	})
}

func TestDestroyMutexesTwiceFails(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		m, err := p.CreateMutexes(ctx, p.GetWorld(), 1)
		require.NoError(t, err)
		require.NoError(t, p.DestroyMutexes(ctx, m))
		err = p.DestroyMutexes(ctx, m)
		require.Error(t, err)
		var onesidedErr *Error
		require.ErrorAs(t, err, &onesidedErr)
		require.Equal(t, DoubleDestroy, onesidedErr.Kind)
		return nil
	})
}

func TestLockAfterDestroyFails(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		m, err := p.CreateMutexes(ctx, p.GetWorld(), 1)
		require.NoError(t, err)
		require.NoError(t, p.DestroyMutexes(ctx, m))
		err = m.Lock(ctx, 0, 0)
		require.Error(t, err)
		return nil
	})
}

func TestNonBlockingHandles(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		require.NoError(t, err)
		h := p.NBPut(ctx, 0, make([]byte, 8), bases[0])
		require.NoError(t, h.Wait(ctx))
		done, err := h.Test()
		require.True(t, done)
		require.NoError(t, err)

		buf := make([]byte, 8)
		h2 := p.NBGet(ctx, 0, bases[0], buf)
		require.NoError(t, WaitAll(ctx, []*Handle{h, h2}))
		return p.Free(ctx, bases[0])
	})
}

func TestReduceScopeExcludesNonScopeMembers(t *testing.T) {
	const n = 4
	rt := newTestRuntime(t, n)
	results := make([]int64, n)
	runAll(t, rt, n, func(ctx context.Context, p *Participant) error {
		buf := make([]byte, 8)
		val := int64(p.Rank() + 1)
		binary.LittleEndian.PutUint64(buf, uint64(val))
		out, err := p.ReduceScope(ctx, Sum, Int64, buf, []int{0, 1}, p.GetWorld())
		require.NoError(t, err)
		results[p.Rank()] = int64(binary.LittleEndian.Uint64(out))
		return nil
	})
	for _, got := range results {
		require.Equal(t, int64(3), got) // 1 (rank0) + 2 (rank1)
	}
}

func TestFenceResetsScratchArena(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		require.NoError(t, err)
		// force the scaled-accumulate path to allocate scratch bytes.
		require.NoError(t, p.Acc(ctx, 0, Int64, complex(2, 0), make([]byte, 8), bases[0]))
		require.NoError(t, p.AllFence(ctx))
		return p.Free(ctx, bases[0])
	})
}

func TestPutVGetVRoundTrip(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 24)
		require.NoError(t, err)

		descs := []IOVecDescriptor{
			{
				Local:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
				Remote: []uintptr{bases[0], bases[0] + 8},
				Bytes:  4,
				Count:  2,
			},
			{
				Local:  []byte{9, 10, 11, 12},
				Remote: []uintptr{bases[0] + 16},
				Bytes:  4,
				Count:  1,
			},
		}
		require.NoError(t, p.PutV(ctx, 0, descs))

		got := make([]byte, 24)
		getDescs := []IOVecDescriptor{
			{
				Local:  got,
				Remote: []uintptr{bases[0], bases[0] + 8, bases[0] + 16},
				Bytes:  8,
				Count:  3,
			},
		}
		require.NoError(t, p.GetV(ctx, 0, getDescs))
		require.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0, 5, 6, 7, 8, 0, 0, 0, 0, 9, 10, 11, 12, 0, 0, 0, 0}, got)
		return p.Free(ctx, bases[0])
	})
}

func TestAccVAccumulatesEachSegment(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 16)
		require.NoError(t, err)
		zero := make([]byte, 16)
		require.NoError(t, p.Put(ctx, 0, zero, bases[0]))

		one := make([]byte, 8)
		binary.LittleEndian.PutUint64(one, 1)
		two := make([]byte, 8)
		binary.LittleEndian.PutUint64(two, 2)
		descs := []IOVecDescriptor{
			{Local: append(append([]byte(nil), one...), two...), Remote: []uintptr{bases[0], bases[0] + 8}, Bytes: 8, Count: 2},
		}
		require.NoError(t, p.AccV(ctx, 0, Int64, complex(3, 0), descs))

		got := make([]byte, 16)
		require.NoError(t, p.Get(ctx, 0, bases[0], got))
		require.Equal(t, int64(3), int64(binary.LittleEndian.Uint64(got[0:8])))
		require.Equal(t, int64(6), int64(binary.LittleEndian.Uint64(got[8:16])))
		return p.Free(ctx, bases[0])
	})
}

func TestNonBlockingIOVecHandles(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		require.NoError(t, err)
		descs := []IOVecDescriptor{{Local: make([]byte, 8), Remote: []uintptr{bases[0]}, Bytes: 8, Count: 1}}
		h := p.NBPutV(ctx, 0, descs)
		require.NoError(t, h.Wait(ctx))
		h2 := p.NBGetV(ctx, 0, descs)
		require.NoError(t, WaitAll(ctx, []*Handle{h, h2}))
		return p.Free(ctx, bases[0])
	})
}

func TestPutVRejectsMismatchedDescriptor(t *testing.T) {
	rt := newTestRuntime(t, 1)
	runAll(t, rt, 1, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		require.NoError(t, err)
		bad := []IOVecDescriptor{
			{Local: make([]byte, 4), Remote: []uintptr{bases[0]}, Bytes: 8, Count: 1},
		}
		err = p.PutV(ctx, 0, bad)
		require.Error(t, err)
		var onesidedErr *Error
		require.ErrorAs(t, err, &onesidedErr)
		require.Equal(t, BadSize, onesidedErr.Kind)
		return p.Free(ctx, bases[0])
	})
}

// TestConcurrentScaledAccDoesNotCorruptAcrossParticipants forces every
// participant's scaled-Acc path to stage bytes in its scratch arena while
// other participants concurrently call AllFence (which resets a scratch
// arena). If the arena were job-wide rather than per-participant, one
// goroutine's Fence could reclaim and overwrite another goroutine's
// in-flight staged payload before the target endpoint reads it, corrupting
// the accumulate; with a per-participant arena this is impossible.
func TestConcurrentScaledAccDoesNotCorruptAcrossParticipants(t *testing.T) {
	const n = 8
	const rounds = 50
	rt := newTestRuntime(t, n)
	runAll(t, rt, n, func(ctx context.Context, p *Participant) error {
		bases, err := p.Malloc(ctx, 8)
		if err != nil {
			return err
		}
		zero := make([]byte, 8)
		if err := p.Put(ctx, p.Rank(), zero, bases[p.Rank()]); err != nil {
			return err
		}
		one := make([]byte, 8)
		binary.LittleEndian.PutUint64(one, 1)
		for i := 0; i < rounds; i++ {
			// scale != 1 forces the scratch-staging path.
			if err := p.Acc(ctx, p.Rank(), Int64, complex(2, 0), one, bases[p.Rank()]); err != nil {
				return err
			}
			if err := p.AllFence(ctx); err != nil {
				return err
			}
		}
		got := make([]byte, 8)
		if err := p.Get(ctx, p.Rank(), bases[p.Rank()], got); err != nil {
			return err
		}
		if want := uint64(2 * rounds); binary.LittleEndian.Uint64(got) != want {
			t.Errorf("rank %d: want %d, got %d", p.Rank(), want, binary.LittleEndian.Uint64(got))
		}
		return p.Free(ctx, bases[p.Rank()])
	})
}

