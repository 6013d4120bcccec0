// Command onesided-demo runs a small ring-rotation scenario against the
// onesided runtime directly in-process, exercising malloc/put/get/barrier
// end to end without any external launcher.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-onesided/internal/obslog"
	"github.com/joeycumines/go-onesided/onesided"
)

func main() {
	log := obslog.New(os.Stderr, zerolog.InfoLevel)
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Printf(format, args...)
	})); err != nil {
		log.Warn().Err(err).Msg("onesided-demo: maxprocs.Set failed, continuing with default GOMAXPROCS")
	}

	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	const worldSize = 4

	rt, err := onesided.NewRuntime(worldSize, onesided.WithRecover())
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < worldSize; i++ {
		g.Go(func() error { return ringParticipant(ctx, rt, worldSize) })
	}
	return g.Wait()
}

// ringParticipant allocates an 8-byte symmetric slot, writes its own rank
// into its neighbour's slot, barriers, then reads its own slot back to
// confirm the value its other neighbour wrote.
func ringParticipant(ctx context.Context, rt *onesided.Runtime, worldSize int) error {
	p, err := rt.Init(ctx)
	if err != nil {
		return err
	}
	defer p.Finalize(ctx)

	bases, err := p.Malloc(ctx, 8)
	if err != nil {
		return err
	}
	myRank := p.Rank()
	next := (myRank + 1) % worldSize
	prev := (myRank - 1 + worldSize) % worldSize

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(myRank))
	if err := p.Put(ctx, next, buf, bases[next]); err != nil {
		return err
	}
	if err := p.Barrier(ctx); err != nil {
		return err
	}

	got := make([]byte, 8)
	if err := p.Get(ctx, myRank, bases[myRank], got); err != nil {
		return err
	}
	if want := uint64(prev); binary.LittleEndian.Uint64(got) != want {
		return fmt.Errorf("rank %d: expected %d from rank %d, got %d", myRank, want, prev, binary.LittleEndian.Uint64(got))
	}
	return p.Free(ctx, bases[myRank])
}
