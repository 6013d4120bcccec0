// Package onesided is a partitioned global-address-space (PGAS)
// communication runtime: symmetric allocation, one-sided get/put/accumulate,
// and the synchronization primitives (epochs, fences, barriers, distributed
// mutexes) that make one-sided access safe, layered over an in-process
// transport substitute (internal/transport) standing in for a real MPI-2
// one-sided substrate. See SPEC_FULL.md for the full component map.
package onesided

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/joeycumines/go-onesided/internal/epoch"
	"github.com/joeycumines/go-onesided/internal/obslog"
	"github.com/joeycumines/go-onesided/internal/registry"
	"github.com/joeycumines/go-onesided/internal/scratch"
	"github.com/joeycumines/go-onesided/internal/ticket"
	"github.com/joeycumines/go-onesided/internal/transport"
)

// Runtime is the job-wide state shared by every simulated participant: the
// transport Fabric, the memory-region registry, and the World group. It is
// the analogue of whatever out-of-band launcher (mpirun, etc.) establishes a
// job's participant set before any process calls Init — in this module, one
// Runtime must be constructed (with the final participant count) before any
// goroutine representing a participant calls Init. The scaled-accumulate
// scratch arena is deliberately NOT here: it is per-Participant (see
// Participant.scratch), since spec.md's Design Notes license it as "a
// per-process bump allocator reset at all_fence boundaries" — sharing one
// arena job-wide would let one participant's Fence reclaim bytes another
// participant's in-flight Acc staged moments earlier.
type Runtime struct {
	fabric  *transport.Fabric
	reg     *registry.Registry
	pacer   *ticket.Pacer
	log     zerolog.Logger
	clock   clockwork.Clock
	recover bool

	world *Group

	nextJoin int64 // atomic counter, 0..worldSize-1

	mu       sync.Mutex
	epochs   map[int]*epoch.Manager // per world rank
	mutexes  map[uint64]*MutexArray
	nextMtx  uint64
	nextBase uint64 // synthetic address-space cursor, see malloc.go
}

// Option configures a Runtime at construction, the teacher's own functional
// options idiom (see inprocgrpc.Option, _examples/joeycumines-go-utilpkg/inprocgrpc/options.go).
type Option func(*Runtime)

// WithLogger attaches a structured logger (see internal/obslog). Omit for a
// disabled (no-op) logger.
func WithLogger(l zerolog.Logger) Option { return func(rt *Runtime) { rt.log = l } }

// WithClock injects a clockwork.Clock, letting tests fake the mutex
// backoff's passage of time deterministically.
func WithClock(c clockwork.Clock) Option { return func(rt *Runtime) { rt.clock = c } }

// WithRecover disables the fatal-by-default abort policy (spec.md §7):
// errors are returned to the caller instead of calling the Error sink.
// Per spec.md §7, this is an implementation freedom, not a contract change.
func WithRecover() Option { return func(rt *Runtime) { rt.recover = true } }

// NewRuntime constructs the shared job state for exactly worldSize
// participants and builds the implicit root World group spanning all of
// them, per spec.md §3: "World rank is its identifier in the implicit root
// group containing every participant."
func NewRuntime(worldSize int, opts ...Option) (*Runtime, error) {
	if worldSize <= 0 {
		return nil, fmt.Errorf("onesided: worldSize must be positive")
	}
	rt := &Runtime{
		fabric:  transport.NewFabric(),
		reg:     registry.New(),
		log:     obslog.Disabled(),
		clock:   clockwork.NewRealClock(),
		epochs:  make(map[int]*epoch.Manager),
		mutexes: make(map[uint64]*MutexArray),
	}
	for _, o := range opts {
		o(rt)
	}
	rt.pacer = ticket.NewPacer(defaultBackoffWindow, defaultBackoffBurst, rt.clock)

	members := make([]int, worldSize)
	for i := range members {
		if r := rt.fabric.Join(); r != i {
			return nil, fmt.Errorf("onesided: internal: unexpected join rank %d (want %d)", r, i)
		}
		members[i] = i
		rt.epochs[i] = epoch.New()
	}
	win := transport.NewWindow(rt.fabric, members)
	rt.world = &Group{
		rt:      rt,
		window:  win,
		members: members,
		gather:  transport.NewGather(worldSize),
	}
	return rt, nil
}

// Init binds the next unclaimed world rank to a new Participant, the
// simulation's stand-in for one MPI process calling MPI_Init /
// ARMCI_Init. Exactly worldSize goroutines, each calling Init once, are
// expected to exist for the lifetime of the Runtime.
func (rt *Runtime) Init(ctx context.Context) (*Participant, error) {
	return rt.InitArgs(ctx, nil)
}

// InitArgs is Init, additionally threading argv to whatever the transport
// substitute's bootstrap wants to see (this module's substitute ignores
// them, per spec.md §6: "command-line argv is forwarded verbatim to
// transport init").
func (rt *Runtime) InitArgs(ctx context.Context, argv []string) (*Participant, error) {
	rank := int(atomic.AddInt64(&rt.nextJoin, 1) - 1)
	if rank >= len(rt.world.members) {
		return nil, fmt.Errorf("onesided: Init called more times than NewRuntime's worldSize")
	}
	p := &Participant{
		rt:      rt,
		rank:    rank,
		world:   rt.world,
		argv:    argv,
		recover: rt.recover,
		scratch: scratch.New(),
	}
	p.defaultGroup = rt.world
	rt.log.Debug().Int("rank", rank).Msg("onesided: init")
	return p, nil
}

// Mutex lock polling is paced to at most defaultBackoffBurst attempts per
// defaultBackoffWindow, per mutex, satisfying spec.md 4.F's "MUST avoid
// unbounded polling" without starving a waiter once its ticket is close.
const (
	defaultBackoffWindow = 2 * time.Millisecond
	defaultBackoffBurst  = 4
)
