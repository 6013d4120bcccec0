package transport

import "context"

// Gather is a reusable N-party rendezvous: every member supplies a payload
// for its local rank slot, and every member receives the full, ordered
// vector of payloads once all N have arrived. It is the primitive underneath
// every collective call in this module (group creation, malloc_group,
// barrier, reduce): spec.md's collectives are matched by program order, the
// same way MPI matches the Nth collective call on a communicator across all
// its members, so a single counting barrier-with-payload, keyed only by
// "has every member arrived for this round," is sufficient — no separate
// call-id handshake is needed as long as callers issue collectives in the
// same relative order, which spec.md's "byte-identical arguments across all
// callers" requirement already assumes.
type Gather struct {
	n        int
	requests chan gatherReq
}

type gatherReq struct {
	rank    int
	payload any
	reply   chan gatherReply
}

type gatherReply struct {
	values []any
}

// NewGather creates a Gather for exactly n members and starts its
// coordinator goroutine.
func NewGather(n int) *Gather {
	g := &Gather{n: n, requests: make(chan gatherReq)}
	go g.run()
	return g
}

func (g *Gather) run() {
	values := make([]any, g.n)
	replies := make([]chan gatherReply, 0, g.n)
	arrived := 0
	for req := range g.requests {
		values[req.rank] = req.payload
		replies = append(replies, req.reply)
		arrived++
		if arrived == g.n {
			out := make([]any, g.n)
			copy(out, values)
			for _, r := range replies {
				r <- gatherReply{values: out}
			}
			values = make([]any, g.n)
			replies = replies[:0]
			arrived = 0
		}
	}
}

// Do submits this member's payload and blocks until every member of the
// round has arrived, returning the full ordered vector.
func (g *Gather) Do(ctx context.Context, rank int, payload any) ([]any, error) {
	reply := make(chan gatherReply, 1)
	req := gatherReq{rank: rank, payload: payload, reply: reply}
	select {
	case g.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the coordinator goroutine. Safe to call once all rounds have
// completed; outstanding Do calls will block forever if Close races them, so
// callers must ensure no round is in flight.
func (g *Gather) Close() { close(g.requests) }
