package onesided

import "context"

// Handle is spec.md 4.H's non-blocking request handle. Every data-movement
// primitive in this module is already synchronous (Get/Put/Acc/RMW block
// for remote completion before returning), so the NB* variants below
// return a Handle that is complete the instant it's created. A future
// transport substitute with genuine asynchrony could replace Handle's
// internals without changing this type's shape; callers must not assume
// NB* calls here are actually non-blocking.
type Handle struct {
	err error
}

// Wait blocks until h completes; since every Handle from this module is
// already complete, it returns immediately.
func (h *Handle) Wait(ctx context.Context) error { return h.err }

// Test reports whether h has completed (always true here) and its error.
func (h *Handle) Test() (done bool, err error) { return true, h.err }

// WaitAll waits on every handle in hs, per spec.md 4.H's wait_all,
// returning the first non-nil error encountered.
func WaitAll(ctx context.Context, hs []*Handle) error {
	for _, h := range hs {
		if err := h.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// NBGet is the non-blocking mirror of Get, per spec.md 4.H.
func (p *Participant) NBGet(ctx context.Context, target int, remoteAddr uintptr, dst []byte) *Handle {
	return &Handle{err: p.Get(ctx, target, remoteAddr, dst)}
}

// NBPut is the non-blocking mirror of Put, per spec.md 4.H.
func (p *Participant) NBPut(ctx context.Context, target int, src []byte, remoteAddr uintptr) *Handle {
	return &Handle{err: p.Put(ctx, target, src, remoteAddr)}
}

// NBAcc is the non-blocking mirror of Acc, per spec.md 4.H.
func (p *Participant) NBAcc(ctx context.Context, target int, dtype DataType, scale complex128, src []byte, remoteAddr uintptr) *Handle {
	return &Handle{err: p.Acc(ctx, target, dtype, scale, src, remoteAddr)}
}

// NBPutV is the non-blocking mirror of PutV, per spec.md 4.H applied to the
// I/O-vector variants named alongside 4.E's `*V` forms.
func (p *Participant) NBPutV(ctx context.Context, target int, descs []IOVecDescriptor) *Handle {
	return &Handle{err: p.PutV(ctx, target, descs)}
}

// NBGetV is the non-blocking mirror of GetV.
func (p *Participant) NBGetV(ctx context.Context, target int, descs []IOVecDescriptor) *Handle {
	return &Handle{err: p.GetV(ctx, target, descs)}
}

// NBAccV is the non-blocking mirror of AccV.
func (p *Participant) NBAccV(ctx context.Context, target int, dtype DataType, scale complex128, descs []IOVecDescriptor) *Handle {
	return &Handle{err: p.AccV(ctx, target, dtype, scale, descs)}
}
