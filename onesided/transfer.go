package onesided

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/go-onesided/internal/epoch"
	"github.com/joeycumines/go-onesided/internal/registry"
	"github.com/joeycumines/go-onesided/internal/transport"
)

// reportRemote routes an error returned by an epoch.Manager.WithRemote call
// through this participant's error sink, distinguishing an exclusivity
// conflict (EpochBusy) from every other transport-level failure.
func (p *Participant) reportRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, epoch.ErrEpochBusy) {
		return p.fail(op, EpochBusy, err)
	}
	return p.fail(op, UnsupportedOp, err)
}

// Get is spec.md 4.D's get: copies len(dst) bytes from target's remote address
// remoteAddr into dst (a buffer local to the caller), blocking until the
// data has arrived.
func (p *Participant) Get(ctx context.Context, target int, remoteAddr uintptr, dst []byte) error {
	rec, local, offset, err := p.resolve(target, remoteAddr, len(dst))
	if err != nil {
		return err
	}
	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpGet, func() (any, error) {
			copy(dst, rec.Slices[local].Bytes[offset:int(offset)+len(dst)])
			return nil, nil
		})
		return sendErr
	})
	return p.reportRemote("Get", err)
}

// Put is spec.md 4.D's put: copies src into target's remote address
// remoteAddr, blocking until the write has landed (and is visible to a
// subsequent Get from any initiator, once the enclosing epoch closes).
func (p *Participant) Put(ctx context.Context, target int, src []byte, remoteAddr uintptr) error {
	rec, local, offset, err := p.resolve(target, remoteAddr, len(src))
	if err != nil {
		return err
	}
	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpPut, func() (any, error) {
			copy(rec.Slices[local].Bytes[offset:int(offset)+len(src)], src)
			return nil, nil
		})
		return sendErr
	})
	return p.reportRemote("Put", err)
}

// Acc is spec.md 4.D's accumulate: element-wise dst += scale*src at
// target's remote address remoteAddr, interpreting both buffers as a
// sequence of dtype elements. Per spec.md 4.D and the Design Notes, when
// scale is the multiplicative identity (1+0i) the accumulate is issued
// directly from src; otherwise the scaled values are staged in this
// participant's scratch arena first; both paths perform the actual
// read-modify-write inside the single Send call that runs on target's
// Endpoint goroutine, which is what makes concurrent accumulates from
// distinct initiators compose as some serialization of per-element adds.
func (p *Participant) Acc(ctx context.Context, target int, dtype DataType, scale complex128, src []byte, remoteAddr uintptr) error {
	elemSize := dtype.Size()
	if elemSize == 0 {
		return p.fail("Acc", UnsupportedDataType, fmt.Errorf("unknown data type %v", dtype))
	}
	if len(src)%elemSize != 0 {
		return p.fail("Acc", BadSize, fmt.Errorf("length %d is not a multiple of element size %d", len(src), elemSize))
	}
	rec, local, offset, err := p.resolve(target, remoteAddr, len(src))
	if err != nil {
		return err
	}

	payload := src
	if !isScaleOne(scale) {
		staged := p.scratch.Alloc(len(src))
		for i := 0; i < len(src); i += elemSize {
			scaleElement(dtype, staged[i:i+elemSize], src[i:i+elemSize], scale)
		}
		payload = staged
		scale = complex(1, 0) // already applied; target just adds payload as-is
	}

	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpPut, func() (any, error) {
			dstBytes := rec.Slices[local].Bytes[offset : int(offset)+len(payload)]
			for i := 0; i < len(payload); i += elemSize {
				accumulateElement(dtype, dstBytes[i:i+elemSize], payload[i:i+elemSize], scale)
			}
			return nil, nil
		})
		return sendErr
	})
	return p.reportRemote("Acc", err)
}

// resolve looks up the allocation record backing [remoteAddr,
// remoteAddr+size) at target, per spec.md 4.B's lookup contract, failing
// with InvalidAddress if no record covers the full range.
func (p *Participant) resolve(target int, remoteAddr uintptr, size int) (rec *registry.Record, local int, offset uintptr, err error) {
	r, ok := p.rt.reg.Lookup(remoteAddr, target)
	if !ok {
		return nil, 0, 0, p.fail("resolve", InvalidAddress, fmt.Errorf("address %#x not registered at rank %d", remoteAddr, target))
	}
	local, offset, ok = r.Contains(target, remoteAddr, size)
	if !ok {
		return nil, 0, 0, p.fail("resolve", InvalidAddress, fmt.Errorf("range [%#x,+%d) exceeds the registered slice at rank %d", remoteAddr, size, target))
	}
	return r, local, offset, nil
}
