package onesided

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/go-onesided/internal/transport"
)

// RMWOp identifies a remote read-modify-write primitive, spec.md 4.F:
// "fetch-and-add and swap over 32- and 64-bit integers."
type RMWOp int

const (
	FetchAndAddI32 RMWOp = iota
	FetchAndAddI64
	SwapI32
	SwapI64
)

func (op RMWOp) size() int {
	switch op {
	case FetchAndAddI32, SwapI32:
		return 4
	default:
		return 8
	}
}

// RMW performs one atomic read-modify-write against target's remote
// address remoteAddr and returns the value observed there before the
// modification (spec.md 4.F: "returns the prior value"). operand is the
// amount to add (FetchAndAddI32/I64) or the value to install (SwapI32/
// SwapI64), little-endian encoded to op's width.
//
// Every RMW runs inside the single Send call that executes on target's
// Endpoint goroutine, the same serialization point Acc uses, so concurrent
// RMWs against the same address from distinct initiators never race.
func (p *Participant) RMW(ctx context.Context, target int, op RMWOp, operand int64, remoteAddr uintptr) (int64, error) {
	size := op.size()
	rec, local, offset, err := p.resolve(target, remoteAddr, size)
	if err != nil {
		return 0, err
	}
	var prior int64
	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpRMW, func() (any, error) {
			dst := rec.Slices[local].Bytes[offset : int(offset)+size]
			switch op {
			case FetchAndAddI32:
				cur := int32(binary.LittleEndian.Uint32(dst))
				prior = int64(cur)
				binary.LittleEndian.PutUint32(dst, uint32(cur+int32(operand)))
			case FetchAndAddI64:
				cur := int64(binary.LittleEndian.Uint64(dst))
				prior = cur
				binary.LittleEndian.PutUint64(dst, uint64(cur+operand))
			case SwapI32:
				cur := int32(binary.LittleEndian.Uint32(dst))
				prior = int64(cur)
				binary.LittleEndian.PutUint32(dst, uint32(int32(operand)))
			case SwapI64:
				cur := int64(binary.LittleEndian.Uint64(dst))
				prior = cur
				binary.LittleEndian.PutUint64(dst, uint64(operand))
			default:
				return nil, fmt.Errorf("onesided: unsupported RMW op %d", op)
			}
			return nil, nil
		})
		return sendErr
	})
	if err := p.reportRemote("RMW", err); err != nil {
		return 0, err
	}
	return prior, nil
}
