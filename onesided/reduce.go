package onesided

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// ReduceOp is the combining operator Reduce/ReduceScope applies, per
// SPEC_FULL.md §3's supplemented reduce/reduce_scope operations. sel
// (ARMCI's generalized select-and-combine) is deliberately not implemented
// — see SPEC_FULL.md §3.
type ReduceOp int

const (
	Sum ReduceOp = iota
	Min
	Max
	Prod
)

// Reduce is an allreduce: every member of g contributes one value of dtype,
// and every member receives the same combined result, collectively matched
// by program order on g's Gather the same way every other collective call
// in this module is. Because the combine is associative/commutative and
// every caller reduces the identical gathered set, no second round is
// needed to broadcast the answer — each caller computes it locally.
func (p *Participant) Reduce(ctx context.Context, op ReduceOp, dtype DataType, value []byte, g *Group) ([]byte, error) {
	elemSize := dtype.Size()
	if elemSize == 0 {
		return nil, p.fail("Reduce", UnsupportedDataType, fmt.Errorf("unknown data type %v", dtype))
	}
	if len(value) != elemSize {
		return nil, p.fail("Reduce", BadSize, fmt.Errorf("value length %d does not match element size %d", len(value), elemSize))
	}
	myLocal := g.LocalRank(p.rank)
	if myLocal < 0 {
		return nil, p.fail("Reduce", GroupMismatch, fmt.Errorf("rank %d is not a member of group", p.rank))
	}
	contribution := append([]byte(nil), value...)
	round, err := g.gather.Do(ctx, myLocal, contribution)
	if err != nil {
		return nil, p.fail("Reduce", GroupMismatch, err)
	}
	acc := append([]byte(nil), round[0].([]byte)...)
	for _, v := range round[1:] {
		combineElement(dtype, op, acc, v.([]byte))
	}
	return acc, nil
}

// ReduceScope is Reduce restricted to an arbitrary sub-sequence of g's
// members, per SPEC_FULL.md §3; members not named in scope still must
// call it (the underlying gather is still collective over all of g) but
// their contribution is excluded from the combine.
func (p *Participant) ReduceScope(ctx context.Context, op ReduceOp, dtype DataType, value []byte, scope []int, g *Group) ([]byte, error) {
	elemSize := dtype.Size()
	if elemSize == 0 {
		return nil, p.fail("ReduceScope", UnsupportedDataType, fmt.Errorf("unknown data type %v", dtype))
	}
	if len(value) != elemSize {
		return nil, p.fail("ReduceScope", BadSize, fmt.Errorf("value length %d does not match element size %d", len(value), elemSize))
	}
	myLocal := g.LocalRank(p.rank)
	if myLocal < 0 {
		return nil, p.fail("ReduceScope", GroupMismatch, fmt.Errorf("rank %d is not a member of group", p.rank))
	}
	contribution := append([]byte(nil), value...)
	round, err := g.gather.Do(ctx, myLocal, contribution)
	if err != nil {
		return nil, p.fail("ReduceScope", GroupMismatch, err)
	}
	inScope := make(map[int]bool, len(scope))
	for _, s := range scope {
		inScope[s] = true
	}
	var acc []byte
	for local, v := range round {
		if !inScope[local] {
			continue
		}
		b := v.([]byte)
		if acc == nil {
			acc = append([]byte(nil), b...)
			continue
		}
		combineElement(dtype, op, acc, b)
	}
	if acc == nil {
		return nil, p.fail("ReduceScope", BadSize, fmt.Errorf("scope contains no members of group"))
	}
	return acc, nil
}

// combineElement folds src into acc in place using op, per dtype.
func combineElement(dt DataType, op ReduceOp, acc, src []byte) {
	switch dt {
	case Int32:
		a := int32(binary.LittleEndian.Uint32(acc))
		s := int32(binary.LittleEndian.Uint32(src))
		binary.LittleEndian.PutUint32(acc, uint32(combineInt(op, int64(a), int64(s))))
	case Int64:
		a := int64(binary.LittleEndian.Uint64(acc))
		s := int64(binary.LittleEndian.Uint64(src))
		binary.LittleEndian.PutUint64(acc, uint64(combineInt(op, a, s)))
	case Float32:
		a := math.Float32frombits(binary.LittleEndian.Uint32(acc))
		s := math.Float32frombits(binary.LittleEndian.Uint32(src))
		binary.LittleEndian.PutUint32(acc, math.Float32bits(float32(combineFloat(op, float64(a), float64(s)))))
	case Float64:
		a := math.Float64frombits(binary.LittleEndian.Uint64(acc))
		s := math.Float64frombits(binary.LittleEndian.Uint64(src))
		binary.LittleEndian.PutUint64(acc, math.Float64bits(combineFloat(op, a, s)))
	case Complex64, Complex128:
		// Min/Max have no total order over complex values; only Sum/Prod
		// are meaningful, matching ARMCI's own restriction of MIN/MAX to
		// real types.
		combineComplexElement(dt, op, acc, src)
	}
}

func combineInt(op ReduceOp, a, b int64) int64 {
	switch op {
	case Sum:
		return a + b
	case Min:
		if b < a {
			return b
		}
		return a
	case Max:
		if b > a {
			return b
		}
		return a
	case Prod:
		return a * b
	default:
		return a
	}
}

func combineFloat(op ReduceOp, a, b float64) float64 {
	switch op {
	case Sum:
		return a + b
	case Min:
		return math.Min(a, b)
	case Max:
		return math.Max(a, b)
	case Prod:
		return a * b
	default:
		return a
	}
}

func combineComplexElement(dt DataType, op ReduceOp, acc, src []byte) {
	var a, s complex128
	switch dt {
	case Complex64:
		ar := math.Float32frombits(binary.LittleEndian.Uint32(acc[0:4]))
		ai := math.Float32frombits(binary.LittleEndian.Uint32(acc[4:8]))
		sr := math.Float32frombits(binary.LittleEndian.Uint32(src[0:4]))
		si := math.Float32frombits(binary.LittleEndian.Uint32(src[4:8]))
		a, s = complex(float64(ar), float64(ai)), complex(float64(sr), float64(si))
	case Complex128:
		ar := math.Float64frombits(binary.LittleEndian.Uint64(acc[0:8]))
		ai := math.Float64frombits(binary.LittleEndian.Uint64(acc[8:16]))
		sr := math.Float64frombits(binary.LittleEndian.Uint64(src[0:8]))
		si := math.Float64frombits(binary.LittleEndian.Uint64(src[8:16]))
		a, s = complex(ar, ai), complex(sr, si)
	}
	var r complex128
	switch op {
	case Prod:
		r = a * s
	default: // Sum, and Min/Max fall back to Sum (undefined by spec)
		r = a + s
	}
	switch dt {
	case Complex64:
		binary.LittleEndian.PutUint32(acc[0:4], math.Float32bits(float32(real(r))))
		binary.LittleEndian.PutUint32(acc[4:8], math.Float32bits(float32(imag(r))))
	case Complex128:
		binary.LittleEndian.PutUint64(acc[0:8], math.Float64bits(real(r)))
		binary.LittleEndian.PutUint64(acc[8:16], math.Float64bits(imag(r)))
	}
}
