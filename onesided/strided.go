package onesided

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-onesided/internal/transport"
)

// StridedSpec describes an N-dimensional box transfer, spec.md 4.E's
// put_strided/get_strided shape: count[0] is the number of contiguous
// bytes moved per leaf segment, and count[1:] gives the repeat count at
// each outer level, outermost last. srcStride/dstStride (length
// len(count)-1) give the byte stride between consecutive blocks at each
// level, for the local and remote sides respectively. A 1-level spec
// (len(count)==2) is an ordinary strided vector; higher levels nest.
type StridedSpec struct {
	Count     []int
	SrcStride []int
	DstStride []int
}

// leafOffsets walks spec's nested levels and returns the (srcOffset,
// dstOffset) pair of every contiguous leaf segment, in the row-major order
// spec.md 4.E decomposes the box into.
func (s StridedSpec) leafOffsets() ([][2]int, error) {
	if len(s.Count) < 1 {
		return nil, fmt.Errorf("strided: count must have at least one element")
	}
	levels := len(s.Count) - 1
	if len(s.SrcStride) != levels || len(s.DstStride) != levels {
		return nil, fmt.Errorf("strided: stride length must equal len(count)-1")
	}
	var out [][2]int
	var walk func(level int, srcBase, dstBase int)
	walk = func(level int, srcBase, dstBase int) {
		if level == 0 {
			out = append(out, [2]int{srcBase, dstBase})
			return
		}
		n := s.Count[level]
		srcStride := s.SrcStride[level-1]
		dstStride := s.DstStride[level-1]
		for i := 0; i < n; i++ {
			walk(level-1, srcBase+i*srcStride, dstBase+i*dstStride)
		}
	}
	walk(levels, 0, 0)
	return out, nil
}

// PutStrided is spec.md 4.E's put_strided: copies spec's box from src
// (addressed by spec's SrcStride offsets) into target's remote address
// space starting at remoteAddr (addressed by spec's DstStride offsets),
// bracketed by a single remote epoch spanning every leaf segment so the
// whole box lands as one logical one-sided operation.
func (p *Participant) PutStrided(ctx context.Context, target int, src []byte, remoteAddr uintptr, spec StridedSpec) error {
	leaves, err := spec.leafOffsets()
	if err != nil {
		return p.fail("PutStrided", BadSize, err)
	}
	n := spec.Count[0]
	span := stridedSpan(leaves, n)
	rec, local, base, err := p.resolve(target, remoteAddr, span)
	if err != nil {
		return err
	}
	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpPut, func() (any, error) {
			for _, off := range leaves {
				so, do := off[0], off[1]
				if so+n > len(src) {
					return nil, fmt.Errorf("strided: src offset %d+%d exceeds buffer length %d", so, n, len(src))
				}
				dstOff := int(base) + do
				copy(rec.Slices[local].Bytes[dstOff:dstOff+n], src[so:so+n])
			}
			return nil, nil
		})
		return sendErr
	})
	return p.reportRemote("PutStrided", err)
}

// GetStrided is spec.md 4.E's get_strided: the Get-direction counterpart
// of PutStrided.
func (p *Participant) GetStrided(ctx context.Context, target int, remoteAddr uintptr, dst []byte, spec StridedSpec) error {
	leaves, err := spec.leafOffsets()
	if err != nil {
		return p.fail("GetStrided", BadSize, err)
	}
	n := spec.Count[0]
	span := stridedSpan(leaves, n)
	rec, local, base, err := p.resolve(target, remoteAddr, span)
	if err != nil {
		return err
	}
	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpGet, func() (any, error) {
			for _, off := range leaves {
				so, do := off[0], off[1]
				if so+n > len(dst) {
					return nil, fmt.Errorf("strided: dst offset %d+%d exceeds buffer length %d", so, n, len(dst))
				}
				srcOff := int(base) + do
				copy(dst[so:so+n], rec.Slices[local].Bytes[srcOff:srcOff+n])
			}
			return nil, nil
		})
		return sendErr
	})
	return p.reportRemote("GetStrided", err)
}

// AccStrided is spec.md 4.E's acc_strided: the accumulate-direction
// counterpart, reusing the same scale/dtype semantics as Acc.
func (p *Participant) AccStrided(ctx context.Context, target int, dtype DataType, scale complex128, src []byte, remoteAddr uintptr, spec StridedSpec) error {
	elemSize := dtype.Size()
	if elemSize == 0 {
		return p.fail("AccStrided", UnsupportedDataType, fmt.Errorf("unknown data type %v", dtype))
	}
	leaves, err := spec.leafOffsets()
	if err != nil {
		return p.fail("AccStrided", BadSize, err)
	}
	n := spec.Count[0]
	if n%elemSize != 0 {
		return p.fail("AccStrided", BadSize, fmt.Errorf("leaf length %d is not a multiple of element size %d", n, elemSize))
	}
	span := stridedSpan(leaves, n)
	rec, local, base, err := p.resolve(target, remoteAddr, span)
	if err != nil {
		return err
	}
	err = p.epochMgr().WithRemote(rec.Window, target, func() error {
		_, sendErr := p.rt.fabric.Send(ctx, target, transport.OpPut, func() (any, error) {
			for _, off := range leaves {
				so, do := off[0], off[1]
				if so+n > len(src) {
					return nil, fmt.Errorf("strided: src offset %d+%d exceeds buffer length %d", so, n, len(src))
				}
				dstOff := int(base) + do
				dstBytes := rec.Slices[local].Bytes[dstOff : dstOff+n]
				srcBytes := src[so : so+n]
				for i := 0; i < n; i += elemSize {
					accumulateElement(dtype, dstBytes[i:i+elemSize], srcBytes[i:i+elemSize], scale)
				}
			}
			return nil, nil
		})
		return sendErr
	})
	return p.reportRemote("AccStrided", err)
}

// stridedSpan returns the smallest size that brackets every leaf's
// remote-side span, used to validate the whole box against the registry in
// one Contains call.
func stridedSpan(leaves [][2]int, n int) int {
	max := 0
	for _, off := range leaves {
		if end := off[1] + n; end > max {
			max = end
		}
	}
	return max
}

// IOVecDescriptor is spec.md 4.E's generalized I/O-vector form: "a sequence
// of (src_array, dst_array, bytes, count) descriptors; each descriptor
// describes count independent equal-length transfers." Specialized to this
// module's []byte/uintptr addressing: Local is Count segments of Bytes
// bytes each, concatenated, and Remote gives the Count remote addresses
// they pair with, index for index.
type IOVecDescriptor struct {
	Local  []byte
	Remote []uintptr
	Bytes  int
	Count  int
}

// validate checks d's shape invariants: Remote must name exactly Count
// addresses, and Local must be exactly Bytes*Count bytes long.
func (d IOVecDescriptor) validate() error {
	if d.Bytes < 0 || d.Count < 0 {
		return fmt.Errorf("iovec: bytes and count must be non-negative, got bytes=%d count=%d", d.Bytes, d.Count)
	}
	if len(d.Remote) != d.Count {
		return fmt.Errorf("iovec: %d remote addresses does not match count %d", len(d.Remote), d.Count)
	}
	if want := d.Bytes * d.Count; len(d.Local) != want {
		return fmt.Errorf("iovec: local buffer length %d does not match bytes*count %d", len(d.Local), want)
	}
	return nil
}

// PutV is spec.md 4.E's generalized I/O-vector put: descs is a sequence of
// (src_array, dst_array, bytes, count) descriptors, each describing Count
// independent equal-length transfers from the matching Local segment to
// the matching Remote address. Per spec.md 4.E, this is "equivalent to
// issuing each pair sequentially; no ordering across pairs is guaranteed",
// so each segment is simply issued as an ordinary Put, descriptor by
// descriptor, segment by segment.
func (p *Participant) PutV(ctx context.Context, target int, descs []IOVecDescriptor) error {
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return p.fail("PutV", BadSize, err)
		}
		for i := 0; i < d.Count; i++ {
			seg := d.Local[i*d.Bytes : (i+1)*d.Bytes]
			if err := p.Put(ctx, target, seg, d.Remote[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetV is spec.md 4.E's generalized I/O-vector get: the Get-direction
// counterpart of PutV — each descriptor's Remote addresses are the sources
// and the matching Local segments receive the data.
func (p *Participant) GetV(ctx context.Context, target int, descs []IOVecDescriptor) error {
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return p.fail("GetV", BadSize, err)
		}
		for i := 0; i < d.Count; i++ {
			seg := d.Local[i*d.Bytes : (i+1)*d.Bytes]
			if err := p.Get(ctx, target, d.Remote[i], seg); err != nil {
				return err
			}
		}
	}
	return nil
}

// AccV is spec.md 4.E's generalized I/O-vector accumulate: the
// accumulate-direction counterpart of PutV, reusing Acc's scale/dtype
// semantics for every segment.
func (p *Participant) AccV(ctx context.Context, target int, dtype DataType, scale complex128, descs []IOVecDescriptor) error {
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return p.fail("AccV", BadSize, err)
		}
		for i := 0; i < d.Count; i++ {
			seg := d.Local[i*d.Bytes : (i+1)*d.Bytes]
			if err := p.Acc(ctx, target, dtype, scale, seg, d.Remote[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
