package onesided

import (
	"encoding/binary"
	"math"
)

// DataType tags the six accumulate element types: int32, int64, float32,
// float64, complex-float and complex-double. Named in Go terms per SPEC_FULL.md §6 rather than spec.md's
// {INT, LONG, FLOAT, DOUBLE, COMPLEX, DOUBLE_COMPLEX} tags, which remain
// reachable as Int32, Int64, Float32, Float64, Complex64, Complex128.
type DataType int

const (
	Int32 DataType = iota
	Int64
	Float32
	Float64
	Complex64  // complex-float: two float32 parts
	Complex128 // complex-double: two float64 parts
)

// Size returns the element size in bytes for dt, or 0 if dt is unknown.
func (dt DataType) Size() int {
	switch dt {
	case Int32, Float32:
		return 4
	case Int64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		return 0
	}
}

func (dt DataType) String() string {
	switch dt {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Complex64:
		return "Complex64"
	case Complex128:
		return "Complex128"
	default:
		return "Unknown"
	}
}

// accumulateElement adds scaled*src onto dst in place, where src and dst
// are single-element byte slices of dt.Size() bytes. It is the atomic
// read-modify-write primitive every accumulate call performs once per
// element, on the target Endpoint's own goroutine (see transfer.go), which
// is what gives concurrent accumulates from different initiators the
// serialized-result guarantee spec.md §8 requires.
func accumulateElement(dt DataType, dst, src []byte, scale complex128) {
	switch dt {
	case Int32:
		s := int32(real(scale))
		v := int32(binary.LittleEndian.Uint32(src))
		d := int32(binary.LittleEndian.Uint32(dst))
		binary.LittleEndian.PutUint32(dst, uint32(d+s*v))
	case Int64:
		s := int64(real(scale))
		v := int64(binary.LittleEndian.Uint64(src))
		d := int64(binary.LittleEndian.Uint64(dst))
		binary.LittleEndian.PutUint64(dst, uint64(d+s*v))
	case Float32:
		s := float32(real(scale))
		v := math.Float32frombits(binary.LittleEndian.Uint32(src))
		d := math.Float32frombits(binary.LittleEndian.Uint32(dst))
		binary.LittleEndian.PutUint32(dst, math.Float32bits(d+s*v))
	case Float64:
		s := real(scale)
		v := math.Float64frombits(binary.LittleEndian.Uint64(src))
		d := math.Float64frombits(binary.LittleEndian.Uint64(dst))
		binary.LittleEndian.PutUint64(dst, math.Float64bits(d+s*v))
	case Complex64:
		sr, si := float32(real(scale)), float32(imag(scale))
		vr := math.Float32frombits(binary.LittleEndian.Uint32(src[0:4]))
		vi := math.Float32frombits(binary.LittleEndian.Uint32(src[4:8]))
		dr := math.Float32frombits(binary.LittleEndian.Uint32(dst[0:4]))
		di := math.Float32frombits(binary.LittleEndian.Uint32(dst[4:8]))
		// (sr+i*si) * (vr+i*vi)
		pr := sr*vr - si*vi
		pi := sr*vi + si*vr
		binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(dr+pr))
		binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(di+pi))
	case Complex128:
		sr, si := real(scale), imag(scale)
		vr := math.Float64frombits(binary.LittleEndian.Uint64(src[0:8]))
		vi := math.Float64frombits(binary.LittleEndian.Uint64(src[8:16]))
		dr := math.Float64frombits(binary.LittleEndian.Uint64(dst[0:8]))
		di := math.Float64frombits(binary.LittleEndian.Uint64(dst[8:16]))
		pr := sr*vr - si*vi
		pi := sr*vi + si*vr
		binary.LittleEndian.PutUint64(dst[0:8], math.Float64bits(dr+pr))
		binary.LittleEndian.PutUint64(dst[8:16], math.Float64bits(di+pi))
	}
}

// scaleElement writes scale*src into dst in place (used to build the
// scratch buffer for the scale != 1 accumulate path, spec.md 4.D).
func scaleElement(dt DataType, dst, src []byte, scale complex128) {
	zero := make([]byte, dt.Size())
	copy(dst, zero)
	accumulateElement(dt, dst, src, scale)
}

// isScaleOne reports whether scale is the multiplicative identity (1+0i)
// (spec.md 4.D: "If s == 1 ... issue the accumulate directly from the
// caller's buffer").
func isScaleOne(scale complex128) bool {
	return scale == complex(1, 0)
}
