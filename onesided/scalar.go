package onesided

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Scalar is the set of element types PutValue/GetValue accept, per
// SPEC_FULL.md §6's generic convenience wrappers over the byte-oriented
// Put/Get (spec.md 4.H: "thin, type-safe wrappers for the common
// single-scalar case").
type Scalar interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// PutValue writes v to target's remote address remoteAddr, per spec.md
// 4.H.
func PutValue[T Scalar](ctx context.Context, p *Participant, target int, v T, remoteAddr uintptr) error {
	buf, err := encodeScalar(v)
	if err != nil {
		return p.fail("PutValue", UnsupportedDataType, err)
	}
	return p.Put(ctx, target, buf, remoteAddr)
}

// GetValue reads a T from target's remote address remoteAddr, per spec.md
// 4.H.
func GetValue[T Scalar](ctx context.Context, p *Participant, target int, remoteAddr uintptr) (T, error) {
	var zero T
	buf := make([]byte, scalarSize(zero))
	if err := p.Get(ctx, target, remoteAddr, buf); err != nil {
		return zero, err
	}
	return decodeScalar[T](buf), nil
}

func scalarSize(v any) int {
	switch v.(type) {
	case int32, float32:
		return 4
	default:
		return 8
	}
}

func encodeScalar[T Scalar](v T) ([]byte, error) {
	buf := make([]byte, scalarSize(v))
	switch x := any(v).(type) {
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(x))
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(x))
	case float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
	default:
		return nil, fmt.Errorf("onesided: unsupported scalar type %T", v)
	}
	return buf, nil
}

func decodeScalar[T Scalar](buf []byte) T {
	var zero T
	switch any(zero).(type) {
	case int32:
		return any(int32(binary.LittleEndian.Uint32(buf))).(T)
	case int64:
		return any(int64(binary.LittleEndian.Uint64(buf))).(T)
	case float32:
		return any(math.Float32frombits(binary.LittleEndian.Uint32(buf))).(T)
	case float64:
		return any(math.Float64frombits(binary.LittleEndian.Uint64(buf))).(T)
	}
	return zero
}
