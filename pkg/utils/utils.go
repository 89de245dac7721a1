package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
	"os"
	"runtime/debug"
	"strings"

	"github.com/xyproto/env/v2"
)

func Fatal(v any) {
	fmt.Fprintf(os.Stderr, "ppc64ld: \033[0;1;31mfatal:\033[0m %v\n", v)
	if env.Bool("PPC64LD_TRACEBACK") {
		debug.PrintStack()
	}
	os.Exit(1)
}

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Assert(condition bool) {
	if !condition {
		Fatal("assert failed")
	}
}

// Read decodes a fixed size value stored little endian.
func Read[T any](data []byte) (val T) {
	return ReadWith[T](data, binary.LittleEndian)
}

func ReadWith[T any](data []byte, order binary.ByteOrder) (val T) {
	reader := bytes.NewReader(data)
	err := binary.Read(reader, order, &val)
	MustNo(err)
	return
}

func ReadSliceWith[T any](data []byte, sz int, order binary.ByteOrder) []T {
	nums := len(data) / sz
	res := make([]T, 0, nums)
	for nums > 0 {
		res = append(res, ReadWith[T](data, order))
		data = data[sz:]
		nums--
	}
	return res
}

func WriteWith[T any](data []byte, order binary.ByteOrder, e T) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, order, e)
	MustNo(err)
	copy(data, buf.Bytes())
}

func RemovePrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		s = strings.TrimPrefix(s, prefix)
		return s, true
	}
	return s, false
}

func RemoveIf[T any](elems []T, condition func(T) bool) []T {
	i := 0
	for _, elem := range elems {
		if condition(elem) {
			continue
		}
		elems[i] = elem
		i++
	}
	return elems[:i]
}

func AllZeros(bs []byte) bool {
	b := byte(0)
	for _, s := range bs {
		b |= s
	}
	return b == 0
}

func AlignTo(val, align uint64) uint64 {
	if align == 0 {
		return val
	}
	return (val + align - 1) &^ (align - 1)
}

func hasSingleBit(n uint64) bool {
	return n&(n-1) == 0
}

func BitCeil(val uint64) uint64 {
	if hasSingleBit(val) {
		return val
	}
	return 1 << (64 - bits.LeadingZeros64(val))
}

type Uint interface {
	uint8 | uint16 | uint32 | uint64
}

// Bits extracts val[hi:lo], both ends inclusive.
func Bits[T Uint](val T, hi T, lo T) T {
	return (val >> lo) & ((1 << (hi - lo + 1)) - 1)
}

// SignExtend treats bit `size` of val as the sign bit.
func SignExtend(val uint64, size int) uint64 {
	return uint64(int64(val<<(63-size)) >> (63 - size))
}

// FitsSigned reports whether val is representable in a bits-wide two's
// complement field.
func FitsSigned(val int64, n uint) bool {
	if n >= 64 {
		return true
	}
	lim := int64(1) << (n - 1)
	return val >= -lim && val < lim
}

func FitsUnsigned(val uint64, n uint) bool {
	if n >= 64 {
		return true
	}
	return val < uint64(1)<<n
}

type MapSet[K comparable] struct {
	m map[K]struct{}
}

func NewMapSet[K comparable]() MapSet[K] {
	return MapSet[K]{m: make(map[K]struct{})}
}

func (s MapSet[K]) Add(k K) {
	s.m[k] = struct{}{}
}

func (s MapSet[K]) Contains(k K) bool {
	_, ok := s.m[k]
	return ok
}

func (s MapSet[K]) Len() int {
	return len(s.m)
}
