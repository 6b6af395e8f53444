package varint

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 127, 128, 129, 16383, 16384,
		1 << 20, 1<<35 - 1, 1 << 35,
		math.MaxUint32, math.MaxUint32 + 1,
		math.MaxInt64, math.MaxUint64,
	}
	for _, v := range values {
		var buf [MaxLen]byte
		n := Put(buf[:], v)
		if n < 1 || n > MaxLen {
			t.Fatalf("Put(%d) wrote %d bytes", v, n)
		}
		got, m := Get(buf[:n])
		if m != n {
			t.Fatalf("Get after Put(%d): consumed %d bytes, want %d", v, m, n)
		}
		if got != v {
			t.Fatalf("Get(Put(%d)) = %d", v, got)
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		v := rng.Uint64()
		buf := Append(nil, v)
		got, n := Get(buf)
		if n != len(buf) || got != v {
			t.Fatalf("round trip failed for %d: got %d, n=%d, len=%d", v, got, n, len(buf))
		}
	}
}

func TestNineByteValuesHaveNoTrailingContinuation(t *testing.T) {
	// Values requiring the full 9 bytes must not rely on a continuation
	// bit in the final byte.
	v := uint64(1) << 63
	buf := Append(nil, v)
	if len(buf) != MaxLen {
		t.Fatalf("expected %d-byte encoding, got %d", MaxLen, len(buf))
	}
	got, n := Get(buf)
	if n != MaxLen || got != v {
		t.Fatalf("Get = %d, n=%d, want %d, %d", got, n, v, MaxLen)
	}
}

func TestGetIncomplete(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x01}, // continuation bit clear, no more bytes
		{0x01, 0x02, 0x03},
	}
	for _, buf := range cases {
		if _, n := Get(buf); n != 0 {
			t.Fatalf("Get(%v) = n=%d, want 0", buf, n)
		}
	}
}

func TestPrefixTruncationIsDetectable(t *testing.T) {
	// A truncated buffer must never be silently misread as a shorter,
	// complete varint: Get must report n == 0.
	buf := Append(nil, uint64(1)<<40)
	for i := 0; i < len(buf); i++ {
		if _, n := Get(buf[:i]); n != 0 {
			t.Fatalf("Get(buf[:%d]) = n=%d, want 0 (truncated)", i, n)
		}
	}
}
