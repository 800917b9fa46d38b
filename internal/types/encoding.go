package types

import "encoding/binary"

// canonicalEncoder builds the deterministic, domain-separated byte
// encoding spec ยง6 requires: "each type prepends its name bytes followed
// by deterministic byte encoding of its fields so that hashes of
// syntactically distinct types never collide." This mirrors the
// teacher's own SigningPayload() helpers (fixed-width little-endian
// fields) generalized into one shared builder instead of one hand-rolled
// buffer per record type.
type canonicalEncoder struct {
	buf []byte
}

func newCanonicalEncoder(domain string) *canonicalEncoder {
	e := &canonicalEncoder{}
	e.buf = append(e.buf, byte(len(domain)))
	e.buf = append(e.buf, domain...)
	return e
}

func (e *canonicalEncoder) hash(h HashValue) *canonicalEncoder {
	e.buf = append(e.buf, h[:]...)
	return e
}

func (e *canonicalEncoder) author(a Author) *canonicalEncoder {
	e.buf = append(e.buf, a[:]...)
	return e
}

func (e *canonicalEncoder) u64(v uint64) *canonicalEncoder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
	return e
}

func (e *canonicalEncoder) i64(v int64) *canonicalEncoder {
	return e.u64(uint64(v))
}

func (e *canonicalEncoder) bytes(b []byte) *canonicalEncoder {
	e.buf = append(e.buf, byte(len(b)>>24), byte(len(b)>>16), byte(len(b)>>8), byte(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

func (e *canonicalEncoder) optionalHash(h *HashValue) *canonicalEncoder {
	if h == nil {
		e.buf = append(e.buf, 0)
		return e
	}
	e.buf = append(e.buf, 1)
	return e.hash(*h)
}

func (e *canonicalEncoder) bytesOut() []byte {
	return e.buf
}
