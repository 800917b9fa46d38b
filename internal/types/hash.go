package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a HashValue in bytes.
const HashSize = 32

// AuthorSize is the length of an Author identifier in bytes.
const AuthorSize = 32

// HashValue is a 32-byte content hash, per spec ยง3.
type HashValue [HashSize]byte

// Author is the public-key identity of a replica, per spec ยง3.
type Author [AuthorSize]byte

// ZeroHash is the zero-value hash.
var ZeroHash HashValue

// ZeroAuthor is the zero-value author.
var ZeroAuthor Author

// Bytes returns the hash as a byte slice.
func (h HashValue) Bytes() []byte { return h[:] }

// IsZero returns true if the hash is all zeros.
func (h HashValue) IsZero() bool { return h == ZeroHash }

// String returns the hex-encoded hash.
func (h HashValue) String() string { return hex.EncodeToString(h[:]) }

// MarshalJSON renders the hash as a hex string.
func (h HashValue) MarshalJSON() ([]byte, error) { return json.Marshal(h.String()) }

// UnmarshalJSON parses a hex-string-encoded hash.
func (h *HashValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// HashFromBytes creates a HashValue from a byte slice, returning an error
// if the slice is not exactly HashSize bytes.
func HashFromBytes(b []byte) (HashValue, error) {
	if len(b) != HashSize {
		return ZeroHash, fmt.Errorf("types: invalid hash length: got %d, want %d", len(b), HashSize)
	}
	var h HashValue
	copy(h[:], b)
	return h, nil
}

// HashFromHex decodes a hex string into a HashValue.
func HashFromHex(s string) (HashValue, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("types: invalid hex: %w", err)
	}
	return HashFromBytes(b)
}

// Bytes returns the author identifier as a byte slice.
func (a Author) Bytes() []byte { return a[:] }

// IsZero returns true if the author is the zero value.
func (a Author) IsZero() bool { return a == ZeroAuthor }

// String returns the hex-encoded author identifier.
func (a Author) String() string { return hex.EncodeToString(a[:]) }

// MarshalJSON renders the author identifier as a hex string.
func (a Author) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// UnmarshalJSON parses a hex-string-encoded author identifier.
func (a *Author) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := AuthorFromHex(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AuthorFromBytes creates an Author from a byte slice.
func AuthorFromBytes(b []byte) (Author, error) {
	if len(b) != AuthorSize {
		return ZeroAuthor, fmt.Errorf("types: invalid author length: got %d, want %d", len(b), AuthorSize)
	}
	var a Author
	copy(a[:], b)
	return a, nil
}

// AuthorFromHex decodes a hex string into an Author.
func AuthorFromHex(s string) (Author, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroAuthor, fmt.Errorf("types: invalid hex: %w", err)
	}
	return AuthorFromBytes(b)
}

// BlockHash and QuorumCertificateHash are domain-separated wrappers over
// HashValue (spec ยง3 "Derived types") so the two hash spaces can never be
// confused at the type level, generalizing the teacher's single bare Hash
// type one level further.

// BlockHash identifies a Block by its canonical content hash.
type BlockHash struct{ h HashValue }

// NewBlockHash wraps a raw HashValue as a BlockHash.
func NewBlockHash(h HashValue) BlockHash { return BlockHash{h: h} }

// Hash returns the underlying HashValue.
func (b BlockHash) Hash() HashValue { return b.h }

// IsZero reports whether the block hash is unset.
func (b BlockHash) IsZero() bool { return b.h.IsZero() }

// String returns the hex-encoded block hash.
func (b BlockHash) String() string { return b.h.String() }

// MarshalJSON renders the block hash as a hex string.
func (b BlockHash) MarshalJSON() ([]byte, error) { return json.Marshal(b.h) }

// UnmarshalJSON parses a hex-string-encoded block hash.
func (b *BlockHash) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &b.h) }

// QuorumCertificateHash identifies a QuorumCertificate by its canonical
// content hash.
type QuorumCertificateHash struct{ h HashValue }

// NewQuorumCertificateHash wraps a raw HashValue as a QuorumCertificateHash.
func NewQuorumCertificateHash(h HashValue) QuorumCertificateHash {
	return QuorumCertificateHash{h: h}
}

// Hash returns the underlying HashValue.
func (q QuorumCertificateHash) Hash() HashValue { return q.h }

// IsZero reports whether the QC hash is unset.
func (q QuorumCertificateHash) IsZero() bool { return q.h.IsZero() }

// String returns the hex-encoded QC hash.
func (q QuorumCertificateHash) String() string { return q.h.String() }

// MarshalJSON renders the QC hash as a hex string.
func (q QuorumCertificateHash) MarshalJSON() ([]byte, error) { return json.Marshal(q.h) }

// UnmarshalJSON parses a hex-string-encoded QC hash.
func (q *QuorumCertificateHash) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &q.h) }
