package crypto

import (
	"crypto/sha256"

	"github.com/vantage-chain/core/internal/types"
	"golang.org/x/crypto/blake2b"
)

// HashSHA256 computes the SHA-256 hash of data.
func HashSHA256(data []byte) types.HashValue {
	return sha256.Sum256(data)
}

// HashRecord computes the canonical record hash used by the record store
// to address blocks and quorum certificates: a BLAKE2b-256 digest of the
// record's domain-separated signing payload (spec ยง9, "production:
// Ed25519 + BLAKE2/SHA-512"). BLAKE2b is pulled in directly here rather
// than left as a transitive libp2p dependency.
func HashRecord(signingPayload []byte) types.HashValue {
	return blake2b.Sum256(signingPayload)
}

// HashEpochGenesis computes the genesis QuorumCertificateHash of an
// epoch: hash(epoch_id), domain-separated (spec ยง3).
func HashEpochGenesis(epoch types.EpochId) types.HashValue {
	buf := make([]byte, len("vantage.epoch-genesis.v1")+8)
	n := copy(buf, "vantage.epoch-genesis.v1")
	for i := 0; i < 8; i++ {
		buf[n+i] = byte(epoch >> (8 * i))
	}
	return HashRecord(buf)
}
