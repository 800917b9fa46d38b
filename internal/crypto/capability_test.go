package crypto

import (
	"testing"

	"github.com/vantage-chain/core/internal/types"
)

func TestDeterministicCapabilityRoundTrip(t *testing.T) {
	var author types.Author
	author[0] = 7

	cap := NewDeterministicCapability(author)
	hash := cap.Hash([]byte("payload"))
	sig := cap.Sign(hash)

	if !cap.Verify(author, hash, sig) {
		t.Fatal("expected signature to verify")
	}

	var other types.Author
	other[0] = 9
	if cap.Verify(other, hash, sig) {
		t.Fatal("signature should not verify for a different author")
	}
}

func TestEd25519CapabilityRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	author := AuthorFromPubKey(pub)

	cap := NewEd25519Capability(priv, map[types.Author]PublicKey{author: pub})
	hash := cap.Hash([]byte("payload"))
	sig := cap.Sign(hash)

	if !cap.Verify(author, hash, sig) {
		t.Fatal("expected signature to verify")
	}
	if cap.Author() != author {
		t.Fatalf("Author() = %s, want %s", cap.Author(), author)
	}
}

func TestHashRecordDeterministic(t *testing.T) {
	a := HashRecord([]byte("abc"))
	b := HashRecord([]byte("abc"))
	if a != b {
		t.Fatal("HashRecord should be deterministic")
	}
	c := HashRecord([]byte("abd"))
	if a == c {
		t.Fatal("different inputs should hash differently")
	}
}
