package recordstore

import (
	"testing"

	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/types"
)

func newTestStore(t *testing.T) (*Store, types.Author, *crypto.DeterministicCapability) {
	t.Helper()
	author := types.Author{0x01}
	cfg, err := types.NewConfiguration([]types.Peer{{Author: author, Weight: 1}})
	if err != nil {
		t.Fatalf("new configuration: %v", err)
	}
	cap := crypto.NewDeterministicCapability(author)
	return New(types.EpochId(1), cfg, types.HashValue{}, cap), author, cap
}

func stateAt(n byte) types.HashValue {
	var h types.HashValue
	h[0] = n
	return h
}

func TestThreeChainCommitFires(t *testing.T) {
	store, author, cap := newTestStore(t)

	b1, err := store.ProposeBlock([]byte("cmd1"), types.NodeTime(1000), author)
	if err != nil {
		t.Fatalf("propose b1: %v", err)
	}
	if _, err := store.CreateVote(blockHashOf(cap, b1), stateAt(1), author); err != nil {
		t.Fatalf("vote b1: %v", err)
	}
	qc1, err := store.CheckForNewQuorumCertificate(author)
	if err != nil || qc1 == nil {
		t.Fatalf("qc1: %v", err)
	}

	b2, err := store.ProposeBlock([]byte("cmd2"), types.NodeTime(2000), author)
	if err != nil {
		t.Fatalf("propose b2: %v", err)
	}
	if _, err := store.CreateVote(blockHashOf(cap, b2), stateAt(2), author); err != nil {
		t.Fatalf("vote b2: %v", err)
	}
	qc2, err := store.CheckForNewQuorumCertificate(author)
	if err != nil || qc2 == nil {
		t.Fatalf("qc2: %v", err)
	}

	b3, err := store.ProposeBlock([]byte("cmd3"), types.NodeTime(3000), author)
	if err != nil {
		t.Fatalf("propose b3: %v", err)
	}
	if _, err := store.CreateVote(blockHashOf(cap, b3), stateAt(3), author); err != nil {
		t.Fatalf("vote b3: %v", err)
	}
	if _, err := store.CheckForNewQuorumCertificate(author); err != nil {
		t.Fatalf("qc3: %v", err)
	}

	if got := store.HighestCommittedRound(); got != types.Round(1) {
		t.Fatalf("expected highest committed round 1, got %d", got)
	}
	states := store.CommittedStatesAfter(0)
	if len(states) != 1 || states[0].Round != 1 || states[0].State != stateAt(1) {
		t.Fatalf("unexpected committed states: %+v", states)
	}
	if _, ok := store.HighestCommitCertificateHash(); !ok {
		t.Fatalf("expected a commit certificate hash")
	}
}

func TestInsertVoteRejectsSecondVoteSameRound(t *testing.T) {
	store, author, cap := newTestStore(t)

	b1, err := store.ProposeBlock([]byte("cmd"), types.NodeTime(1000), author)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := store.CreateVote(blockHashOf(cap, b1), stateAt(1), author); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := store.CreateVote(blockHashOf(cap, b1), stateAt(1), author); err == nil {
		t.Fatalf("expected second vote at the same round to be rejected")
	}
}

func TestInsertBlockRejectsDuplicate(t *testing.T) {
	store, author, _ := newTestStore(t)

	b1, err := store.ProposeBlock([]byte("cmd"), types.NodeTime(1000), author)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := store.InsertBlock(b1); err == nil {
		t.Fatalf("expected duplicate block insertion to be rejected")
	}
}
