package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/types"
)

// --- Test helpers ---

func makeTestAuthor(t *testing.T) (types.Author, crypto.PrivateKey) {
	t.Helper()
	pub, priv, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return crypto.AuthorFromPubKey(pub), priv
}

func makeTestBlock(t *testing.T) *types.Block {
	t.Helper()
	author, priv := makeTestAuthor(t)
	b := &types.Block{
		Command: []byte("tx1"),
		Time:    types.NodeTime(time.Now().UnixMilli()),
		Round:   1,
		Author:  author,
	}
	sig := crypto.Sign(priv, b.SigningPayload())
	b.Signature = crypto.SigTo64(sig)
	return b
}

func makeTestVote(t *testing.T) *types.Vote {
	t.Helper()
	author, priv := makeTestAuthor(t)
	v := &types.Vote{
		Round:  1,
		State:  types.HashValue{1, 2, 3},
		Author: author,
	}
	sig := crypto.Sign(priv, v.SigningPayload())
	v.Signature = crypto.SigTo64(sig)
	return v
}

func makeTestTimeout(t *testing.T) *types.Timeout {
	t.Helper()
	author, priv := makeTestAuthor(t)
	to := &types.Timeout{
		Round:  1,
		Author: author,
	}
	sig := crypto.Sign(priv, to.SigningPayload())
	to.Signature = crypto.SigTo64(sig)
	return to
}

func makeTestHost(t *testing.T, port int) host.Host {
	t.Helper()
	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		t.Fatalf("generate libp2p key: %v", err)
	}
	addr, _ := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", port))
	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrs(addr),
	)
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// recordingHandler is a NodeHandler test double that records every call
// it receives instead of driving real consensus state.
type recordingHandler struct {
	mu        sync.Mutex
	inserted  []any
	responded *Response
}

func (h *recordingHandler) InsertRecord(record any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inserted = append(h.inserted, record)
	return nil
}

func (h *recordingHandler) BuildNotification() *Notification { return &Notification{} }

func (h *recordingHandler) HandleNotification(remote *Notification) (*Request, bool) {
	return nil, false
}

func (h *recordingHandler) HandleRequest(req *Request) *Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &Response{CurrentEpoch: req.CurrentEpoch}
}

func (h *recordingHandler) HandleResponse(resp *Response, now types.NodeTime) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responded = resp
	return nil
}

func (h *recordingHandler) insertedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inserted)
}

// --- Protocol tests ---

func TestEncodeDecodeBlockRoundTrip(t *testing.T) {
	block := makeTestBlock(t)

	data, err := EncodeBlock(block)
	if err != nil {
		t.Fatalf("encode block: %v", err)
	}
	if data[0] != byte(MsgBlock) {
		t.Fatalf("expected type byte 0x%02x, got 0x%02x", MsgBlock, data[0])
	}

	msgType, decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msgType != MsgBlock {
		t.Fatalf("expected MsgBlock, got %v", msgType)
	}

	b := decoded.(*types.Block)
	if b.Round != block.Round {
		t.Fatalf("round mismatch: got %d, want %d", b.Round, block.Round)
	}
	if b.Author != block.Author {
		t.Fatal("author mismatch")
	}
	if b.Signature != block.Signature {
		t.Fatal("signature mismatch")
	}
}

func TestEncodeDecodeVoteRoundTrip(t *testing.T) {
	vote := makeTestVote(t)

	data, err := EncodeVote(vote)
	if err != nil {
		t.Fatalf("encode vote: %v", err)
	}
	if data[0] != byte(MsgVote) {
		t.Fatalf("expected type byte 0x%02x, got 0x%02x", MsgVote, data[0])
	}

	msgType, decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msgType != MsgVote {
		t.Fatalf("expected MsgVote, got %v", msgType)
	}

	v := decoded.(*types.Vote)
	if v.Round != vote.Round {
		t.Fatalf("round mismatch: got %d, want %d", v.Round, vote.Round)
	}
	if v.Author != vote.Author {
		t.Fatal("author mismatch")
	}
	if v.Signature != vote.Signature {
		t.Fatal("signature mismatch")
	}
}

func TestEncodeDecodeTimeoutRoundTrip(t *testing.T) {
	to := makeTestTimeout(t)

	data, err := EncodeTimeout(to)
	if err != nil {
		t.Fatalf("encode timeout: %v", err)
	}
	if data[0] != byte(MsgTimeout) {
		t.Fatalf("expected type byte 0x%02x, got 0x%02x", MsgTimeout, data[0])
	}

	msgType, decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msgType != MsgTimeout {
		t.Fatalf("expected MsgTimeout, got %v", msgType)
	}

	to2 := decoded.(*types.Timeout)
	if to2.Round != to.Round {
		t.Fatalf("round mismatch: got %d, want %d", to2.Round, to.Round)
	}
	if to2.Author != to.Author {
		t.Fatal("author mismatch")
	}
}

func TestEncodeDecodeNotificationRoundTrip(t *testing.T) {
	author, _ := makeTestAuthor(t)
	n := &Notification{
		Author:       author,
		CurrentEpoch: 3,
		Timeouts:     []*types.Timeout{makeTestTimeout(t)},
	}

	data, err := EncodeNotification(n)
	if err != nil {
		t.Fatalf("encode notification: %v", err)
	}

	msgType, decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msgType != MsgNotification {
		t.Fatalf("expected MsgNotification, got %v", msgType)
	}
	n2 := decoded.(*Notification)
	if n2.CurrentEpoch != n.CurrentEpoch {
		t.Fatalf("epoch mismatch: got %d, want %d", n2.CurrentEpoch, n.CurrentEpoch)
	}
	if len(n2.Timeouts) != 1 {
		t.Fatalf("expected 1 timeout, got %d", len(n2.Timeouts))
	}
}

func TestEncodeDecodeRequestResponseRoundTrip(t *testing.T) {
	author, _ := makeTestAuthor(t)
	req := &Request{Author: author, CurrentEpoch: 2, KnownQCRounds: []types.Round{8, 4, 2, 1}}

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	msgType, decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msgType != MsgRequest {
		t.Fatalf("expected MsgRequest, got %v", msgType)
	}
	req2 := decoded.(*Request)
	if len(req2.KnownQCRounds) != 4 {
		t.Fatalf("known qc rounds mismatch: got %v", req2.KnownQCRounds)
	}

	resp := &Response{CurrentEpoch: 2, Batches: []EpochBatch{{EpochID: 2, Blocks: []*types.Block{makeTestBlock(t)}}}}
	data, err = EncodeResponse(resp)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	msgType, decoded, err = DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msgType != MsgResponse {
		t.Fatalf("expected MsgResponse, got %v", msgType)
	}
	resp2 := decoded.(*Response)
	if len(resp2.Batches) != 1 || len(resp2.Batches[0].Blocks) != 1 {
		t.Fatalf("response batches mismatch: %+v", resp2.Batches)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	data := []byte{0xFF, 0x01, 0x02, 0x03}
	_, _, err := DecodeMessage(data)
	if err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	_, _, err := DecodeMessage(nil)
	if err == nil {
		t.Fatal("expected error for nil data")
	}
	_, _, err = DecodeMessage([]byte{})
	if err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestDecodeRejectsOversize(t *testing.T) {
	data := make([]byte, MaxMessageSize+1)
	data[0] = byte(MsgVote)
	_, _, err := DecodeMessage(data)
	if err == nil {
		t.Fatal("expected error for oversize message")
	}
}

// --- Scoring tests ---

func TestScoringValidMessage(t *testing.T) {
	ps := NewPeerScoring()
	pid := peer.ID("test-peer")

	ps.RecordValidMessage(pid)
	ps.RecordValidMessage(pid)

	score := ps.Score(pid)
	if score != 2.0 {
		t.Fatalf("expected score 2.0, got %f", score)
	}
}

func TestScoringInvalidMessage(t *testing.T) {
	ps := NewPeerScoring()
	pid := peer.ID("test-peer")

	ps.RecordInvalidMessage(pid, "bad data")

	score := ps.Score(pid)
	if score != -10.0 {
		t.Fatalf("expected score -10.0, got %f", score)
	}
}

func TestScoringAutoBan(t *testing.T) {
	ps := NewPeerScoring()
	pid := peer.ID("test-peer")

	for range 10 {
		ps.RecordInvalidMessage(pid, "spam")
	}

	if !ps.IsBanned(pid) {
		t.Fatal("expected peer to be auto-banned at -100 score")
	}
}

func TestScoringBanExpiry(t *testing.T) {
	ps := NewPeerScoring()
	pid := peer.ID("test-peer")

	ps.Ban(pid, "test", 1*time.Millisecond)
	if !ps.IsBanned(pid) {
		t.Fatal("expected peer to be banned")
	}

	time.Sleep(5 * time.Millisecond)
	if ps.IsBanned(pid) {
		t.Fatal("expected ban to have expired")
	}

	removed := ps.CleanupExpiredBans()
	if removed != 1 {
		t.Fatalf("expected 1 expired ban removed, got %d", removed)
	}
}

func TestScoringUnban(t *testing.T) {
	ps := NewPeerScoring()
	pid := peer.ID("test-peer")

	ps.Ban(pid, "test", 1*time.Hour)
	if !ps.IsBanned(pid) {
		t.Fatal("expected peer to be banned")
	}

	ps.Unban(pid)
	if ps.IsBanned(pid) {
		t.Fatal("expected peer to be unbanned")
	}

	if score := ps.Score(pid); score != 0 {
		t.Fatalf("expected score 0 after unban, got %f", score)
	}
}

// --- Rate limiter tests ---

func TestRateLimiterAllows(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimitConfig())
	pid := peer.ID("test-peer")

	if !rl.Allow(pid, MsgVote) {
		t.Fatal("expected first vote to be allowed")
	}
}

func TestRateLimiterBlocks(t *testing.T) {
	cfg := RateLimitConfig{
		ProposalRate:    1,
		VoteRate:        1,
		TimeoutRate:     1,
		GlobalRate:      2,
		BurstMultiplier: 1,
	}
	rl := NewRateLimiter(cfg)
	pid := peer.ID("test-peer")

	if !rl.Allow(pid, MsgVote) {
		t.Fatal("first vote should be allowed")
	}
	if rl.Allow(pid, MsgVote) {
		t.Fatal("second immediate vote should be blocked")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	cfg := RateLimitConfig{
		ProposalRate:    100,
		VoteRate:        100,
		TimeoutRate:     100,
		GlobalRate:      200,
		BurstMultiplier: 0.01,
	}
	rl := NewRateLimiter(cfg)
	pid := peer.ID("test-peer")

	rl.Allow(pid, MsgVote)
	time.Sleep(20 * time.Millisecond)

	if !rl.Allow(pid, MsgVote) {
		t.Fatal("expected vote to be allowed after refill")
	}
}

func TestRateLimiterPerType(t *testing.T) {
	cfg := RateLimitConfig{
		ProposalRate:    1,
		VoteRate:        1,
		TimeoutRate:     1,
		GlobalRate:      100,
		BurstMultiplier: 1,
	}
	rl := NewRateLimiter(cfg)
	pid := peer.ID("test-peer")

	rl.Allow(pid, MsgBlock)

	if rl.Allow(pid, MsgBlock) {
		t.Fatal("second block should be blocked")
	}
	if !rl.Allow(pid, MsgVote) {
		t.Fatal("vote should be allowed (separate bucket)")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimitConfig())
	pid := peer.ID("old-peer")
	rl.Allow(pid, MsgVote)

	removed := rl.Cleanup(0)
	if removed != 1 {
		t.Fatalf("expected 1 stale peer removed, got %d", removed)
	}
}

// --- Peer manager tests ---

func TestPeerManagerAddRemove(t *testing.T) {
	pm := NewPeerManager(10, NewPeerScoring())

	pid := peer.ID("test-peer-1")
	pm.AddPeer(&PeerInfo{ID: pid, Direction: Inbound})

	if pm.PeerCount() != 1 {
		t.Fatalf("expected 1 peer, got %d", pm.PeerCount())
	}

	peers := pm.ConnectedPeers()
	if len(peers) != 1 || peers[0] != pid {
		t.Fatal("ConnectedPeers mismatch")
	}

	pm.RemovePeer(pid)
	if pm.PeerCount() != 0 {
		t.Fatalf("expected 0 peers after remove, got %d", pm.PeerCount())
	}
}

func TestPeerManagerMaxPeers(t *testing.T) {
	pm := NewPeerManager(2, NewPeerScoring())

	pm.AddPeer(&PeerInfo{ID: peer.ID("p1"), Direction: Inbound})
	pm.AddPeer(&PeerInfo{ID: peer.ID("p2"), Direction: Inbound})

	if pm.ShouldAcceptConnection(peer.ID("p3"), network.DirInbound) {
		t.Fatal("should reject when at max peers")
	}
	if !pm.ShouldAcceptConnection(peer.ID("p1"), network.DirInbound) {
		t.Fatal("already connected peer should be accepted")
	}
}

func TestPeerManagerValidatorPriority(t *testing.T) {
	scoring := NewPeerScoring()
	pm := NewPeerManager(2, scoring)

	pm.AddPeer(&PeerInfo{ID: peer.ID("p1"), Direction: Inbound})
	pm.AddPeer(&PeerInfo{ID: peer.ID("p2"), Direction: Inbound, IsValidator: true})

	scoring.RecordInvalidMessage(peer.ID("p1"), "bad")

	worst := pm.EvictWorstPeer()
	if worst != peer.ID("p1") {
		t.Fatalf("expected p1 to be evicted (non-validator, low score), got %s", worst)
	}
}

func TestPeerManagerBannedRejected(t *testing.T) {
	scoring := NewPeerScoring()
	pm := NewPeerManager(10, scoring)

	pid := peer.ID("bad-peer")
	scoring.Ban(pid, "malicious", 1*time.Hour)

	if pm.ShouldAcceptConnection(pid, network.DirInbound) {
		t.Fatal("banned peer should be rejected")
	}
}

func TestPeerManagerMarkValidator(t *testing.T) {
	pm := NewPeerManager(10, NewPeerScoring())
	pid := peer.ID("validator-1")
	pm.AddPeer(&PeerInfo{ID: pid, Direction: Outbound})

	author, _ := makeTestAuthor(t)
	pm.MarkValidator(pid, author)

	info, ok := pm.GetPeer(pid)
	if !ok {
		t.Fatal("peer not found")
	}
	if !info.IsValidator {
		t.Fatal("expected peer to be marked as validator")
	}
	if info.AuthorID != author {
		t.Fatal("validator author mismatch")
	}
}

func TestPeerManagerOutboundCount(t *testing.T) {
	pm := NewPeerManager(10, NewPeerScoring())
	pm.AddPeer(&PeerInfo{ID: peer.ID("in1"), Direction: Inbound})
	pm.AddPeer(&PeerInfo{ID: peer.ID("out1"), Direction: Outbound})
	pm.AddPeer(&PeerInfo{ID: peer.ID("out2"), Direction: Outbound})

	if pm.OutboundCount() != 2 {
		t.Fatalf("expected 2 outbound, got %d", pm.OutboundCount())
	}
}

func TestScoringBannedCount(t *testing.T) {
	ps := NewPeerScoring()
	ps.Ban(peer.ID("p1"), "test", 1*time.Hour)
	ps.Ban(peer.ID("p2"), "test", 1*time.Hour)

	if ps.BannedCount() != 2 {
		t.Fatalf("expected 2 banned, got %d", ps.BannedCount())
	}
}

// --- Discovery tests ---

func TestParseSeedAddrs(t *testing.T) {
	priv, _, _ := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	pid, _ := peer.IDFromPrivateKey(priv)

	addrs := []string{
		fmt.Sprintf("/ip4/127.0.0.1/tcp/26656/p2p/%s", pid),
	}

	infos, err := ParseSeedAddrs(addrs)
	if err != nil {
		t.Fatalf("parse seed addrs: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 addr info, got %d", len(infos))
	}
	if infos[0].ID != pid {
		t.Fatal("peer ID mismatch")
	}
}

func TestParseSeedAddrsInvalid(t *testing.T) {
	_, err := ParseSeedAddrs([]string{"not-a-multiaddr"})
	if err == nil {
		t.Fatal("expected error for invalid multiaddr")
	}

	_, err = ParseSeedAddrs([]string{"/ip4/127.0.0.1/tcp/26656"})
	if err == nil {
		t.Fatal("expected error for multiaddr without p2p component")
	}
}

// --- MessageType String tests ---

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		mt   MessageType
		want string
	}{
		{MsgBlock, "block"},
		{MsgVote, "vote"},
		{MsgTimeout, "timeout"},
		{MsgNotification, "notification"},
		{MessageType(0xFF), "unknown(0xff)"},
	}
	for _, tt := range tests {
		if got := tt.mt.String(); got != tt.want {
			t.Errorf("MessageType(%d).String() = %q, want %q", tt.mt, got, tt.want)
		}
	}
}

// --- Envelope tests ---

func TestEnvelopeEncodeDecode(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	env := &Envelope{Type: MsgVote, Payload: payload}

	data := env.Encode()
	if len(data) != 4 {
		t.Fatalf("encoded length = %d, want 4", len(data))
	}
	if data[0] != byte(MsgVote) {
		t.Fatalf("type byte = 0x%02x, want 0x%02x", data[0], MsgVote)
	}

	decoded, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded.Type != MsgVote {
		t.Fatalf("decoded type = %v, want %v", decoded.Type, MsgVote)
	}
	if len(decoded.Payload) != 3 {
		t.Fatalf("decoded payload length = %d, want 3", len(decoded.Payload))
	}
}

// --- Integration tests ---

func TestHostStartStop(t *testing.T) {
	_, priv, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	ctx := context.Background()
	bh, err := NewHost(ctx, HostConfig{
		PrivateKey: priv,
		ListenAddr: "/ip4/127.0.0.1/tcp/0",
		MaxPeers:   10,
	})
	if err != nil {
		t.Fatalf("create host: %v", err)
	}

	if err := bh.Start(ctx); err != nil {
		t.Fatalf("start host: %v", err)
	}

	if bh.ID() == "" {
		t.Fatal("host should have a peer ID")
	}
	if len(bh.Addrs()) == 0 {
		t.Fatal("host should have listen addresses")
	}

	if err := bh.Stop(); err != nil {
		t.Fatalf("stop host: %v", err)
	}
}

func TestTwoNodeGossipRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, priv1, _ := crypto.GenerateKeypair()
	_, priv2, _ := crypto.GenerateKeypair()

	host1, err := NewHost(ctx, HostConfig{
		PrivateKey: priv1,
		ListenAddr: "/ip4/127.0.0.1/tcp/0",
		MaxPeers:   10,
	})
	if err != nil {
		t.Fatalf("create host1: %v", err)
	}

	host2, err := NewHost(ctx, HostConfig{
		PrivateKey: priv2,
		ListenAddr: "/ip4/127.0.0.1/tcp/0",
		MaxPeers:   10,
	})
	if err != nil {
		t.Fatalf("create host2: %v", err)
	}

	if err := host1.Start(ctx); err != nil {
		t.Fatalf("start host1: %v", err)
	}
	if err := host2.Start(ctx); err != nil {
		t.Fatalf("start host2: %v", err)
	}
	defer host1.Stop()
	defer host2.Stop()

	handler1 := &recordingHandler{}
	handler2 := &recordingHandler{}

	transport1 := NewP2PTransport(host1, handler1, nil)
	transport2 := NewP2PTransport(host2, handler2, nil)

	if err := transport1.Start(ctx); err != nil {
		t.Fatalf("start transport1: %v", err)
	}
	defer transport1.Stop()

	if err := transport2.Start(ctx); err != nil {
		t.Fatalf("start transport2: %v", err)
	}
	defer transport2.Stop()

	host1Info := peer.AddrInfo{
		ID:    host1.ID(),
		Addrs: host1.LibP2PHost().Addrs(),
	}
	if err := host2.LibP2PHost().Connect(ctx, host1Info); err != nil {
		t.Fatalf("connect host2 to host1: %v", err)
	}

	time.Sleep(3 * time.Second)

	block := makeTestBlock(t)
	if err := transport1.BroadcastRecord(ctx, block); err != nil {
		t.Fatalf("broadcast block: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for handler2.insertedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for block to arrive")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestMessageValidationRejectsOversize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env := &Envelope{Type: MsgVote, Payload: make([]byte, MaxMessageSize)}
	data := env.Encode()
	_, _, err := DecodeMessage(data)
	if err == nil {
		t.Fatal("expected oversize message to be rejected")
	}
	_ = ctx
}
