package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"go.uber.org/zap"

	"github.com/vantage-chain/core/internal/types"
)

// NodeHandler is the subset of node.Node's surface the transport needs to
// hand inbound records and data-sync messages to, and to build outbound
// ones from. Declared here rather than imported so p2p never depends on
// node (node already depends on p2p for the wire types); node.Node
// satisfies this interface structurally.
type NodeHandler interface {
	InsertRecord(record any) error
	BuildNotification() *Notification
	HandleNotification(remote *Notification) (*Request, bool)
	HandleRequest(req *Request) *Response
	HandleResponse(resp *Response, now types.NodeTime) error
}

// P2PTransport bridges GossipSub to a Node: records (blocks, votes, QCs,
// timeouts) are broadcast on the consensus topic, and data-sync messages
// (notifications, requests, responses) on the sync topic.
type P2PTransport struct {
	host    *Host
	handler NodeHandler
	metrics *Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewP2PTransport creates a transport that dispatches decoded gossip
// messages into handler.
func NewP2PTransport(host *Host, handler NodeHandler, logger *zap.Logger) *P2PTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := host.metrics
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &P2PTransport{
		host:    host,
		handler: handler,
		metrics: metrics,
		logger:  logger,
	}
}

// BroadcastRecord publishes a block, vote, quorum certificate or timeout to
// the consensus topic.
func (t *P2PTransport) BroadcastRecord(ctx context.Context, record any) error {
	data, err := EncodeMessage(record)
	if err != nil {
		return err
	}
	t.metrics.MessagesSent.WithLabelValues(recordLabel(record)).Inc()
	return t.host.gossip.Publish(ctx, TopicConsensus, data)
}

// BroadcastNotification publishes a Notification to the sync topic.
func (t *P2PTransport) BroadcastNotification(ctx context.Context, n *Notification) error {
	data, err := EncodeNotification(n)
	if err != nil {
		return err
	}
	t.metrics.MessagesSent.WithLabelValues("notification").Inc()
	return t.host.gossip.Publish(ctx, TopicSync, data)
}

// BroadcastRequest publishes a Request to the sync topic.
func (t *P2PTransport) BroadcastRequest(ctx context.Context, r *Request) error {
	data, err := EncodeRequest(r)
	if err != nil {
		return err
	}
	t.metrics.MessagesSent.WithLabelValues("request").Inc()
	return t.host.gossip.Publish(ctx, TopicSync, data)
}

// BroadcastResponse publishes a Response to the sync topic.
func (t *P2PTransport) BroadcastResponse(ctx context.Context, r *Response) error {
	data, err := EncodeResponse(r)
	if err != nil {
		return err
	}
	t.metrics.MessagesSent.WithLabelValues("response").Inc()
	return t.host.gossip.Publish(ctx, TopicSync, data)
}

// Start joins the sync topic and begins reading from both the consensus
// and sync subscriptions, dispatching decoded messages into the handler.
func (t *P2PTransport) Start(ctx context.Context) error {
	if _, err := t.host.gossip.JoinTopic(TopicSync); err != nil {
		return fmt.Errorf("p2p: join sync topic: %w", err)
	}

	consensusSub, err := t.host.gossip.Subscribe(TopicConsensus)
	if err != nil {
		return fmt.Errorf("p2p: subscribe consensus topic: %w", err)
	}
	syncSub, err := t.host.gossip.Subscribe(TopicSync)
	if err != nil {
		return fmt.Errorf("p2p: subscribe sync topic: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		t.readLoop(ctx, consensusSub)
	}()
	go func() {
		defer t.wg.Done()
		t.readLoop(ctx, syncSub)
	}()

	return nil
}

// Stop shuts down both transport read loops.
func (t *P2PTransport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

func (t *P2PTransport) readLoop(ctx context.Context, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("gossip subscription error", zap.Error(err))
			return
		}

		if msg.ReceivedFrom == t.host.ID() {
			continue
		}

		t.handleMessage(ctx, msg.Data)
	}
}

func (t *P2PTransport) handleMessage(ctx context.Context, data []byte) {
	msgType, decoded, err := DecodeMessage(data)
	if err != nil {
		t.metrics.MessagesRejected.WithLabelValues("decode_error").Inc()
		t.logger.Debug("failed to decode message", zap.Error(err))
		return
	}

	switch msgType {
	case MsgBlock, MsgVote, MsgQC, MsgTimeout:
		t.metrics.MessagesReceived.WithLabelValues(msgType.String()).Inc()
		if err := t.handler.InsertRecord(decoded); err != nil {
			t.metrics.MessagesRejected.WithLabelValues(msgType.String()).Inc()
			t.logger.Debug("record rejected", zap.String("type", msgType.String()), zap.Error(err))
		}

	case MsgNotification:
		t.metrics.MessagesReceived.WithLabelValues("notification").Inc()
		n := decoded.(*Notification)
		if req, should := t.handler.HandleNotification(n); should {
			if err := t.BroadcastRequest(ctx, req); err != nil {
				t.logger.Warn("broadcast request failed", zap.Error(err))
			}
		}

	case MsgRequest:
		t.metrics.MessagesReceived.WithLabelValues("request").Inc()
		req := decoded.(*Request)
		resp := t.handler.HandleRequest(req)
		if err := t.BroadcastResponse(ctx, resp); err != nil {
			t.logger.Warn("broadcast response failed", zap.Error(err))
		}

	case MsgResponse:
		t.metrics.MessagesReceived.WithLabelValues("response").Inc()
		resp := decoded.(*Response)
		if err := t.handler.HandleResponse(resp, types.NodeTime(time.Now().UnixMilli())); err != nil {
			t.logger.Warn("apply response failed", zap.Error(err))
		}
	}
}

func recordLabel(record any) string {
	switch record.(type) {
	case *types.Block:
		return "block"
	case *types.Vote:
		return "vote"
	case *types.QuorumCertificate:
		return "quorum_certificate"
	case *types.Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}
