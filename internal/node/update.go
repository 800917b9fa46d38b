package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-chain/core/internal/app"
	"github.com/vantage-chain/core/internal/pacemaker"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// NodeUpdateActions summarizes what one UpdateNode call did and what
// network effects the caller (the transport layer) should carry out
// (spec §4.4.1, "Outputs").
type NodeUpdateActions struct {
	Proposed  *types.Block
	Voted     *types.Vote
	FormedQC  *types.QuorumCertificate
	TimedOut  *types.Timeout
	Committed []recordstore.CommittedState

	ShouldSend          []types.Author
	ShouldBroadcast     bool
	ShouldQueryAll      bool
	NextScheduledUpdate types.NodeTime
}

// UpdateNode runs the six-step update spec §4.4.1 describes: advance the
// Pacemaker, cast a vote if safe, check for a new quorum certificate,
// process any commits the 3-chain rule has delivered (including an
// epoch change), fold in the Commit Tracker's query-all cadence, and
// return the resulting actions.
func (n *Node) UpdateNode(ctx context.Context, now types.NodeTime) (*NodeUpdateActions, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	actions := &NodeUpdateActions{NextScheduledUpdate: types.NeverTime}

	// Step 1: Pacemaker.
	pmActions := n.pacemaker.Update(n.current, n.self, now)
	actions.ShouldSend = append(actions.ShouldSend, pmActions.ShouldSend...)
	if pmActions.ShouldProposeBlock != nil {
		block, err := n.proposeBlockLocked(ctx, now)
		if err != nil {
			n.logger.Warn("propose block failed", zap.Error(err))
		} else if block != nil {
			actions.Proposed = block
		}
	}
	if pmActions.ShouldCreateTimeout != nil {
		timeout, err := n.current.CreateTimeout(n.self)
		if err != nil {
			n.logger.Warn("create timeout failed", zap.Error(err))
		} else {
			actions.TimedOut = timeout
			if *pmActions.ShouldCreateTimeout > n.latestVotedRound {
				n.latestVotedRound = *pmActions.ShouldCreateTimeout
			}
		}
	}

	// Step 2: vote, subject to the voting-safety constraints.
	vote, voteRecipient, err := n.maybeVoteLocked(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("node: vote: %w", err)
	}
	if vote != nil {
		actions.Voted = vote
		actions.ShouldSend = append(actions.ShouldSend, voteRecipient)
	}

	// Step 3: check for a new quorum certificate.
	qc, err := n.current.CheckForNewQuorumCertificate(n.self)
	if err != nil {
		n.logger.Warn("check for new quorum certificate failed", zap.Error(err))
	} else if qc != nil {
		actions.FormedQC = qc
	}

	// Step 4: process commits, including an epoch change.
	committed, err := n.processCommitsLocked()
	if err != nil {
		return nil, fmt.Errorf("node: process commits: %w", err)
	}
	actions.Committed = committed

	if actions.Proposed != nil || actions.Voted != nil || actions.FormedQC != nil || actions.TimedOut != nil {
		actions.ShouldBroadcast = true
	}

	// Step 5: Commit Tracker query-all cadence.
	ctActions := n.tracker.Update(n.current, now, n.latestQueryAllTime)
	if ctActions.ShouldQueryAll {
		actions.ShouldQueryAll = true
		n.latestQueryAllTime = now
	}
	if pmActions.ShouldQueryAll {
		actions.ShouldQueryAll = true
		n.latestQueryAllTime = now
	}

	// Step 6: aggregate the next scheduled wakeup.
	actions.NextScheduledUpdate = pmActions.NextScheduledUpdate.Min(ctActions.NextScheduledUpdate)

	if err := n.persistSafetyStateLocked(); err != nil {
		n.logger.Warn("persist safety state failed", zap.Error(err))
	}

	return actions, nil
}

// proposeBlockLocked fetches the next command from the application and
// proposes a block extending the highest known quorum certificate.
// Callers must hold n.mu.
func (n *Node) proposeBlockLocked(ctx context.Context, now types.NodeTime) (*types.Block, error) {
	command, ok, err := n.appl.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if !ok {
		command = nil
	}
	return n.current.ProposeBlock(command, now, n.self)
}

// maybeVoteLocked casts a vote for the current round's proposed block if
// one exists, this replica has not already voted this round, and the
// voting-safety constraints (latest_voted_round, locked_round) allow it
// (spec §4.4.1). Callers must hold n.mu.
func (n *Node) maybeVoteLocked(ctx context.Context, now types.NodeTime) (*types.Vote, types.Author, error) {
	blockHash, ok := n.current.CurrentProposedBlock()
	if !ok || n.current.HasVoted(n.self) {
		return nil, types.Author{}, nil
	}
	block, ok := n.current.GetBlock(blockHash)
	if !ok {
		return nil, types.Author{}, nil
	}
	if block.Round <= n.latestVotedRound {
		return nil, types.Author{}, nil
	}

	prev, hasPrev := n.current.PreviousRound(blockHash)
	if hasPrev && prev < n.lockedRound {
		return nil, types.Author{}, nil
	}

	baseState := n.current.InitialState()
	var previousAuthor *types.Author
	var previousVoters []types.Author
	if parentQC, ok := n.current.GetQC(block.PreviousQCHash); ok {
		baseState = parentQC.State
		author := parentQC.Author
		previousAuthor = &author
		for _, vs := range parentQC.Votes {
			previousVoters = append(previousVoters, vs.Author)
		}
	}

	state, err := n.appl.Compute(ctx, baseState, block.Command, now, previousAuthor, previousVoters)
	if err != nil {
		if errors.Is(err, app.ErrRejected) {
			n.logger.Debug("application rejected command, withholding vote", zap.Uint64("round", uint64(block.Round)))
			return nil, types.Author{}, nil
		}
		return nil, types.Author{}, fmt.Errorf("compute: %w", err)
	}

	vote, err := n.current.CreateVote(blockHash, state, n.self)
	if err != nil {
		return nil, types.Author{}, fmt.Errorf("create vote: %w", err)
	}

	n.latestVotedRound = block.Round
	if secondPrev, ok := n.current.SecondPreviousRound(blockHash); ok && secondPrev > n.lockedRound {
		n.lockedRound = secondPrev
	}
	return vote, block.Author, nil
}

// processCommitsLocked delivers every newly committed state to the
// application in increasing-round order, attaching the commit
// certificate only to the topmost delivery, and advances to a new
// epoch's Record Store when the application's epoch oracle reports a
// change (spec §4.4.1 process_commits). Callers must hold n.mu.
func (n *Node) processCommitsLocked() ([]recordstore.CommittedState, error) {
	commits := n.current.CommittedStatesAfter(n.lastCommittedRound)
	if len(commits) == 0 {
		return nil, nil
	}

	startEpoch := n.current.EpochID()
	delivered := make([]recordstore.CommittedState, 0, len(commits))
	for i, c := range commits {
		var certificate *types.QuorumCertificate
		if i == len(commits)-1 {
			if h, ok := n.current.HighestCommitCertificateHash(); ok {
				certificate, _ = n.current.GetQC(h)
			}
		}
		if err := n.appl.Commit(c.State, certificate); err != nil {
			return nil, fmt.Errorf("commit round %d: %w", c.Round, err)
		}
		n.lastCommittedRound = c.Round
		delivered = append(delivered, c)

		newEpoch, err := n.appl.ReadEpochID(c.State)
		if err != nil {
			return delivered, fmt.Errorf("read epoch id: %w", err)
		}
		if newEpoch == startEpoch {
			continue
		}

		newConfiguration, err := n.appl.Configuration(c.State)
		if err != nil {
			return delivered, fmt.Errorf("read configuration: %w", err)
		}

		n.pastRecordStores[startEpoch] = n.current
		next := recordstore.New(newEpoch, newConfiguration, c.State, n.cap)
		current := next
		current.SetLeaderFunc(func(round types.Round) types.Author {
			return pacemaker.ElectLeader(round, current.Configuration())
		})
		n.current = current
		n.lastCommittedRound = 0
		n.latestVotedRound = 0
		n.lockedRound = 0

		n.logger.Info("epoch advanced", zap.Uint64("new_epoch", uint64(newEpoch)))
		// Stop delivering further commits from the old epoch's chain; the
		// next update resumes against the new Record Store (spec §4.4.1).
		return delivered, nil
	}

	return delivered, nil
}

// runLoop drives UpdateNode from a wall-clock source until ctx is
// cancelled (spec §4.4.1, "driven by a clock source").
func (n *Node) runLoop(ctx context.Context) {
	defer n.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := types.NodeTime(time.Now().UnixMilli())
		actions, err := n.UpdateNode(ctx, now)
		if err != nil {
			n.logger.Error("update node failed", zap.Error(err))
			timer.Reset(200 * time.Millisecond)
			continue
		}

		next := actions.NextScheduledUpdate
		var wait time.Duration
		if next == types.NeverTime {
			wait = time.Second
		} else {
			wait = time.Duration(int64(next)-time.Now().UnixMilli()) * time.Millisecond
			if wait < 0 {
				wait = 0
			}
			if wait > time.Second {
				wait = time.Second
			}
		}
		timer.Reset(wait)
	}
}
