// Package app is the application/context interface spec ยง6 describes:
// the boundary the consensus core calls through to fetch commands,
// compute state transitions, and deliver or discard results. The core
// never reaches into application state directly.
//
// Grounded on the teacher's internal/execution (Sandbox, the WASM/native
// executor split) and internal/mempool (Mempool, as the fetch() source),
// adapted from block-of-transactions execution to the single-opaque-
// Command-per-block model spec ยง3 describes.
package app

import (
	"context"
	"errors"

	"github.com/vantage-chain/core/internal/types"
)

// ErrRejected is returned by Compute when the application refuses to
// execute a command; the Node treats this as a silent non-vote (spec
// ยง7 "Application computation failure"), never an error it propagates.
var ErrRejected = errors.New("app: command rejected")

// Application is the context interface the consensus core depends on
// (spec ยง6).
type Application interface {
	// Fetch supplies the next command to propose, or ok=false if none is
	// ready.
	Fetch(ctx context.Context) (command []byte, ok bool, err error)

	// Compute executes command on top of baseState, returning the
	// resulting state. previousAuthor and previousVoters describe the
	// block being extended, for applications that reward or account for
	// participation. Returning ErrRejected is a silent rejection, not a
	// fatal error.
	Compute(ctx context.Context, baseState types.HashValue, command []byte, now types.NodeTime, previousAuthor *types.Author, previousVoters []types.Author) (types.HashValue, error)

	// Commit delivers a committed state to the application.
	// commitCertificate is set only for the topmost commit in a batch
	// (spec ยง4.4.1 process_commits).
	Commit(state types.HashValue, commitCertificate *types.QuorumCertificate) error

	// Discard abandons a state that will never be committed (e.g. an
	// orphaned fork).
	Discard(state types.HashValue) error

	// ReadEpochID returns the epoch a given committed state belongs to.
	ReadEpochID(state types.HashValue) (types.EpochId, error)

	// Configuration returns the voting-rights snapshot in force as of
	// state (spec ยง6 epoch oracle).
	Configuration(state types.HashValue) (*types.Configuration, error)

	// LastCommittedState returns the most recently committed state known
	// to the application, used to seed a Record Store at startup.
	LastCommittedState() types.HashValue
}
