// Package sync implements the client's synchronization cycle: push local
// mutations and tombstones, then pull and merge remote changes, advancing
// the cursor only when the merge commits.
package sync

import (
	"context"
	"database/sql"
	stdsync "sync"
	"sync/atomic"

	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Transport is the backend surface the engine needs. *api.Client
// satisfies it.
type Transport interface {
	Push(ctx context.Context, req *wire.PushRequest) (*wire.PushResponse, error)
	Pull(ctx context.Context, since int64, kinds []wire.Kind) (*wire.PullResponse, error)
}

// Engine runs synchronization cycles. At most one cycle runs at a time;
// a concurrent SyncFull returns common.ErrSyncInFlight instead of queueing.
type Engine struct {
	db        *sql.DB
	transport Transport
	records   *store.Records
	tombs     *store.Tombstones
	meta      *store.Meta
	notifier  *store.Notifier
	logger    logging.Logger

	mu    stdsync.Mutex
	state atomic.Int32
}

// NewEngine wires an Engine over the local database and a transport.
func NewEngine(db *sql.DB, transport Transport, notifier *store.Notifier, logger logging.Logger) *Engine {
	return &Engine{
		db:        db,
		transport: transport,
		records:   store.NewRecords(db),
		tombs:     store.NewTombstones(db),
		meta:      store.NewMeta(db),
		notifier:  notifier,
		logger:    logger,
	}
}

// State returns the engine's current activity state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// SyncFull runs one push-then-pull cycle. A push failure does not abort the
// cycle: the pull still runs so the device keeps receiving remote changes
// while its own uploads are stuck; the result then has Success=false and
// PushErr set. The returned error is non-nil only when the pull itself
// failed or another cycle is already running; a pull failure still returns
// the partial result so the push outcome of the cycle is not lost.
func (e *Engine) SyncFull(ctx context.Context) (*Result, error) {
	return e.syncCycle(ctx, nil)
}

// SyncKinds runs a push-then-pull cycle whose pull is narrowed to the given
// entity kinds. The push still carries every dirty row; only the download is
// restricted, which keeps a partial refresh cheap without ever holding back
// local edits.
func (e *Engine) SyncKinds(ctx context.Context, kinds ...wire.Kind) (*Result, error) {
	return e.syncCycle(ctx, kinds)
}

func (e *Engine) syncCycle(ctx context.Context, kinds []wire.Kind) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, common.ErrSyncInFlight
	}
	defer e.mu.Unlock()
	defer e.setState(StateIdle)

	res := &Result{}

	e.setState(StatePushing)
	pushOutcome, pushErr := e.runPush(ctx)
	res.Push = pushOutcome
	res.PushErr = pushErr
	if pushErr != nil {
		e.logger.Warn(ctx, "push failed, pulling anyway", "error", pushErr.Error())
	}

	e.setState(StatePulling)
	pullOutcome, pullErr := e.runPull(ctx, kinds)
	res.Pull = pullOutcome
	if pullErr != nil {
		// Report the failure but still hand back the push outcome of the
		// same cycle; the deferred transition returns the engine to idle.
		e.setState(StateFailed)
		return res, pullErr
	}
	res.Success = pushErr == nil

	e.logger.Info(ctx, "sync cycle finished",
		"pushed", pushOutcome.Accepted,
		"conflicts", pushOutcome.Conflicts,
		"pulled", pullOutcome.Applied,
		"deleted", pullOutcome.Deleted,
		"cursor", pullOutcome.Cursor,
		"success", res.Success)
	return res, nil
}

// RetrySync flips every conflicted record back to the queue and runs a full
// cycle, so a user can retry after fixing whatever the server rejected.
func (e *Engine) RetrySync(ctx context.Context) (*Result, error) {
	for _, kind := range wire.Kinds {
		if err := e.records.RequeueConflicts(ctx, kind); err != nil {
			return nil, err
		}
	}
	return e.SyncFull(ctx)
}
