package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/filestore"
	"github.com/italolelis/aax_downloader/internal/logctx"
	"github.com/italolelis/aax_downloader/internal/storage"
)

var (
	// ErrInProgress is returned when another attempt already holds the item.
	ErrInProgress = errors.New("acquisition already in progress")
	// ErrAlreadyPresent is returned when storage already holds an artifact for the item.
	ErrAlreadyPresent = errors.New("item already acquired")
)

// Acquirer runs a single acquisition attempt.
type Acquirer interface {
	Acquire(ctx context.Context, item acquisition.ContentItemRef) (acquisition.FinalPaths, error)
	NeedsAcquisition(item acquisition.ContentItemRef) (bool, error)
}

// Result is what the coordinator reports for one requested item. Skipped is set when the item
// was not attempted because storage already had it; Outcome is then empty.
type Result struct {
	ItemID  string               `json:"item_id"`
	Skipped bool                 `json:"skipped,omitempty"`
	Outcome *acquisition.Outcome `json:"outcome,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// Coordinator guards acquisition attempts with the ledger: an item is attempted by at most one
// caller at a time, and every attempt's terminal state is recorded.
type Coordinator struct {
	acquirer    Acquirer
	repo        storage.AcquisitionWriteRepository
	instanceID  string
	maxParallel int

	mu     sync.Mutex
	active map[string]struct{}
}

func New(acquirer Acquirer, repo storage.AcquisitionWriteRepository, instanceID string, maxParallel int) *Coordinator {
	if maxParallel < 1 {
		maxParallel = 1
	}

	return &Coordinator{
		acquirer:    acquirer,
		repo:        repo,
		instanceID:  instanceID,
		maxParallel: maxParallel,
		active:      make(map[string]struct{}),
	}
}

// Recover releases claims left behind by a previous process that stopped mid-attempt.
func (c *Coordinator) Recover(ctx context.Context) error {
	released, err := c.repo.ReleaseStaleClaims(ctx, time.Now())
	if err != nil {
		return err
	}

	if released > 0 {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "released abandoned acquisition claims", "count", released)
	}

	return nil
}

// Acquire runs one attempt for item. Unless force is set, items already in storage are skipped with
// ErrAlreadyPresent. A failed attempt is not an error here: it is reported in the returned Outcome.
func (c *Coordinator) Acquire(ctx context.Context, item acquisition.ContentItemRef, force bool) (acquisition.Outcome, error) {
	ctx, logger := logctx.With(ctx, "item_id", item.ID)

	if !force {
		needed, err := c.acquirer.NeedsAcquisition(item)
		if err != nil {
			return acquisition.Outcome{}, fmt.Errorf("failed to check storage: %w", err)
		}

		if !needed {
			logger.DebugContext(ctx, "skipping item because it's already in storage")

			return acquisition.Outcome{}, ErrAlreadyPresent
		}
	}

	claimed, err := c.repo.ClaimItem(ctx, item.ID, item.Title, c.instanceID)
	if err != nil {
		return acquisition.Outcome{}, fmt.Errorf("failed to claim item: %w", err)
	}

	if !claimed {
		logger.DebugContext(ctx, "skipping item because it's already claimed")

		return acquisition.Outcome{}, ErrInProgress
	}

	c.track(item.ID)
	defer c.untrack(item.ID)

	paths, err := c.attempt(ctx, item)
	outcome := acquisition.NewOutcome(item.ID, paths, err)

	// The claim must be released even if the caller went away.
	recordCtx := context.WithoutCancel(ctx)
	if err := c.repo.RecordResult(recordCtx, item.ID, resultOf(outcome)); err != nil {
		logger.ErrorContext(ctx, "failed to record acquisition result", "err", err)
	}

	return outcome, nil
}

// AcquireBatch attempts every item with at most maxParallel attempts running at once.
// Results are returned in input order.
func (c *Coordinator) AcquireBatch(ctx context.Context, items []acquisition.ContentItemRef, force bool) []Result {
	logger := logctx.LoggerFromContext(ctx)
	results := make([]Result, len(items))

	var g errgroup.Group

	g.SetLimit(c.maxParallel)

	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "acquisition panic",
						"item_id", item.ID,
						"panic", r,
						"stack", string(debug.Stack()))

					results[i] = Result{ItemID: item.ID, Error: fmt.Sprintf("panic: %v", r)}
				}
			}()

			results[i] = c.result(ctx, item, force)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// attempt runs the acquirer and turns a panic into an error, so the claim taken for the item is
// always released by recording a result.
func (c *Coordinator) attempt(ctx context.Context, item acquisition.ContentItemRef) (paths acquisition.FinalPaths, err error) {
	defer func() {
		if r := recover(); r != nil {
			logctx.LoggerFromContext(ctx).ErrorContext(ctx, "acquisition panic",
				"panic", r,
				"stack", string(debug.Stack()))

			paths, err = acquisition.FinalPaths{}, fmt.Errorf("acquisition panic: %v", r)
		}
	}()

	return c.acquirer.Acquire(ctx, item)
}

func (c *Coordinator) result(ctx context.Context, item acquisition.ContentItemRef, force bool) Result {
	outcome, err := c.Acquire(ctx, item, force)

	switch {
	case errors.Is(err, ErrAlreadyPresent):
		return Result{ItemID: item.ID, Skipped: true}
	case err != nil:
		return Result{ItemID: item.ID, Error: err.Error()}
	}

	return Result{ItemID: item.ID, Outcome: &outcome}
}

// InUse reports whether path belongs to an attempt currently running in this process.
// The staging sweeper uses it to leave live downloads alone.
func (c *Coordinator) InUse(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.active {
		if filestore.HasIDTag(path, id) {
			return true
		}
	}

	return false
}

func (c *Coordinator) track(id string) {
	c.mu.Lock()
	c.active[id] = struct{}{}
	c.mu.Unlock()
}

func (c *Coordinator) untrack(id string) {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
}

func resultOf(o acquisition.Outcome) storage.Result {
	if o.Status == acquisition.StatusCompleted {
		return storage.Result{Status: storage.StatusCompleted, FinalPath: o.Paths.Content}
	}

	return storage.Result{
		Status:      storage.StatusFailed,
		FailureKind: string(o.Failure.Kind),
		Reason:      o.Failure.Reason,
	}
}
