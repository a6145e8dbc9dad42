package buildstamp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Event names a host lifecycle event.
type Event string

const (
	// EventFullBuild is a complete, non-incremental build ("run").
	EventFullBuild Event = "run"
	// EventIncrementalBuild is a watch-mode rebuild ("watch-run").
	EventIncrementalBuild Event = "watch-run"
)

// HookFunc is a lifecycle callback. It must call done exactly once, with nil
// on success and the cycle's terminal error otherwise.
type HookFunc func(ctx context.Context, done func(error))

// Host is a build tool that exposes the two lifecycle events.
type Host interface {
	OnFullBuild(HookFunc)
	OnIncrementalBuild(HookFunc)
}

// TargetResult is the outcome of writing one output target.
type TargetResult struct {
	Target Target
	Err    error
}

// Result describes one completed update cycle.
type Result struct {
	Event    Event
	Previous Record
	Record   Record
	Targets  []TargetResult
	// Commit is the git commit hash when the cycle committed, otherwise "".
	Commit string
}

// Failed returns the target results that carry an error.
func (r Result) Failed() []TargetResult {
	var failed []TargetResult
	for _, t := range r.Targets {
		if t.Err != nil {
			failed = append(failed, t)
		}
	}
	return failed
}

// Controller runs version update cycles against a Store.
type Controller struct {
	store             *Store
	targets           []Target
	enrichIncremental bool
	stamper           *GitStamper
	lockPath          string
	observer          func(Result, error)
	logger            zerolog.Logger

	mu sync.Mutex
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTargets sets the output targets written on a full build, in order.
func WithTargets(targets ...Target) ControllerOption {
	return func(c *Controller) { c.targets = append([]Target(nil), targets...) }
}

// WithIncrementalEnrichment makes incremental builds consult the remote
// build-number source too. Off by default.
func WithIncrementalEnrichment(enabled bool) ControllerOption {
	return func(c *Controller) { c.enrichIncremental = enabled }
}

// WithGitStamper commits (and optionally tags) after each full build.
func WithGitStamper(g *GitStamper) ControllerOption {
	return func(c *Controller) { c.stamper = g }
}

// WithLockFile overrides the cross-process lock file. By default it lives in
// os.TempDir(), named after the canonical file's absolute path.
func WithLockFile(path string) ControllerOption {
	return func(c *Controller) { c.lockPath = path }
}

// WithObserver is called after every cycle started through a hook.
func WithObserver(fn func(Result, error)) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController returns a controller for store.
func NewController(store *Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:    store,
		lockPath: defaultLockPath(store.Path()),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the controller's store.
func (c *Controller) Store() *Store {
	return c.store
}

// Targets returns the configured output targets.
func (c *Controller) Targets() []Target {
	return append([]Target(nil), c.targets...)
}

// LockPath returns the cross-process lock file path.
func (c *Controller) LockPath() string {
	return c.lockPath
}

// Apply registers the controller's cycles with host.
func (c *Controller) Apply(host Host) {
	host.OnFullBuild(c.hook(c.FullBuild))
	host.OnIncrementalBuild(c.hook(c.IncrementalBuild))
}

func (c *Controller) hook(cycle func(context.Context) (Result, error)) HookFunc {
	return func(ctx context.Context, done func(error)) {
		res, err := cycle(ctx)
		if c.observer != nil {
			c.observer(res, err)
		}
		done(err)
	}
}

// FullBuild increments the patch component, writes every output target,
// persists the canonical file and, if configured, commits the result.
func (c *Controller) FullBuild(ctx context.Context) (Result, error) {
	res := Result{Event: EventFullBuild}

	unlock, err := c.lock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	r, err := c.store.Load(ctx, true)
	if err != nil {
		return res, err
	}
	res.Previous = r
	if err := increment("patch", &r.Patch); err != nil {
		return res, err
	}
	res.Record = r
	c.logger.Info().Str("event", string(EventFullBuild)).Str("from", res.Previous.Text()).Str("to", r.Text()).Msg("version updated")

	res.Targets = c.fanOut(ctx, r)

	if err := c.store.Save(ctx, r); err != nil {
		return res, fmt.Errorf("writing canonical version file: %w", err)
	}

	if c.stamper != nil {
		hash, err := c.stamper.Stamp(r, c.stagedPaths(res.Targets))
		if err != nil {
			return res, err
		}
		res.Commit = hash
		c.logger.Info().Str("commit", hash).Msg("version committed")
	}
	return res, nil
}

// IncrementalBuild increments the build component and persists the canonical
// file. Output targets are not written.
func (c *Controller) IncrementalBuild(ctx context.Context) (Result, error) {
	res := Result{Event: EventIncrementalBuild}

	unlock, err := c.lock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	r, err := c.store.Load(ctx, c.enrichIncremental)
	if err != nil {
		return res, err
	}
	res.Previous = r
	if err := increment("build", &r.Build); err != nil {
		return res, err
	}
	res.Record = r
	c.logger.Info().Str("event", string(EventIncrementalBuild)).Str("from", res.Previous.Text()).Str("to", r.Text()).Msg("version updated")

	if err := c.store.Save(ctx, r); err != nil {
		return res, fmt.Errorf("writing canonical version file: %w", err)
	}
	return res, nil
}

// fanOut writes every target concurrently and waits for all of them. A
// failing target never stops the others.
func (c *Controller) fanOut(ctx context.Context, r Record) []TargetResult {
	results := make([]TargetResult, len(c.targets))
	var g errgroup.Group
	for i, t := range c.targets {
		g.Go(func() error {
			err := c.store.Write(ctx, t, r)
			results[i] = TargetResult{Target: t, Err: err}
			if err != nil {
				c.logger.Warn().Err(err).Str("type", string(t.Type)).Str("destination", t.Destination()).Msg("output target failed")
			} else {
				c.logger.Debug().Str("type", string(t.Type)).Str("destination", t.Destination()).Msg("output target written")
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// stagedPaths lists the canonical file plus every local target written
// successfully.
func (c *Controller) stagedPaths(results []TargetResult) []string {
	paths := []string{c.store.Path()}
	for _, tr := range results {
		if tr.Err != nil {
			continue
		}
		if p := tr.Target.LocalPath(); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

const lockRetryDelay = 50 * time.Millisecond

// defaultLockPath keeps the lock out of the project tree. Every process that
// resolves source to the same absolute path shares the lock.
func defaultLockPath(source string) string {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "buildstamp-"+hex.EncodeToString(sum[:8])+".lock")
}

// errLocked is returned when ctx ends before the lock could be taken.
var errLocked = errors.New("version file is locked by another cycle")

// lock serializes cycles in-process and across processes sharing the
// canonical file.
func (c *Controller) lock(ctx context.Context) (func(), error) {
	c.mu.Lock()

	if err := os.MkdirAll(filepath.Dir(c.lockPath), 0755); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	fileLock := flock.New(c.lockPath)
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		c.mu.Unlock()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errLocked, err)
		}
		return nil, fmt.Errorf("error acquiring lock file: %w", err)
	}
	if !locked {
		c.mu.Unlock()
		return nil, errLocked
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			c.logger.Warn().Err(err).Str("path", c.lockPath).Msg("failed to release lock file")
		}
		c.mu.Unlock()
	}, nil
}
