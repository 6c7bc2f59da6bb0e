package shellpool

import (
	"context"
	"sync"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/execenv"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
)

// Handle is an opaque reference to a pooled worker, returned by Acquire and
// consumed by Execute/Release. Callers must not inspect its fields.
type Handle struct {
	w   *worker
	dir string
}

// Pool keeps warm shell workers keyed by working directory, subject to
// Config's per-directory and total caps, and evicts idle workers in the
// background.
type Pool struct {
	mgr   sandbox.Manager
	scope sandbox.Scope
	cfg   Config

	// spawnFn defaults to spawnWorker; overridden in tests to avoid
	// re-execing the real binary under a real sandbox mechanism.
	spawnFn func(ctx context.Context, mgr sandbox.Manager, scope sandbox.Scope, dir string, mode Mode, timeout time.Duration, envPolicy *execenv.ShellEnvironmentPolicy) (*worker, error)

	mu      sync.Mutex
	byDir   map[string][]*worker
	total   int
	closed  bool
	stop    chan struct{}
	janitor sync.WaitGroup
}

// NewPool constructs a Pool bound to a single session's sandbox manager and
// locked scope. Pass a zero Config{} (ShellsPerDir == 0) to disable pooling
// entirely — Acquire then always returns ErrPoolDisabled.
func NewPool(mgr sandbox.Manager, scope sandbox.Scope, cfg Config) *Pool {
	p := &Pool{
		mgr:     mgr,
		scope:   scope,
		cfg:     cfg,
		spawnFn: spawnWorker,
		byDir:   make(map[string][]*worker),
		stop:    make(chan struct{}),
	}
	if cfg.ShellsPerDir > 0 {
		p.janitor.Add(1)
		go p.runJanitor()
	}
	return p
}

// EnvPolicy returns the environment-filtering policy this pool spawns
// workers with, so the adapter's direct-spawn fallback can apply the same
// filtering when the pool is disabled or at capacity.
func (p *Pool) EnvPolicy() *execenv.ShellEnvironmentPolicy {
	return p.cfg.EnvPolicy
}

// Acquire returns a ready worker for dir, spawning one if none are idle in
// the pool and capacity allows. Returns ErrPoolDisabled if the pool has no
// capacity configured, or ErrAtCapacity if every slot for dir (or the pool
// overall) is in use — callers fall back to a direct, unpooled spawn.
func (p *Pool) Acquire(ctx context.Context, dir string) (*Handle, error) {
	if p.cfg.ShellsPerDir <= 0 {
		return nil, ErrPoolDisabled
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolDisabled
	}
	if pooled := p.byDir[dir]; len(pooled) > 0 {
		w := pooled[len(pooled)-1]
		p.byDir[dir] = pooled[:len(pooled)-1]
		p.mu.Unlock()
		return &Handle{w: w, dir: dir}, nil
	}
	if len(p.byDir[dir]) >= p.cfg.ShellsPerDir || p.total >= p.cfg.MaxTotalShells {
		p.mu.Unlock()
		return nil, ErrAtCapacity
	}
	p.total++
	p.mu.Unlock()

	spawnTimeout := time.Duration(p.cfg.SpawnTimeoutMs) * time.Millisecond
	if spawnTimeout <= 0 {
		spawnTimeout = time.Duration(DefaultConfig().SpawnTimeoutMs) * time.Millisecond
	}
	w, err := p.spawnFn(ctx, p.mgr, p.scope, dir, p.cfg.Mode, spawnTimeout, p.cfg.EnvPolicy)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	return &Handle{w: w, dir: dir}, nil
}

// Release returns the worker to the pool iff its last health check passed;
// otherwise the worker is shut down and its capacity slot freed.
func (p *Pool) Release(h *Handle) {
	if h == nil || h.w == nil {
		return
	}
	timeout := time.Duration(p.cfg.CommandTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(DefaultConfig().CommandTimeoutMs) * time.Millisecond
	}
	if err := h.w.healthCheck(timeout); err != nil {
		p.drop(h.w)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		go h.w.close()
		p.total--
		return
	}
	p.byDir[h.dir] = append(p.byDir[h.dir], h.w)
}

// Execute runs one command against the worker behind h.
func (p *Pool) Execute(h *Handle, cmd ShellCommand) (ShellResult, error) {
	if h == nil || h.w == nil {
		return ShellResult{}, ErrProcessDied
	}
	res, err := h.w.run(cmd)
	if err != nil {
		p.drop(h.w)
	}
	return res, err
}

func (p *Pool) drop(w *worker) {
	w.close()
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
}

// ShutdownAll terminates every pooled worker and stops the idle janitor.
func (p *Pool) ShutdownAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	all := p.byDir
	p.byDir = make(map[string][]*worker)
	p.total = 0
	close(p.stop)
	p.mu.Unlock()

	for _, workers := range all {
		for _, w := range workers {
			w.close()
		}
	}
	p.janitor.Wait()
}

func (p *Pool) runJanitor() {
	defer p.janitor.Done()
	interval := time.Duration(p.cfg.IdleTimeoutMs) * time.Millisecond / 4
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idleTimeout := time.Duration(p.cfg.IdleTimeoutMs) * time.Millisecond
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evictIdle(idleTimeout)
		}
	}
}

func (p *Pool) evictIdle(idleTimeout time.Duration) {
	cutoff := time.Now().Add(-idleTimeout)
	p.mu.Lock()
	var toClose []*worker
	for dir, workers := range p.byDir {
		kept := workers[:0]
		for _, w := range workers {
			if w.isIdleSince(cutoff) {
				toClose = append(toClose, w)
				p.total--
			} else {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(p.byDir, dir)
		} else {
			p.byDir[dir] = kept
		}
	}
	p.mu.Unlock()

	for _, w := range toClose {
		w.close()
	}
}
