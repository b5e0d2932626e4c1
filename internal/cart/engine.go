package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const (
	defaultNoticeTTL = 3 * time.Second

	msgRefreshFailed = "Cart updated but could not be refreshed"
)

// SessionSignals is the part of the session manager the engine relies on.
type SessionSignals interface {
	Token() string
	Invalidate(ctx context.Context, token string) bool
}

// Metrics receives engine instrumentation.
type Metrics interface {
	ObserveDuration(op string, duration time.Duration)
	IncSuccess(op string)
	IncFailure(op string)
	IncDiscarded()
	SetTotals(items int, amount float64)
}

// Config wires the engine collaborators. Remote is required.
type Config struct {
	Remote    Remote
	Enricher  *Enricher
	Signals   SessionSignals
	Notifier  notifications.Notifier
	Metrics   Metrics
	Logger    *logger.Logger
	NoticeTTL time.Duration
	Now       func() time.Time
}

// Engine reconciles the local cart view with the remote cart.
//
// Every auth transition bumps epoch; work started under an older epoch never
// commits. Fetches are numbered and only a fetch newer than the last committed
// one replaces the items, so concurrent mutations converge on the latest
// remote state.
type Engine struct {
	remote    Remote
	enricher  *Enricher
	signals   SessionSignals
	notifier  notifications.Notifier
	metrics   Metrics
	logg      *logger.Logger
	noticeTTL time.Duration
	now       func() time.Time

	mu            sync.Mutex
	state         ViewState
	authenticated bool
	loaded        bool
	epoch         uint64
	inFlight      int
	fetchSeq      uint64
	committedSeq  uint64

	publishMu   sync.Mutex
	subsMu      sync.Mutex
	subscribers []subscriber
	nextSubID   int

	wg sync.WaitGroup
}

type subscriber struct {
	id int
	fn func(ViewState)
}

type mutation struct {
	op      operation
	success string
	call    func(ctx context.Context) error
}

// NewEngine builds an engine in the Unauthenticated state.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Remote == nil {
		return nil, errors.New("cart remote is required")
	}
	enricher := cfg.Enricher
	if enricher == nil {
		enricher = NewEnricher(nil, cfg.Logger)
	}
	ttl := cfg.NoticeTTL
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		remote:    cfg.Remote,
		enricher:  enricher,
		signals:   cfg.Signals,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		logg:      cfg.Logger,
		noticeTTL: ttl,
		now:       now,
		state:     emptyView(),
	}, nil
}

// OnSessionChange adapts session transitions. Forbidden keeps the user session
// and therefore the cart.
func (e *Engine) OnSessionChange(ctx context.Context, change session.Change) {
	switch change.Event {
	case session.EventLogin, session.EventRestore:
		e.SetAuthenticated(ctx, true)
	case session.EventLogout:
		e.SetAuthenticated(ctx, false)
	}
}

// SetAuthenticated applies an auth transition. Signing out clears the items
// before returning and issues no remote call. Signing in starts a background
// load; use Wait to block until it settles.
func (e *Engine) SetAuthenticated(ctx context.Context, authenticated bool) {
	e.mu.Lock()
	e.epoch++
	e.inFlight = 0
	e.loaded = false
	e.authenticated = authenticated
	e.state = reduce(e.state, action{kind: actionReset})
	if !authenticated {
		e.state = reduce(e.state, action{kind: actionStatus, status: StatusUnauthenticated})
		e.mu.Unlock()
		e.info(ctx, "cart.unauthenticated")
		e.publish()
		return
	}
	epoch := e.epoch
	seq := e.beginLocked()
	e.mu.Unlock()
	e.publish()

	token := e.token()
	loadCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.load(loadCtx, epoch, seq, token)
	}()
}

// Wait blocks until background loads have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) load(ctx context.Context, epoch, seq uint64, token string) {
	ctx = e.withOp(ctx, "load")
	start := e.now()
	remote, err := e.remote.GetCart(ctx)
	e.observe("load", start, err)
	if err != nil {
		e.warn(ctx, "cart.load_failed", err)
		if pkgerrors.IsSessionInvalid(err) {
			e.invalidate(ctx, token)
		}
		superseded := false
		e.mu.Lock()
		if epoch == e.epoch {
			e.inFlight--
			// A mutation may have committed a newer cart while this load was out.
			if seq > e.committedSeq {
				e.state = reduce(e.state, action{kind: actionReset})
			} else {
				superseded = true
			}
			e.refreshStatusLocked()
		}
		e.mu.Unlock()
		if superseded {
			e.discarded(ctx)
		}
		e.publish()
		return
	}
	items := e.enricher.Enrich(ctx, remote.Lines())
	e.finish(ctx, epoch, seq, items, nil)
}

// Refresh re-fetches the remote cart. It is the manual retry path.
func (e *Engine) Refresh(ctx context.Context) (ViewState, error) {
	ctx = context.WithoutCancel(e.withOp(ctx, "refresh"))
	e.mu.Lock()
	if !e.authenticated {
		snapshot := e.snapshotLocked()
		e.mu.Unlock()
		return snapshot, errUnauthenticated()
	}
	epoch := e.epoch
	seq := e.beginLocked()
	e.mu.Unlock()
	e.publish()

	token := e.token()
	start := e.now()
	remote, err := e.remote.GetCart(ctx)
	e.observe("refresh", start, err)
	if err != nil {
		e.warn(ctx, "cart.refresh_failed", err)
		e.fail(ctx, epoch, noticeMessage(err, opGet.failure))
		if pkgerrors.IsSessionInvalid(err) {
			e.invalidate(ctx, token)
		}
		return e.Snapshot(), err
	}
	items := e.enricher.Enrich(ctx, remote.Lines())
	e.finish(ctx, epoch, seq, items, nil)
	return e.Snapshot(), nil
}

// AddToCart adds quantity of productID and reconciles.
func (e *Engine) AddToCart(ctx context.Context, productID string, quantity int) (ViewState, error) {
	return e.mutate(ctx, productID, mutation{
		op:      opAdd,
		success: "Added to cart",
		call: func(ctx context.Context) error {
			_, err := e.remote.AddToCart(ctx, productID, quantity)
			return err
		},
	})
}

func (e *Engine) RemoveFromCart(ctx context.Context, productID string) (ViewState, error) {
	return e.mutate(ctx, productID, mutation{
		op:      opRemove,
		success: "Removed from cart",
		call: func(ctx context.Context) error {
			_, err := e.remote.RemoveFromCart(ctx, productID)
			return err
		},
	})
}

func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) (ViewState, error) {
	return e.mutate(ctx, productID, mutation{
		op:      opQuantity,
		success: "Quantity updated",
		call: func(ctx context.Context) error {
			_, err := e.remote.UpdateQuantity(ctx, productID, quantity)
			return err
		},
	})
}

func (e *Engine) UpdateSize(ctx context.Context, productID, size string) (ViewState, error) {
	return e.mutate(ctx, productID, mutation{
		op:      opSize,
		success: "Size updated",
		call: func(ctx context.Context) error {
			_, err := e.remote.UpdateSize(ctx, productID, size)
			return err
		},
	})
}

// ClearCart empties the remote cart. Unlike logout it calls the backend.
func (e *Engine) ClearCart(ctx context.Context) (ViewState, error) {
	return e.mutate(ctx, "", mutation{
		op:      opClear,
		success: "Cart cleared",
		call: func(ctx context.Context) error {
			_, err := e.remote.ClearCart(ctx)
			return err
		},
	})
}

// mutate runs the remote call and, on success, rebuilds items from a fresh
// fetch instead of trusting the mutation response. Backend calls are not
// cancelled with the caller; late results are fenced by epoch and seq.
func (e *Engine) mutate(ctx context.Context, productID string, m mutation) (ViewState, error) {
	ctx = context.WithoutCancel(e.withOp(ctx, m.op.name))
	if productID != "" && e.logg != nil {
		ctx = e.logg.WithField(ctx, "product_id", productID)
	}

	e.mu.Lock()
	if !e.authenticated {
		snapshot := e.snapshotLocked()
		e.mu.Unlock()
		return snapshot, errUnauthenticated()
	}
	epoch := e.epoch
	e.inFlight++
	e.refreshStatusLocked()
	e.mu.Unlock()
	e.publish()

	token := e.token()
	start := e.now()
	err := m.call(ctx)
	e.observe(m.op.name, start, err)
	if err != nil {
		e.warn(ctx, "cart.mutation_failed", err)
		e.fail(ctx, epoch, noticeMessage(err, m.op.failure))
		if pkgerrors.IsSessionInvalid(err) {
			e.invalidate(ctx, token)
		}
		return e.Snapshot(), err
	}

	remote, seq, err := e.fetchAfterMutation(ctx, epoch)
	if errors.Is(err, errSuperseded) {
		e.discarded(ctx)
		return e.Snapshot(), nil
	}
	if err != nil {
		e.warn(ctx, "cart.refetch_failed", err)
		if pkgerrors.IsSessionInvalid(err) {
			e.fail(ctx, epoch, noticeMessage(err, opGet.failure))
			e.invalidate(ctx, token)
			return e.Snapshot(), err
		}
		e.markStale(ctx, epoch)
		return e.Snapshot(), nil
	}

	items := e.enricher.Enrich(ctx, remote.Lines())
	notice := notifications.New(notifications.KindSuccess, m.success, e.now(), e.noticeTTL)
	e.finish(ctx, epoch, seq, items, &notice)
	return e.Snapshot(), nil
}

// fetchAfterMutation retries the re-fetch once unless the session is invalid.
func (e *Engine) fetchAfterMutation(ctx context.Context, epoch uint64) (*RemoteCart, uint64, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		e.mu.Lock()
		if epoch != e.epoch {
			e.mu.Unlock()
			return nil, 0, errSuperseded
		}
		e.fetchSeq++
		seq := e.fetchSeq
		e.mu.Unlock()

		remote, err := e.remote.GetCart(ctx)
		if err == nil {
			return remote, seq, nil
		}
		lastErr = err
		if pkgerrors.IsSessionInvalid(err) {
			break
		}
	}
	return nil, 0, lastErr
}

var errSuperseded = pkgerrors.New(pkgerrors.CodeStateConflict, "session changed during cart operation")

// beginLocked marks a fetch in flight and returns its sequence number.
func (e *Engine) beginLocked() uint64 {
	e.inFlight++
	e.fetchSeq++
	e.refreshStatusLocked()
	return e.fetchSeq
}

// finish commits items fetched under epoch/seq if nothing newer superseded them.
func (e *Engine) finish(ctx context.Context, epoch, seq uint64, items []Item, notice *notifications.Notice) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		e.discarded(ctx)
		return
	}
	e.inFlight--
	committed := false
	if e.authenticated && seq > e.committedSeq {
		e.committedSeq = seq
		e.loaded = true
		e.state = reduce(e.state, action{kind: actionReconciled, items: items, at: e.now()})
		committed = true
	}
	if notice != nil {
		e.state = reduce(e.state, action{kind: actionNotice, notice: notice})
	}
	e.refreshStatusLocked()
	totalItems, totalAmount := e.state.TotalItems, e.state.TotalAmount
	e.mu.Unlock()

	if committed {
		if e.metrics != nil {
			e.metrics.SetTotals(totalItems, totalAmount.InexactFloat64())
		}
		e.info(ctx, "cart.reconciled")
	} else {
		e.discarded(ctx)
	}
	e.publish()
	e.emit(ctx, notice)
}

// fail ends an operation with exactly one failure notice. Items stay untouched.
func (e *Engine) fail(ctx context.Context, epoch uint64, message string) {
	notice := notifications.New(notifications.KindFailure, message, e.now(), e.noticeTTL)
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.inFlight--
	e.state = reduce(e.state, action{kind: actionNotice, notice: &notice})
	e.refreshStatusLocked()
	e.mu.Unlock()

	e.publish()
	e.emit(ctx, &notice)
}

// markStale keeps the previous items after a mutation whose re-fetch failed twice.
func (e *Engine) markStale(ctx context.Context, epoch uint64) {
	notice := notifications.New(notifications.KindFailure, msgRefreshFailed, e.now(), e.noticeTTL)
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.inFlight--
	e.state = reduce(e.state, action{kind: actionStale})
	e.state = reduce(e.state, action{kind: actionNotice, notice: &notice})
	e.refreshStatusLocked()
	e.mu.Unlock()

	e.publish()
	e.emit(ctx, &notice)
}

// refreshStatusLocked derives Status. A session whose first load failed reads
// as Unauthenticated but still accepts Refresh and mutations, which are the
// retry path.
func (e *Engine) refreshStatusLocked() {
	status := StatusUnauthenticated
	switch {
	case !e.authenticated:
	case e.inFlight > 0:
		status = StatusSyncing
	case e.loaded:
		status = StatusReady
	}
	e.state = reduce(e.state, action{kind: actionStatus, status: status})
}

// SetOpen sets the drawer flag. It is local only.
func (e *Engine) SetOpen(open bool) ViewState {
	e.mu.Lock()
	e.state = reduce(e.state, action{kind: actionOpen, open: open})
	e.mu.Unlock()
	e.publish()
	return e.Snapshot()
}

// ToggleOpen flips the drawer flag.
func (e *Engine) ToggleOpen() ViewState {
	e.mu.Lock()
	e.state = reduce(e.state, action{kind: actionOpen, open: !e.state.IsOpen})
	e.mu.Unlock()
	e.publish()
	return e.Snapshot()
}

// Snapshot returns a copy of the view with an expired notice dropped.
func (e *Engine) Snapshot() ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() ViewState {
	out := e.state.clone()
	if out.Notice != nil && out.Notice.Expired(e.now()) {
		out.Notice = nil
	}
	return out
}

// Subscribe registers fn for every view change and returns a function that removes it.
// fn runs synchronously and must not call mutating engine methods.
func (e *Engine) Subscribe(fn func(ViewState)) func() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.nextSubID++
	id := e.nextSubID
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})
	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		for i, sub := range e.subscribers {
			if sub.id == id {
				e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) publish() {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.subsMu.Lock()
	subs := make([]func(ViewState), 0, len(e.subscribers))
	for _, sub := range e.subscribers {
		subs = append(subs, sub.fn)
	}
	e.subsMu.Unlock()
	if len(subs) == 0 {
		return
	}

	snapshot := e.Snapshot()
	for _, fn := range subs {
		fn(snapshot.clone())
	}
}

func (e *Engine) emit(ctx context.Context, notice *notifications.Notice) {
	if notice == nil || e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, *notice)
}

func (e *Engine) token() string {
	if e.signals == nil {
		return ""
	}
	return e.signals.Token()
}

func (e *Engine) invalidate(ctx context.Context, token string) {
	if e.signals == nil {
		return
	}
	e.signals.Invalidate(ctx, token)
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveDuration(op, e.now().Sub(start))
	if err != nil {
		e.metrics.IncFailure(op)
		return
	}
	e.metrics.IncSuccess(op)
}

func (e *Engine) discarded(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.IncDiscarded()
	}
	if e.logg != nil {
		e.logg.Debug(ctx, "cart.result_discarded")
	}
}

func (e *Engine) withOp(ctx context.Context, op string) context.Context {
	if e.logg == nil {
		return ctx
	}
	return e.logg.WithOperation(ctx, op)
}

func (e *Engine) info(ctx context.Context, msg string) {
	if e.logg != nil {
		e.logg.Info(ctx, msg)
	}
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), msg)
}

func errUnauthenticated() error {
	return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNoToken, "authentication required")
}

// noticeMessage prefers the backend message carried by err.
func noticeMessage(err error, fallback string) string {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOperationFailed {
		return fallback
	}
	if msg := typed.Message(); msg != "" {
		return msg
	}
	return fallback
}
