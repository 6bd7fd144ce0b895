// Package transfer drives a transfer intent from user input to a single
// contract write on MVM.
package transfer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/mvm-bridge/internal/metrics"
	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
	"github.com/chainsafe/mvm-bridge/pkg/ethereum"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

const (
	recipientField = "recipient_user_id"
	assetField     = "asset_id"
)

// ErrBusy is returned when an intent cannot be started or dismissed in the current state
var ErrBusy = errors.New("transfer in progress")

// Sessions exposes the registered identity of the connected wallet
type Sessions interface {
	Current(address string) (*identity.RegisteredIdentity, error)
}

// Users looks up custodial users by id
type Users interface {
	User(ctx context.Context, userID string) (*mixin.User, error)
}

// Contracts resolves registry addresses
type Contracts interface {
	IsNative(assetID string) bool
	ContractOf(ctx context.Context, assetID string) (common.Address, error)
	UserContract(ctx context.Context, userID string) (common.Address, error)
}

// Extras builds the opaque payload carried by a transfer
type Extras interface {
	Extra(ctx context.Context, req bridgeapi.ExtraRequest) (string, error)
}

// Writer submits contract writes through the connected wallet
type Writer interface {
	Release(ctx context.Context, receiver common.Address, extra []byte, value *big.Int) (common.Hash, error)
	TransferWithExtra(ctx context.Context, asset, receiver common.Address, amount *big.Int, extra []byte) (common.Hash, error)
}

// Dependencies groups the collaborators of an orchestrator
type Dependencies struct {
	Sessions  Sessions
	Users     Users
	Contracts Contracts
	Extras    Extras
	Writer    Writer
}

// Config holds orchestration settings
type Config struct {
	ExplorerURL      string
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

// Snapshot is a point-in-time view of an orchestrator
type Snapshot struct {
	AssetID           string  `json:"asset_id"`
	State             State   `json:"state"`
	Intent            *Intent `json:"intent,omitempty"`
	Path              string  `json:"path,omitempty"`
	RecipientContract string  `json:"recipient_contract,omitempty"`
	Extra             string  `json:"extra,omitempty"`
	TxHash            string  `json:"tx_hash,omitempty"`
	ExplorerURL       string  `json:"explorer_url,omitempty"`
	Error             string  `json:"error,omitempty"`
	Field             string  `json:"field,omitempty"`
	Version           uint64  `json:"version"`
}

// run holds everything resolved for one intent
type run struct {
	ctx    context.Context
	cancel context.CancelFunc

	intent    Intent
	native    bool
	amount    *big.Int
	path      Path
	recipient *common.Address
	extra     []byte
	extraHex  string

	dispatched bool
}

// Orchestrator owns the transfer lifecycle of one asset
type Orchestrator struct {
	ctx     context.Context
	assetID string
	deps    Dependencies
	cfg     Config
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	run       *run
	lastErr   error
	txHash    string
	version   uint64
	changed   chan struct{}
	listeners map[int]func(Snapshot)
	nextID    int
	wg        sync.WaitGroup
}

// NewOrchestrator creates an orchestrator for assetID. Resolution and
// dispatch run on ctx, not on the caller's request context.
func NewOrchestrator(ctx context.Context, assetID string, deps Dependencies, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 3 * time.Second
	}
	if cfg.MaxRetryInterval < cfg.RetryInterval {
		cfg.MaxRetryInterval = cfg.RetryInterval
	}
	return &Orchestrator{
		ctx:       ctx,
		assetID:   assetID,
		deps:      deps,
		cfg:       cfg,
		logger:    logger.With(zap.String("asset_id", assetID)),
		changed:   make(chan struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
}

// AssetID returns the asset this orchestrator transfers
func (o *Orchestrator) AssetID() string {
	return o.assetID
}

// Submit validates intent and starts resolving it. Validation failures leave
// the orchestrator Idle and happen before any network activity.
func (o *Orchestrator) Submit(ctx context.Context, intent Intent) (Snapshot, error) {
	if err := intent.Validate(); err != nil {
		return o.Snapshot(), err
	}

	native := o.deps.Contracts.IsNative(o.assetID)
	decimals := int32(TokenDecimals)
	if native {
		decimals = NativeDecimals
	}
	amount, err := ToOnChain(intent.Amount, decimals)
	if err != nil {
		return o.Snapshot(), err
	}

	if _, err := o.deps.Sessions.Current(""); err != nil {
		return o.Snapshot(), err
	}

	o.mu.Lock()
	if o.state != Idle {
		o.mu.Unlock()
		return o.Snapshot(), apperrors.LockedError(ErrBusy, "A transfer is already in progress")
	}

	runCtx, cancel := context.WithCancel(o.ctx)
	r := &run{
		ctx:    runCtx,
		cancel: cancel,
		intent: intent,
		native: native,
		amount: amount,
	}
	if native {
		r.path = NativePath{Value: amount}
	}
	o.run = r
	o.lastErr = nil
	o.txHash = ""
	o.setStateLocked(Collecting)
	snap, listeners := o.publishLocked()
	o.mu.Unlock()
	notify(listeners, snap)

	o.logger.Info("Transfer intent submitted",
		zap.String("recipient_user_id", intent.RecipientUserID),
		zap.String("amount", intent.Amount),
		zap.Bool("native", native))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.resolve(r)
	}()

	return snap, nil
}

// Dismiss abandons the current intent or clears an outcome. A write that
// has already been handed to the wallet cannot be dismissed.
func (o *Orchestrator) Dismiss() (Snapshot, error) {
	o.mu.Lock()
	switch o.state {
	case Idle:
		o.mu.Unlock()
		return o.Snapshot(), nil
	case Submitting:
		o.mu.Unlock()
		return o.Snapshot(), apperrors.LockedError(ErrBusy, "Transaction is awaiting the wallet")
	}

	if o.state != Succeeded && o.state != Failed {
		metrics.TransfersTotal.WithLabelValues(o.pathLabelLocked(), "dismissed").Inc()
	}
	if o.run != nil {
		o.run.cancel()
		o.run = nil
	}
	o.lastErr = nil
	o.txHash = ""
	o.setStateLocked(Idle)
	snap, listeners := o.publishLocked()
	o.mu.Unlock()
	notify(listeners, snap)
	return snap, nil
}

// Snapshot returns the current view
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Wait blocks until no intent is being resolved or dispatched
func (o *Orchestrator) Wait(ctx context.Context) (Snapshot, error) {
	for {
		o.mu.Lock()
		snap := o.snapshotLocked()
		changed := o.changed
		o.mu.Unlock()

		if !snap.State.InProgress() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// Subscribe registers fn for every snapshot change and returns an unsubscribe func.
// Listeners run on the goroutine that made the change and may observe
// snapshots out of order; Version is monotonic.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// Close cancels any resolution in flight and waits for background work
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.run != nil && !o.run.dispatched {
		o.run.cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) resolve(r *run) {
	g, ctx := errgroup.WithContext(r.ctx)

	g.Go(func() error {
		return o.resolveRecipient(ctx, r)
	})
	if !r.native {
		g.Go(func() error {
			return o.resolveAssetContract(ctx, r)
		})
	}

	if err := g.Wait(); err != nil {
		o.abort(r, err)
	}
}

func (o *Orchestrator) resolveRecipient(ctx context.Context, r *run) error {
	userID := r.intent.RecipientUserID

	user, err := retry(ctx, o, "user", func(ctx context.Context) (*mixin.User, error) {
		return o.deps.Users.User(ctx, userID)
	})
	if err != nil {
		return recipientError(err)
	}
	if user == nil || user.UserID != userID {
		return &fieldError{field: recipientField, err: errors.New("user lookup returned a different user")}
	}

	contract, err := retry(ctx, o, "recipient_contract", func(ctx context.Context) (common.Address, error) {
		return o.deps.Contracts.UserContract(ctx, userID)
	})
	if err != nil {
		return recipientError(err)
	}
	if !o.update(r, func() {
		r.recipient = &contract
		o.setStateLocked(Resolving)
	}) {
		return nil
	}

	extraHex, err := retry(ctx, o, "extra", func(ctx context.Context) (string, error) {
		return o.deps.Extras.Extra(ctx, bridgeapi.ExtraRequest{
			Extra:     r.intent.Memo,
			Receivers: []string{contract.Hex()},
			Threshold: 1,
		})
	})
	if err != nil {
		return err
	}
	extra, err := hexutil.Decode(extraHex)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	if !o.update(r, func() {
		r.extra = extra
		r.extraHex = extraHex
	}) {
		return nil
	}

	o.tryDispatch(r)
	return nil
}

func (o *Orchestrator) resolveAssetContract(ctx context.Context, r *run) error {
	contract, err := retry(ctx, o, "asset_contract", func(ctx context.Context) (common.Address, error) {
		return o.deps.Contracts.ContractOf(ctx, o.assetID)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CategoryResourceNotFound) {
			return &fieldError{field: assetField, err: err}
		}
		return err
	}
	if !o.update(r, func() {
		r.path = TokenPath{Contract: contract, Amount: r.amount}
	}) {
		return nil
	}

	o.tryDispatch(r)
	return nil
}

// update applies fn under the lock if r is still the live intent
func (o *Orchestrator) update(r *run, fn func()) bool {
	o.mu.Lock()
	if o.run != r || r.dispatched {
		o.mu.Unlock()
		return false
	}
	fn()
	snap, listeners := o.publishLocked()
	o.mu.Unlock()
	notify(listeners, snap)
	return true
}

// tryDispatch starts the contract write once every input is resolved. It is
// called on every resolution and dispatches at most once per intent.
func (o *Orchestrator) tryDispatch(r *run) bool {
	o.mu.Lock()
	if o.run != r || r.dispatched || o.state != Resolving ||
		r.recipient == nil || r.extra == nil || r.path == nil {
		o.mu.Unlock()
		return false
	}
	r.dispatched = true
	o.setStateLocked(Submitting)
	snap, listeners := o.publishLocked()
	o.mu.Unlock()
	notify(listeners, snap)

	o.dispatch(r)
	return true
}

func (o *Orchestrator) dispatch(r *run) {
	kind := r.path.Kind()
	recipient := *r.recipient
	start := time.Now()

	var (
		hash common.Hash
		err  error
	)
	switch p := r.path.(type) {
	case NativePath:
		hash, err = o.deps.Writer.Release(o.ctx, recipient, r.extra, p.Value)
	case TokenPath:
		hash, err = o.deps.Writer.TransferWithExtra(o.ctx, p.Contract, recipient, p.Amount, r.extra)
	}
	metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	o.mu.Lock()
	if err != nil {
		if errors.Is(err, keys.ErrUserRejected) {
			o.lastErr = apperrors.WalletRejection(err)
		} else {
			o.lastErr = apperrors.WriteDispatchError(err)
		}
		o.setStateLocked(Failed)
		metrics.TransfersTotal.WithLabelValues(kind, "failed").Inc()
		o.logger.Error("Transfer dispatch failed",
			zap.String("path", kind),
			zap.String("recipient_contract", recipient.Hex()),
			zap.Error(err))
	} else {
		o.txHash = hash.Hex()
		o.setStateLocked(Succeeded)
		metrics.TransfersTotal.WithLabelValues(kind, "succeeded").Inc()
		o.logger.Info("Transfer dispatched",
			zap.String("path", kind),
			zap.String("tx_hash", o.txHash),
			zap.String("recipient_contract", recipient.Hex()))
	}
	r.cancel()
	snap, listeners := o.publishLocked()
	o.mu.Unlock()
	notify(listeners, snap)
}

// abort resets a failed resolution back to Idle with the error attached
func (o *Orchestrator) abort(r *run, err error) {
	o.mu.Lock()
	if o.run != r || r.dispatched || r.ctx.Err() != nil {
		o.mu.Unlock()
		return
	}

	status := "error"
	var fe *fieldError
	if errors.As(err, &fe) {
		status = "not_found"
		err = apperrors.RecipientNotFoundError(fe.err, fe.field)
		if fe.field == assetField {
			err = fieldNotFound(fe.err, fe.field)
		}
	}
	metrics.TransfersTotal.WithLabelValues(o.pathLabelLocked(), status).Inc()
	o.logger.Warn("Transfer intent reset", zap.Error(err))

	r.cancel()
	o.run = nil
	o.lastErr = err
	o.setStateLocked(Idle)
	snap, listeners := o.publishLocked()
	o.mu.Unlock()
	notify(listeners, snap)
}

func (o *Orchestrator) setStateLocked(to State) {
	if !CanTransition(o.state, to) {
		o.logger.Error("Rejected transfer state change",
			zap.Stringer("from", o.state),
			zap.Stringer("to", to),
			zap.Error(ErrInvalidTransition))
		return
	}
	o.state = to
}

func (o *Orchestrator) pathLabelLocked() string {
	if o.run != nil && o.run.native {
		return NativePath{}.Kind()
	}
	return TokenPath{}.Kind()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		AssetID: o.assetID,
		State:   o.state,
		TxHash:  o.txHash,
		Version: o.version,
	}
	if o.txHash != "" {
		snap.ExplorerURL = ethereum.TxURL(o.cfg.ExplorerURL, o.txHash)
	}
	if o.lastErr != nil {
		snap.Error = o.lastErr.Error()
		var svcErr *apperrors.ServiceError
		if errors.As(o.lastErr, &svcErr) {
			snap.Error = svcErr.Message
			snap.Field = svcErr.Field
		}
	}
	if r := o.run; r != nil {
		intent := r.intent
		snap.Intent = &intent
		if r.path != nil {
			snap.Path = r.path.Kind()
		}
		if r.recipient != nil {
			snap.RecipientContract = r.recipient.Hex()
		}
		snap.Extra = r.extraHex
	}
	return snap
}

// publishLocked bumps the version, wakes waiters and returns what to notify
func (o *Orchestrator) publishLocked() (Snapshot, []func(Snapshot)) {
	o.version++
	close(o.changed)
	o.changed = make(chan struct{})

	listeners := make([]func(Snapshot), 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	return o.snapshotLocked(), listeners
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}

// LastError returns the error of the last failed intent, if any
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

func recipientError(err error) error {
	if apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		return &fieldError{field: recipientField, err: err}
	}
	return err
}

func fieldNotFound(err error, field string) error {
	return &apperrors.ServiceError{
		Category: apperrors.CategoryResourceNotFound,
		Message:  "Asset contract not found",
		Field:    field,
		Err:      err,
	}
}

// retry runs fn until it succeeds, fails permanently or ctx ends
func retry[T any](ctx context.Context, o *Orchestrator, op string, fn func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.RetryInterval
	b.MaxInterval = o.cfg.MaxRetryInterval
	b.MaxElapsedTime = 0

	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		o.logger.Warn("Transfer resolution failed, retrying",
			zap.String("step", op),
			zap.Duration("next", next),
			zap.Error(err))
	})
}

func transient(err error) bool {
	if errors.Is(err, bridgeapi.ErrEmptyExtra) {
		return false
	}
	var httpErr *bridgeapi.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}
	switch apperrors.CategoryOf(err) {
	case apperrors.CategoryDependencyFailure,
		apperrors.CategoryGeneralError,
		apperrors.CategoryConnectionTimeout,
		apperrors.CategoryRecovering:
		return true
	}
	return false
}
