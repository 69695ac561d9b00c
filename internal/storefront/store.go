package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/ecobuy/internal/cache"
	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/internal/remote"
	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/enums"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/logger"
	"github.com/angelmondragon/ecobuy/pkg/metrics"
)

const defaultSyncQueueSize = 64

// Params wires the store's collaborators.
type Params struct {
	Cache *cache.Cache
	// Accounts is the account service. Nil runs the store offline against
	// the accounts cached on this device.
	Accounts      remote.Accounts
	Logger        *logger.Logger
	Metrics       *metrics.StoreMetrics
	Clock         func() time.Time
	SyncQueueSize int
	// Password tunes argon2 for offline accounts.
	Password config.PasswordConfig
}

// Store owns the signed-in shopper and their cart, wishlist and orders.
// Operations are serialized; views observe it through Subscribe.
type Store struct {
	cache    *cache.Cache
	accounts remote.Accounts
	logg     *logger.Logger
	metrics  *metrics.StoreMetrics
	clock    func() time.Time
	password config.PasswordConfig

	mu           sync.Mutex
	state        State
	user         *commerce.User
	token        string
	source       enums.SessionSource
	pendingEmail string
	closed       bool

	// pubSeq numbers published snapshots under mu; delivered is the last
	// number handed to subscribers, under notifyMu.
	pubSeq     uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64
	subMu      sync.Mutex
	subs       []subscriber

	syncMu    sync.Mutex
	syncSubs  []syncSubscriber
	nextSubID atomic.Int64

	busy       atomic.Int32
	queue      chan syncJob
	workerDone chan struct{}
}

type subscriber struct {
	id int64
	fn func(Snapshot)
}

func New(p Params) (*Store, error) {
	if p.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.SyncQueueSize <= 0 {
		p.SyncQueueSize = defaultSyncQueueSize
	}
	if p.Password.ArgonTime == 0 {
		p.Password = config.PasswordConfig{
			MinLength:        minPasswordLength,
			ArgonMemoryKB:    64 * 1024,
			ArgonTime:        3,
			ArgonParallelism: 2,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		}
	}

	s := &Store{
		cache:      p.Cache,
		accounts:   p.Accounts,
		logg:       p.Logger,
		metrics:    p.Metrics,
		clock:      p.Clock,
		password:   p.Password,
		state:      StateLoading,
		queue:      make(chan syncJob, p.SyncQueueSize),
		workerDone: make(chan struct{}),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	go s.runSyncWorker()
	return s, nil
}

// Offline reports whether the store runs without an account service.
func (s *Store) Offline() bool {
	return s.accounts == nil
}

// Restore adopts the cached session, if any, including a registration still
// waiting for its emailed code. Unreadable caches leave the shopper signed
// out. Only the first call has an effect.
func (s *Store) Restore(ctx context.Context) error {
	ctx = s.logg.WithOperation(ctx, opRestore)

	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		return nil
	}
	session, err := s.cache.LoadSession(ctx)
	switch {
	case err == nil && session.Pending():
		s.pendingEmail = commerce.NormalizeEmail(session.User.Email)
		s.state = StatePendingVerification
	case err == nil:
		user := session.User.Clone()
		s.user = &user
		s.token = session.Token
		s.source = session.Source
		s.state = StateAuthenticated
	case errors.Is(err, cache.ErrNoSession):
		s.state = StateUnauthenticated
	default:
		s.logg.Error(ctx, "storefront.restore.failed", err)
		s.state = StateUnauthenticated
	}
	s.publishLocked()
	s.metrics.ObserveMutation(opRestore, metrics.OutcomeChanged)
	return nil
}

// IsLoading is true before Restore and while an authentication or profile
// call is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingLocked()
}

func (s *Store) loadingLocked() bool {
	return s.state == StateLoading || s.busy.Load() > 0
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// User returns a copy of the current shopper, or nil.
func (s *Store) User() *commerce.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userCopyLocked()
}

func (s *Store) userCopyLocked() *commerce.User {
	if s.user == nil {
		return nil
	}
	user := s.user.Clone()
	return &user
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		State:         s.state,
		User:          s.userCopyLocked(),
		Authenticated: s.state == StateAuthenticated,
		Loading:       s.loadingLocked(),
		PendingEmail:  s.pendingEmail,
	}
}

// CartTotal sums the current cart.
func (s *Store) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return 0
	}
	return commerce.CartTotal(s.user.Cart)
}

// Subscribe registers fn to receive a full snapshot after every change.
// Callbacks run in subscription order on the goroutine that made the change,
// with no store lock held, and see snapshots in commit order. They may read
// the store but must not call mutating store methods themselves.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID.Add(1)
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// publishLocked snapshots the state, releases s.mu and notifies subscribers.
// The caller must hold s.mu and must not touch it afterwards. A publisher
// waits for the snapshots committed before its own to be delivered.
func (s *Store) publishLocked() {
	s.pubSeq++
	seq := s.pubSeq
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyMu.Lock()
	for s.delivered+1 != seq {
		s.notifyCond.Wait()
	}
	s.notifyMu.Unlock()
	defer func() {
		s.notifyMu.Lock()
		s.delivered = seq
		s.notifyMu.Unlock()
		s.notifyCond.Broadcast()
	}()

	s.subMu.Lock()
	subs := append([]subscriber(nil), s.subs...)
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		return ErrNotReady
	}
	return nil
}

// beginLoading raises the busy flag and publishes it. The returned func
// lowers it and publishes again.
func (s *Store) beginLoading() func() {
	s.mu.Lock()
	s.busy.Add(1)
	s.publishLocked()
	return func() {
		s.mu.Lock()
		s.busy.Add(-1)
		s.publishLocked()
	}
}

// commitLocked persists next and then swaps it in. On failure memory is left
// as it was.
func (s *Store) commitLocked(ctx context.Context, next commerce.User) error {
	session := cache.Session{User: next, Token: s.token, Source: s.source}
	if err := s.cache.SaveSession(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed)
	}
	if s.source == enums.SessionSourceLocal {
		if err := s.cache.UpsertAccount(ctx, next); err != nil {
			if s.user != nil {
				prev := cache.Session{User: *s.user, Token: s.token, Source: s.source}
				if rbErr := s.cache.SaveSession(ctx, prev); rbErr != nil {
					s.logg.Error(ctx, "storefront.commit.rollback_failed", rbErr)
				}
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed)
		}
	}
	s.user = &next
	return nil
}

// mutation computes the next user from a private copy of the current one.
// Returning changed=false leaves the store untouched.
type mutation func(current commerce.User) (next commerce.User, changed bool, message string, err error)

// syncPlan builds the remote job for a committed user, or nil for none.
type syncPlan func(next commerce.User) syncFunc

// mutate runs the shared commit path for signed-in operations. Without a
// signed-in shopper it does nothing.
func (s *Store) mutate(ctx context.Context, op string, fn mutation, plan syncPlan) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, op)

	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		s.metrics.ObserveMutation(op, metrics.OutcomeError)
		return Outcome{}, ErrNotReady
	}
	if s.user == nil {
		s.mu.Unlock()
		s.metrics.ObserveMutation(op, metrics.OutcomeNoop)
		return Outcome{}, nil
	}
	ctx = s.logg.WithUserID(ctx, s.user.ID)

	next, changed, message, err := fn(s.user.Clone())
	if err != nil {
		s.mu.Unlock()
		s.metrics.ObserveMutation(op, metrics.OutcomeError)
		return Outcome{}, err
	}
	if !changed {
		s.mu.Unlock()
		s.metrics.ObserveMutation(op, metrics.OutcomeNoop)
		return Outcome{Message: message}, nil
	}
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		s.logg.Error(ctx, "storefront.commit.failed", err)
		s.metrics.ObserveMutation(op, metrics.OutcomeError)
		return Outcome{}, err
	}

	var ticket *SyncTicket
	if plan != nil && s.source == enums.SessionSourceRemote && s.accounts != nil {
		if run := plan(next.Clone()); run != nil {
			ticket = s.enqueueLocked(syncOpFor(op), run)
		}
	}
	s.publishLocked()

	s.reportFailedFast(ctx, ticket)
	s.metrics.ObserveMutation(op, metrics.OutcomeChanged)
	return Outcome{Changed: true, Message: message, Sync: ticket}, nil
}

func syncOpFor(op string) string {
	switch op {
	case opAddToCart, opRemoveFromCart, opUpdateQuantity, opClearCart:
		return opSyncCart
	case opAddToWishlist, opRemoveWishlist, opClearWishlist:
		return opSyncWishlist
	case opCreateOrder:
		return opSyncOrder
	default:
		return op
	}
}
