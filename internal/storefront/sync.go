package storefront

import (
	"context"
	"sync"

	"github.com/angelmondragon/ecobuy/internal/remote"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
)

// SyncTicket tracks one queued remote sync job.
type SyncTicket struct {
	op   string
	done chan struct{}
	once sync.Once
	err  error
	// failedFast marks tickets rejected before reaching the queue.
	failedFast bool
}

func newTicket(op string) *SyncTicket {
	return &SyncTicket{op: op, done: make(chan struct{})}
}

// Op names the remote call the ticket stands for.
func (t *SyncTicket) Op() string {
	return t.op
}

// Done is closed once the job finished or was rejected.
func (t *SyncTicket) Done() <-chan struct{} {
	return t.done
}

// Err reports the job result. It is nil until Done is closed.
func (t *SyncTicket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx ends.
func (t *SyncTicket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SyncTicket) resolve(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// SyncResult is broadcast to SubscribeSync listeners after every job.
type SyncResult struct {
	Op  string
	Err error
}

type syncFunc func(ctx context.Context, accounts remote.Accounts, token string) error

type syncJob struct {
	op     string
	userID string
	token  string
	run    syncFunc
	ticket *SyncTicket
}

// enqueueLocked hands a job to the worker without blocking. Callers hold s.mu
// so jobs enter the queue in commit order.
func (s *Store) enqueueLocked(op string, run syncFunc) *SyncTicket {
	ticket := newTicket(op)
	if s.closed {
		ticket.failedFast = true
		ticket.resolve(pkgerrors.New(pkgerrors.CodeDependency, msgStoreClosed))
		return ticket
	}
	job := syncJob{op: op, token: s.token, run: run, ticket: ticket}
	if s.user != nil {
		job.userID = s.user.ID
	}
	select {
	case s.queue <- job:
	default:
		ticket.failedFast = true
		ticket.resolve(pkgerrors.New(pkgerrors.CodeDependency, msgSyncQueueFull))
	}
	return ticket
}

// reportFailedFast publishes tickets that never reached the worker.
func (s *Store) reportFailedFast(ctx context.Context, ticket *SyncTicket) {
	if ticket == nil || !ticket.failedFast {
		return
	}
	s.metrics.ObserveSync(ticket.op, 0, ticket.err)
	s.logg.Error(s.logg.WithOperation(ctx, ticket.op), "storefront.sync.rejected", ticket.err)
	s.publishSync(SyncResult{Op: ticket.op, Err: ticket.err})
}

func (s *Store) runSyncWorker() {
	defer close(s.workerDone)
	for job := range s.queue {
		ctx := s.logg.WithFields(context.Background(), map[string]any{"op": job.op, "user_id": job.userID})
		started := s.clock()
		err := job.run(ctx, s.accounts, job.token)
		s.metrics.ObserveSync(job.op, s.clock().Sub(started), err)
		if err != nil {
			s.logg.Error(ctx, "storefront.sync.failed", err)
		}
		s.publishSync(SyncResult{Op: job.op, Err: err})
		job.ticket.resolve(err)
	}
}

// SubscribeSync registers fn for remote sync results. Calls come from the
// sync worker goroutine in job order.
func (s *Store) SubscribeSync(fn func(SyncResult)) (unsubscribe func()) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	id := s.nextSubID.Add(1)
	s.syncSubs = append(s.syncSubs, syncSubscriber{id: id, fn: fn})
	return func() {
		s.syncMu.Lock()
		defer s.syncMu.Unlock()
		for i, sub := range s.syncSubs {
			if sub.id == id {
				s.syncSubs = append(s.syncSubs[:i:i], s.syncSubs[i+1:]...)
				return
			}
		}
	}
}

type syncSubscriber struct {
	id int64
	fn func(SyncResult)
}

func (s *Store) publishSync(result SyncResult) {
	s.syncMu.Lock()
	subs := append([]syncSubscriber(nil), s.syncSubs...)
	s.syncMu.Unlock()
	for _, sub := range subs {
		sub.fn(result)
	}
}

// Close stops accepting sync jobs and waits for the queued ones to finish.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.workerDone
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.workerDone
}
