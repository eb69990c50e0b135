// Package engine owns the service request collection and the state machine
// that moves a request through its lifecycle. It is the only place allowed
// to change a request's status. After each applied transition the updated
// collection is persisted, then feed events go out, in that order.
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"freshnest/internal/domain"
	"freshnest/internal/fault"
	"freshnest/internal/log"
	"freshnest/internal/notify"
	"freshnest/internal/seed"
	"freshnest/internal/store"
)

// errNoop marks a duplicate call that should succeed without changing
// anything, such as a cleaner re-applying to a request it already holds.
var errNoop = errors.New("noop")

type Engine struct {
	mu    sync.Mutex
	items []domain.ServiceRequest

	port   store.Store
	notify *notify.Store

	// Now stamps transition timestamps and is swappable in tests.
	Now func() time.Time
	// Pause runs between accepting an operation and applying it, standing in
	// for storage or network latency. When it returns the request is looked
	// up again and the transition re-checked; a request that moved on in the
	// meantime wins and the late effect is dropped without error. A non-nil
	// return abandons the operation.
	Pause func(context.Context) error

	Log zerolog.Logger
}

// New loads the persisted request collection, seeding it when absent or
// unreadable.
func New(ctx context.Context, port store.Store, n *notify.Store) *Engine {
	e := &Engine{
		port:   port,
		notify: n,
		Now:    time.Now,
		Log:    log.WithComponent("engine"),
	}
	if !port.Load(ctx, store.KeyRequests, &e.items) {
		e.items = seed.Requests(e.now())
	}
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// CreateInput carries everything a host supplies when posting a request.
// The asset fields are copied onto the request and never track later edits.
type CreateInput struct {
	HostID       string
	HostName     string
	HostAvatar   string
	Asset        domain.AssetSnapshot
	Schedule     domain.Schedule
	Price        int
	Instructions string
}

// CleanerRef is the denormalized identity stamped onto a request when a
// cleaner applies.
type CleanerRef struct {
	ID     string
	Name   string
	Avatar string
}

// Create posts a new request in the pending state.
func (e *Engine) Create(ctx context.Context, in CreateInput) (domain.ServiceRequest, error) {
	switch {
	case in.HostID == "":
		return domain.ServiceRequest{}, fault.NewValidation("host_id", "is required")
	case in.Price <= 0:
		return domain.ServiceRequest{}, fault.NewValidation("price", "must be a positive amount")
	case in.Asset.Name == "":
		return domain.ServiceRequest{}, fault.NewValidation("asset.name", "is required")
	case in.Schedule.Date == "":
		return domain.ServiceRequest{}, fault.NewValidation("schedule.date", "is required")
	case in.Schedule.Time == "":
		return domain.ServiceRequest{}, fault.NewValidation("schedule.time", "is required")
	case in.Schedule.Duration == "":
		return domain.ServiceRequest{}, fault.NewValidation("schedule.duration", "is required")
	}

	r := domain.ServiceRequest{
		ID:           uuid.New().String(),
		Asset:        in.Asset,
		HostID:       in.HostID,
		HostName:     in.HostName,
		HostAvatar:   in.HostAvatar,
		Schedule:     in.Schedule,
		Price:        in.Price,
		Status:       domain.StatusPending,
		Instructions: in.Instructions,
		CreatedAt:    e.stamp(),
	}

	e.mu.Lock()
	e.items = append(e.items, r)
	persistErr := e.persist(ctx)
	e.mu.Unlock()

	e.publish(ctx, notify.RequestCreated{
		RequestID: r.ID,
		AssetName: r.Asset.Name,
		Date:      r.Schedule.Date,
		Time:      r.Schedule.Time,
		Price:     r.Price,
	})
	return r, persistErr
}

// Apply assigns a cleaner to a pending request. A duplicate application by
// the cleaner already holding the request succeeds without effect, so a
// double-submitted form does not surface an error.
func (e *Engine) Apply(ctx context.Context, requestID string, cleaner CleanerRef) (domain.ServiceRequest, error) {
	if cleaner.ID == "" {
		return domain.ServiceRequest{}, fault.NewValidation("cleaner_id", "is required")
	}
	ts := ""
	r, applied, err := e.transition(ctx, requestID, "apply",
		func(r domain.ServiceRequest) error {
			if r.Status == domain.StatusApplied && r.CleanerID != nil && *r.CleanerID == cleaner.ID {
				return errNoop
			}
			if r.Status != domain.StatusPending || r.CleanerID != nil {
				return nil // handled by the default mismatch path
			}
			return errOK
		},
		func(r *domain.ServiceRequest) {
			ts = e.stamp()
			r.Status = domain.StatusApplied
			r.CleanerID = &cleaner.ID
			r.CleanerName = &cleaner.Name
			r.CleanerAvatar = &cleaner.Avatar
			r.AppliedAt = &ts
		})
	if applied {
		e.publish(ctx, notify.RequestApplied{
			RequestID:   r.ID,
			CleanerName: cleaner.Name,
			AssetName:   r.Asset.Name,
		})
	}
	return r, err
}

// Withdraw returns an applied request to pending; the cleaner fields and
// application timestamp are cleared.
func (e *Engine) Withdraw(ctx context.Context, requestID string) (domain.ServiceRequest, error) {
	r, _, err := e.transition(ctx, requestID, "withdraw",
		fromStatus(domain.StatusApplied),
		clearApplication)
	return r, err
}

// Reject returns an applied request to pending and tells the rejected
// cleaner.
func (e *Engine) Reject(ctx context.Context, requestID string) (domain.ServiceRequest, error) {
	r, applied, err := e.transition(ctx, requestID, "reject",
		fromStatus(domain.StatusApplied),
		clearApplication)
	if applied {
		e.publish(ctx, notify.RequestRejected{RequestID: r.ID, AssetName: r.Asset.Name})
	}
	return r, err
}

// Confirm accepts the current application. Only the request's host may
// confirm.
func (e *Engine) Confirm(ctx context.Context, requestID, callerID string) (domain.ServiceRequest, error) {
	ts := ""
	r, applied, err := e.transition(ctx, requestID, "confirm",
		func(r domain.ServiceRequest) error {
			if r.HostID != callerID {
				return fault.NewValidation("caller", "only the request's host can confirm")
			}
			return fromStatus(domain.StatusApplied)(r)
		},
		func(r *domain.ServiceRequest) {
			ts = e.stamp()
			r.Status = domain.StatusConfirmed
			r.ConfirmedAt = &ts
		})
	if applied {
		e.publish(ctx, notify.RequestConfirmed{
			RequestID: r.ID,
			HostName:  r.HostName,
			AssetName: r.Asset.Name,
		})
	}
	return r, err
}

// Start moves a confirmed request into execution. Only the assigned cleaner
// may start.
func (e *Engine) Start(ctx context.Context, requestID, callerID string) (domain.ServiceRequest, error) {
	ts := ""
	r, applied, err := e.transition(ctx, requestID, "start",
		func(r domain.ServiceRequest) error {
			if r.CleanerID == nil || *r.CleanerID != callerID {
				return fault.NewValidation("caller", "only the assigned cleaner can start")
			}
			return fromStatus(domain.StatusConfirmed)(r)
		},
		func(r *domain.ServiceRequest) {
			ts = e.stamp()
			r.Status = domain.StatusInProgress
			r.StartedAt = &ts
		})
	if applied {
		e.publish(ctx, notify.RequestStarted{
			RequestID:   r.ID,
			CleanerName: deref(r.CleanerName),
			AssetName:   r.Asset.Name,
		})
	}
	return r, err
}

// Complete marks an in-progress request as done.
func (e *Engine) Complete(ctx context.Context, requestID string) (domain.ServiceRequest, error) {
	ts := ""
	r, applied, err := e.transition(ctx, requestID, "complete",
		fromStatus(domain.StatusInProgress),
		func(r *domain.ServiceRequest) {
			ts = e.stamp()
			r.Status = domain.StatusCompleted
			r.CompletedAt = &ts
		})
	if applied {
		e.publish(ctx, notify.RequestCompleted{RequestID: r.ID, AssetName: r.Asset.Name})
	}
	return r, err
}

// Rate scores a completed request. Rating and review are written exactly
// once; a rated request is terminal.
func (e *Engine) Rate(ctx context.Context, requestID string, rating int, review string) (domain.ServiceRequest, error) {
	if rating < 1 || rating > 5 {
		return domain.ServiceRequest{}, fault.NewValidation("rating", "must be between 1 and 5")
	}
	r, applied, err := e.transition(ctx, requestID, "rate",
		fromStatus(domain.StatusCompleted),
		func(r *domain.ServiceRequest) {
			r.Status = domain.StatusRated
			r.Rating = &rating
			if review != "" {
				r.Review = &review
			}
		})
	if applied {
		e.publish(ctx, notify.RequestRated{
			RequestID: r.ID,
			HostName:  r.HostName,
			AssetName: r.Asset.Name,
			Rating:    rating,
		})
	}
	return r, err
}

// Cancel moves any non-terminal request to cancelled. Cancelling an already
// cancelled request succeeds without effect. Cleaner fields are left as they
// were so the record keeps its history.
func (e *Engine) Cancel(ctx context.Context, requestID string) (domain.ServiceRequest, error) {
	r, _, err := e.transition(ctx, requestID, "cancel",
		func(r domain.ServiceRequest) error {
			if r.Status == domain.StatusCancelled {
				return errNoop
			}
			if r.Status == domain.StatusRated {
				return nil
			}
			return errOK
		},
		func(r *domain.ServiceRequest) {
			r.Status = domain.StatusCancelled
		})
	return r, err
}

// errOK is returned by a check to signal the transition may proceed. A nil
// return means the source state does not match and the default
// InvalidTransitionError applies.
var errOK = errors.New("ok")

// fromStatus builds the common check that the request sits exactly in want.
func fromStatus(want domain.Status) func(domain.ServiceRequest) error {
	return func(r domain.ServiceRequest) error {
		if r.Status != want {
			return nil
		}
		return errOK
	}
}

func clearApplication(r *domain.ServiceRequest) {
	r.Status = domain.StatusPending
	r.CleanerID = nil
	r.CleanerName = nil
	r.CleanerAvatar = nil
	r.AppliedAt = nil
}

// transition runs the accept/pause/apply cycle shared by every mutating
// operation. check decides whether the transition may proceed from the
// request's current state: errOK proceeds, errNoop succeeds without effect,
// nil maps to InvalidTransitionError, anything else is surfaced as-is. When
// Pause is set the check runs again afterwards; a request that no longer
// matches is left alone and the stored state is returned with no error.
func (e *Engine) transition(ctx context.Context, id, op string, check func(domain.ServiceRequest) error, mutate func(*domain.ServiceRequest)) (domain.ServiceRequest, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.index(id)
	if idx < 0 {
		return domain.ServiceRequest{}, false, &fault.NotFoundError{Kind: "request", ID: id}
	}
	switch err := check(e.items[idx]); {
	case errors.Is(err, errNoop):
		return e.items[idx], false, nil
	case err == nil:
		return domain.ServiceRequest{}, false, &fault.InvalidTransitionError{RequestID: id, From: string(e.items[idx].Status), Op: op}
	case !errors.Is(err, errOK):
		return domain.ServiceRequest{}, false, err
	}

	if e.Pause != nil {
		// The lock is dropped only for the pause itself; the check runs
		// again afterwards against whatever state the world is in now.
		e.mu.Unlock()
		pauseErr := e.Pause(ctx)
		e.mu.Lock()
		if pauseErr != nil {
			return domain.ServiceRequest{}, false, pauseErr
		}
		idx = e.index(id)
		if idx < 0 {
			e.Log.Debug().Str("request_id", id).Str("op", op).Msg("late effect dropped, request gone")
			return domain.ServiceRequest{}, false, nil
		}
		if err := check(e.items[idx]); !errors.Is(err, errOK) {
			r := e.items[idx]
			e.Log.Debug().Str("request_id", id).Str("op", op).Str("status", string(r.Status)).Msg("late effect dropped, request moved on")
			return r, false, nil
		}
	}

	mutate(&e.items[idx])
	r := e.items[idx]
	persistErr := e.persist(ctx)
	return r, true, persistErr
}

// publish sends a feed event after a transition has been stored. A feed
// failure never fails the operation that triggered it.
func (e *Engine) publish(ctx context.Context, p notify.Payload) {
	if e.notify == nil {
		return
	}
	if _, err := e.notify.Publish(ctx, p); err != nil {
		e.Log.Warn().Err(err).Msg("feed event not recorded")
	}
}

// ByID returns a single request.
func (e *Engine) ByID(id string) (domain.ServiceRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.index(id); idx >= 0 {
		return e.items[idx], nil
	}
	return domain.ServiceRequest{}, &fault.NotFoundError{Kind: "request", ID: id}
}

// All returns the full collection, newest first.
func (e *Engine) All() []domain.ServiceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(domain.ServiceRequest) bool { return true })
}

// ByStatus returns the requests in the given status belonging to the actor,
// scoped by which side of the marketplace it acts on.
func (e *Engine) ByStatus(status domain.Status, role domain.Role, actorID string) []domain.ServiceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(r domain.ServiceRequest) bool {
		return r.Status == status && owns(r, role, actorID)
	})
}

// Available returns the unassigned pending requests any cleaner can apply to.
func (e *Engine) Available() []domain.ServiceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(r domain.ServiceRequest) bool {
		return r.Status == domain.StatusPending && r.CleanerID == nil
	})
}

// MyApplications returns the requests the cleaner has applied to and that
// still await a host decision.
func (e *Engine) MyApplications(cleanerID string) []domain.ServiceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(r domain.ServiceRequest) bool {
		return r.Status == domain.StatusApplied && owns(r, domain.RoleCleaner, cleanerID)
	})
}

// ActiveFor returns the cleaner's confirmed and in-progress requests.
func (e *Engine) ActiveFor(cleanerID string) []domain.ServiceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(r domain.ServiceRequest) bool {
		return (r.Status == domain.StatusConfirmed || r.Status == domain.StatusInProgress) &&
			owns(r, domain.RoleCleaner, cleanerID)
	})
}

// PastFor returns the actor's completed and rated requests.
func (e *Engine) PastFor(role domain.Role, actorID string) []domain.ServiceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(r domain.ServiceRequest) bool {
		return (r.Status == domain.StatusCompleted || r.Status == domain.StatusRated) &&
			owns(r, role, actorID)
	})
}

// Reset restores the seed collection.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = seed.Requests(e.now())
	return e.persist(ctx)
}

func owns(r domain.ServiceRequest, role domain.Role, actorID string) bool {
	if role == domain.RoleHost {
		return r.HostID == actorID
	}
	return r.CleanerID != nil && *r.CleanerID == actorID
}

// index is called with the mutex held.
func (e *Engine) index(id string) int {
	for i := range e.items {
		if e.items[i].ID == id {
			return i
		}
	}
	return -1
}

// sorted is called with the mutex held and copies the matching requests,
// most recently created first.
func (e *Engine) sorted(match func(domain.ServiceRequest) bool) []domain.ServiceRequest {
	res := make([]domain.ServiceRequest, 0)
	for _, r := range e.items {
		if match(r) {
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt > res[j].CreatedAt })
	return res
}

// persist is called with the mutex held.
func (e *Engine) persist(ctx context.Context) error {
	if err := e.port.Save(ctx, store.KeyRequests, e.items); err != nil {
		e.Log.Warn().Err(err).Msg("request collection not persisted; in-memory state stands")
		return err
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
