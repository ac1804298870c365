// Package reconcile keeps one chat message per workflow run.
//
// For every event it either posts a new message or edits the one already
// associated with the run, and drops the association once the run completes.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"runrelay/internal/eventbus"
	"runrelay/internal/render"
	"runrelay/internal/storage"
	"runrelay/internal/transport"
	"runrelay/internal/workflow"
	logx "runrelay/pkg/logx"
)

// Kind is the message operation a reconciliation performed.
type Kind int

const (
	Created Kind = iota + 1
	Updated
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Outcome describes a successful reconciliation.
type Outcome struct {
	Kind      Kind
	RunID     string
	MessageID transport.MessageID
	// Forgotten is set when the association was deleted (terminal action).
	Forgotten bool
	// Orphaned is set when a concurrent request stored its message first;
	// the message this call created is left as is.
	Orphaned bool
}

// RelayEvent is the bus payload for relay.* events.
type RelayEvent struct {
	RunID     string
	MessageID string
	Action    string
	Kind      string
	Count     int
	Took      time.Duration
	Error     string
}

// Reconciler owns every mutation of the association store.
type Reconciler struct {
	store  storage.Store
	sender transport.Sender
	bus    eventbus.Bus
	log    logx.Logger
	now    func() time.Time
}

// New wires a Reconciler. A nil bus discards events.
func New(store storage.Store, sender transport.Sender, bus eventbus.Bus, log logx.Logger) *Reconciler {
	if bus == nil {
		bus = eventbus.Nop()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		store:  store,
		sender: sender,
		bus:    bus,
		log:    log.With(logx.String("comp", "reconcile")),
		now:    time.Now,
	}
}

// Reconcile projects ev onto the chat channel. It makes at most one
// transport call and never retries.
func (r *Reconciler) Reconcile(ctx context.Context, ev workflow.Event) (Outcome, error) {
	start := r.now()
	out, err := r.reconcile(ctx, ev)
	took := r.now().Sub(start)

	if err != nil {
		r.log.Warn("relay failed",
			logx.String("run_id", ev.RunID),
			logx.String("action", string(ev.Action)),
			logx.Duration("took", took),
			logx.Err(err),
		)
		r.publish(eventbus.TypeRelayFailed, RelayEvent{RunID: ev.RunID, Action: string(ev.Action), Took: took, Error: err.Error()})
		return Outcome{}, err
	}

	r.log.Info("relayed",
		logx.String("run_id", out.RunID),
		logx.String("action", string(ev.Action)),
		logx.String("kind", out.Kind.String()),
		logx.String("message_id", string(out.MessageID)),
		logx.Duration("took", took),
	)
	typ := eventbus.TypeRelayUpdated
	if out.Kind == Created {
		typ = eventbus.TypeRelayCreated
	}
	r.publish(typ, RelayEvent{RunID: out.RunID, MessageID: string(out.MessageID), Action: string(ev.Action), Kind: out.Kind.String(), Took: took})
	if out.Forgotten {
		r.publish(eventbus.TypeRelayForgotten, RelayEvent{RunID: out.RunID, MessageID: string(out.MessageID), Action: string(ev.Action)})
	}
	return out, nil
}

func (r *Reconciler) reconcile(ctx context.Context, ev workflow.Event) (Outcome, error) {
	runID := ev.RunID
	assoc, found, err := r.store.Get(ctx, runID)
	if err != nil {
		return Outcome{}, storeErr("get", runID, err)
	}

	payload := render.Render(ev)
	out := Outcome{RunID: runID}

	if found {
		id, err := r.sender.Send(ctx, payload, transport.Update{MessageID: transport.MessageID(assoc.MessageID)})
		if err != nil {
			return Outcome{}, transportErr("update", runID, err)
		}
		out.Kind = Updated
		out.MessageID = id
	} else {
		id, err := r.sender.Send(ctx, payload, transport.Create{})
		if err != nil {
			return Outcome{}, transportErr("create", runID, err)
		}
		out.Kind = Created
		out.MessageID = id

		stored, err := r.store.Put(ctx, storage.Association{RunID: runID, MessageID: string(id), CreatedAt: r.now()})
		if err != nil {
			r.log.Warn("message posted but association not stored",
				logx.String("run_id", runID),
				logx.String("message_id", string(id)),
			)
			return Outcome{}, storeErr("put", runID, err)
		}
		if stored.MessageID != string(id) {
			out.Orphaned = true
			r.log.Warn("concurrent first event, message orphaned",
				logx.String("run_id", runID),
				logx.String("orphan_id", string(id)),
				logx.String("kept_id", stored.MessageID),
			)
		}
	}

	if ev.Action.IsTerminal() {
		if err := r.store.Delete(ctx, runID); err != nil {
			return Outcome{}, storeErr("delete", runID, err)
		}
		out.Forgotten = true
	}
	return out, nil
}

// Forget drops the association for runID so the next event posts a new
// message. Forgetting an unknown run is not an error.
func (r *Reconciler) Forget(ctx context.Context, runID string) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := r.store.Delete(ctx, runID); err != nil {
		return storeErr("delete", runID, err)
	}
	r.log.Info("association forgotten", logx.String("run_id", runID))
	r.publish(eventbus.TypeRelayForgotten, RelayEvent{RunID: runID})
	return nil
}

// Expire drops associations older than maxAge, i.e. runs whose completed
// event never arrived.
func (r *Reconciler) Expire(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, errors.New("max age must be positive")
	}
	n, err := r.store.Expire(ctx, r.now().Add(-maxAge))
	if err != nil {
		return n, storeErr("expire", "", err)
	}
	if n > 0 {
		r.log.Info("associations expired", logx.Int("count", n), logx.Duration("max_age", maxAge))
	}
	r.publish(eventbus.TypeRelayExpired, RelayEvent{Count: n})
	return n, nil
}

func (r *Reconciler) publish(typ string, data RelayEvent) {
	r.bus.Publish(eventbus.Event{Type: typ, Time: r.now(), Data: data})
}
