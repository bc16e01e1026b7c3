package history

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/safeshell/internal/bus"
	"github.com/normanking/safeshell/internal/logging"
)

// appendTimeout bounds each background append so a wedged database
// cannot pile up subscriber work.
const appendTimeout = 5 * time.Second

// Recorder persists executed, blocked and failed commands as they are
// published on the bus.
type Recorder struct {
	store *Store
	b     *bus.Bus
	subs  []bus.SubscriptionID
}

// NewRecorder attaches a recorder to the bus.
func NewRecorder(store *Store, b *bus.Bus) *Recorder {
	r := &Recorder{store: store, b: b}
	for _, et := range []bus.EventType{
		bus.EventCommandExecuted,
		bus.EventCommandBlocked,
		bus.EventCommandFailed,
	} {
		r.subs = append(r.subs, b.Subscribe(et, r.record))
	}
	return r
}

// record runs on the bus subscriber goroutine. The append uses a
// detached timeout context so an interrupted pipeline call cannot
// cancel the write that documents it.
func (r *Recorder) record(event bus.Event) {
	rec := &Record{
		RequestID:  event.RequestID,
		SessionID:  event.SessionID,
		Command:    event.Command,
		Verb:       event.Verb,
		Tier:       event.Tier,
		Platform:   event.Platform,
		Outcome:    outcomeFor(event.Type),
		ExitCode:   event.ExitCode,
		DurationMs: event.DurationMs,
		Error:      event.Error,
		ExecutedAt: event.Timestamp,
	}
	if rec.Error == "" && event.Details != "" && event.Type != bus.EventCommandExecuted {
		rec.Error = event.Details
	}

	ctx, cancel := logging.DetachContextWithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := r.store.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Str("command", rec.Command).Msg("history append failed")
	}
}

func outcomeFor(t bus.EventType) string {
	switch t {
	case bus.EventCommandBlocked:
		return OutcomeBlocked
	case bus.EventCommandFailed:
		return OutcomeFailed
	default:
		return OutcomeExecuted
	}
}

// Detach removes the recorder's bus subscriptions.
func (r *Recorder) Detach() {
	for _, id := range r.subs {
		r.b.Unsubscribe(id)
	}
	r.subs = nil
}
