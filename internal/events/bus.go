// Package events implements the EventBus: an untyped, fire-and-forget sink
// for per-job progress, log, preview and error events. Publishing must
// never block the pipeline and must never fail it on a slow or gone
// subscriber, so every send is non-blocking and drops on a full channel.
package events

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies an Event's payload shape.
type Kind string

// Event kinds, mirroring the host-facing topic payloads.
const (
	KindLog      Kind = "log"
	KindProgress Kind = "progress"
	KindPreview  Kind = "preview"
	KindError    Kind = "error"
)

// LogPayload carries a single log line.
type LogPayload struct {
	Message string
}

// ProgressPayload carries the periodic progress snapshot. Optional fields
// use pointers so an undefined component can be omitted on the wire.
type ProgressPayload struct {
	Frame          int
	TotalFrames    *int
	Percent        float64
	FPS            *float64
	Speed          *float64
	OutTimeSeconds *float64
	ElapsedSeconds *float64
	ETASeconds     *float64
}

// PreviewPayload announces a freshly rendered preview image.
type PreviewPayload struct {
	Frame int
	Path  string
}

// ErrorPayload carries an error message.
type ErrorPayload struct {
	Message string
}

// Event is a single tagged event published for a job.
type Event struct {
	JobID    string
	Kind     Kind
	Log      *LogPayload
	Progress *ProgressPayload
	Preview  *PreviewPayload
	Error    *ErrorPayload
}

// NewLog constructs a Log event.
func NewLog(jobID, message string) Event {
	return Event{JobID: jobID, Kind: KindLog, Log: &LogPayload{Message: message}}
}

// NewError constructs an Error event.
func NewError(jobID, message string) Event {
	return Event{JobID: jobID, Kind: KindError, Error: &ErrorPayload{Message: message}}
}

// NewPreview constructs a Preview event.
func NewPreview(jobID string, frame int, path string) Event {
	return Event{JobID: jobID, Kind: KindPreview, Preview: &PreviewPayload{Frame: frame, Path: path}}
}

// subscriberBuffer is the per-subscriber channel capacity; events beyond
// this depth are dropped rather than blocking the publisher.
const subscriberBuffer = 100

// Subscriber receives events for a job (or, with an empty JobID, every
// job) until Unsubscribe closes it.
type Subscriber struct {
	ID     string
	JobID  string
	Events chan Event
}

// Bus is the process-wide EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a new Subscriber. An empty jobID subscribes to every
// job's events.
func (b *Bus) Subscribe(jobID string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:     newSubscriberID(),
		JobID:  jobID,
		Events: make(chan Event, subscriberBuffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

func newSubscriberID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish fans event out to every matching subscriber without blocking;
// a subscriber whose channel is full simply misses the event.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.JobID != "" && sub.JobID != event.JobID {
			continue
		}
		select {
		case sub.Events <- event:
		default:
		}
	}
}
