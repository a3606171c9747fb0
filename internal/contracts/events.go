package contracts

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage names an ingestion milestone.
type Stage string

// Ingestion stages in the order they complete.
const (
	StageSegmented Stage = "segmented"
	StageExtracted Stage = "extracted"
	StageIndexed   Stage = "indexed"
	StageCommitted Stage = "committed"
	StageFailed    Stage = "failed"
)

// Stages returns every stage, ending with failed.
func Stages() []Stage {
	return []Stage{StageSegmented, StageExtracted, StageIndexed, StageCommitted, StageFailed}
}

// Event reports a completed ingestion stage. Count is the number of chunks
// for segmented and indexed, and the number of clauses for extracted.
type Event struct {
	ContractID uuid.UUID `json:"contract_id"`
	Filename   string    `json:"filename"`
	Stage      Stage     `json:"stage"`
	Count      int       `json:"count,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

const subscriberBuffer = 64

// broker fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	logger *slog.Logger
}

func newBroker(logger *slog.Logger) *broker {
	return &broker{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *broker) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("event dropped", "subscriber", id, "stage", e.Stage, "contract", e.ContractID)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
