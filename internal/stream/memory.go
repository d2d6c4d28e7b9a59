package stream

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nikolayk812/cartflow/internal/port"
)

type memEntry struct {
	seq    uint64
	id     string
	fields []port.Field
}

type memPending struct {
	consumer    string
	deliveredAt time.Time
	deliveries  int64
}

type memGroup struct {
	lastDelivered uint64
	pending       map[string]*memPending
}

type memStream struct {
	nextSeq uint64
	entries []memEntry
	groups  map[string]*memGroup
}

// MemoryBroker is an in-process log with consumer groups, pending lists and
// delivery counts.
type MemoryBroker struct {
	mu      sync.Mutex
	streams map[string]*memStream
	notify  chan struct{}
	now     func() time.Time
}

func NewMemory() *MemoryBroker {
	return &MemoryBroker{
		streams: make(map[string]*memStream),
		notify:  make(chan struct{}),
		now:     time.Now,
	}
}

func (b *MemoryBroker) stream(name string) *memStream {
	s, ok := b.streams[name]
	if !ok {
		s = &memStream{groups: make(map[string]*memGroup)}
		b.streams[name] = s
	}
	return s
}

func (b *MemoryBroker) EnsureGroup(_ context.Context, stream, group string) error {
	if stream == "" || group == "" {
		return fmt.Errorf("stream or group is empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stream(stream)
	if _, ok := s.groups[group]; !ok {
		s.groups[group] = &memGroup{pending: make(map[string]*memPending)}
	}
	return nil
}

func (b *MemoryBroker) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]port.Entry, error) {
	var timeout <-chan time.Time
	if block > 0 {
		t := time.NewTimer(block)
		defer t.Stop()
		timeout = t.C
	}

	for {
		b.mu.Lock()
		entries, err := b.deliverLocked(stream, group, consumer, count)
		wait := b.notify
		b.mu.Unlock()

		if err != nil || len(entries) > 0 || block <= 0 {
			return entries, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		case <-wait:
		}
	}
}

func (b *MemoryBroker) deliverLocked(stream, group, consumer string, count int64) ([]port.Entry, error) {
	s, ok := b.streams[stream]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such stream %q", stream)
	}
	g, ok := s.groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such group %q for stream %q", group, stream)
	}

	var out []port.Entry
	for _, e := range s.entries {
		if e.seq <= g.lastDelivered {
			continue
		}
		if count > 0 && int64(len(out)) >= count {
			break
		}
		g.lastDelivered = e.seq
		g.pending[e.id] = &memPending{consumer: consumer, deliveredAt: b.now(), deliveries: 1}
		out = append(out, port.Entry{ID: e.id, Fields: slices.Clone(e.fields), Deliveries: 1})
	}

	return out, nil
}

func (b *MemoryBroker) ClaimStale(_ context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]port.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil, nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such group %q for stream %q", group, stream)
	}

	now := b.now()
	var out []port.Entry
	for _, e := range s.entries {
		if count > 0 && int64(len(out)) >= count {
			break
		}
		p, ok := g.pending[e.id]
		if !ok || now.Sub(p.deliveredAt) < minIdle {
			continue
		}
		p.consumer = consumer
		p.deliveredAt = now
		p.deliveries++
		out = append(out, port.Entry{ID: e.id, Fields: slices.Clone(e.fields), Deliveries: p.deliveries})
	}

	return out, nil
}

func (b *MemoryBroker) Ack(_ context.Context, stream, group string, ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil
	}
	g, ok := s.groups[group]
	if !ok {
		return fmt.Errorf("NOGROUP no such group %q for stream %q", group, stream)
	}
	for _, id := range ids {
		delete(g.pending, id)
	}
	return nil
}

func (b *MemoryBroker) Delete(_ context.Context, stream string, ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil
	}
	s.entries = slices.DeleteFunc(s.entries, func(e memEntry) bool {
		return slices.Contains(ids, e.id)
	})
	return nil
}

func (b *MemoryBroker) Append(_ context.Context, stream string, fields []port.Field) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("fields is empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stream(stream)
	s.nextSeq++
	id := fmt.Sprintf("%d-%d", b.now().UnixMilli(), s.nextSeq)
	s.entries = append(s.entries, memEntry{seq: s.nextSeq, id: id, fields: slices.Clone(fields)})

	close(b.notify)
	b.notify = make(chan struct{})

	return id, nil
}

// Len returns the number of entries still in the log.
func (b *MemoryBroker) Len(stream string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[stream]; ok {
		return len(s.entries)
	}
	return 0
}

// Pending returns the number of delivered but unacknowledged entries.
func (b *MemoryBroker) Pending(stream, group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[stream]; ok {
		if g, ok := s.groups[group]; ok {
			return len(g.pending)
		}
	}
	return 0
}

// Groups returns the number of consumer groups on a stream.
func (b *MemoryBroker) Groups(stream string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[stream]; ok {
		return len(s.groups)
	}
	return 0
}

// Entries returns a copy of the log.
func (b *MemoryBroker) Entries(stream string) []port.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil
	}
	out := make([]port.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, port.Entry{ID: e.id, Fields: slices.Clone(e.fields)})
	}
	return out
}
