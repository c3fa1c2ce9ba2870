// Package semtracker keeps the history of secondary electron multiplier
// (SEM) voltages and warns when the voltage drifts upward, which is the
// usual sign of an aging detector.
//
// The history is a bounded, append only list persisted as a JSON array
// under one key of an external key-value Store.
package semtracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/524D/rgadiag/internal/metadata"
)

// HistoryKey is the store key of the serialized history
const HistoryKey = "rga_sem_history"

// Retention and evaluation window
const (
	DefaultCapacity = 100
	minEntries      = 5
	window          = 10
)

// Voltage increase thresholds over the evaluation window
const (
	criticalDrift = 300.0
	warningDrift  = 150.0
	infoDrift     = 50.0
)

// ErrNotFound is returned by a Store when the key does not exist
var ErrNotFound = errors.New("semtracker: key not found")

// Store is the persistence port of the tracker
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Entry is one recorded SEM voltage
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Voltage   float64   `json:"voltage"`
}

// Severity of an aging warning
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Warning is the result of CheckAging
type Warning struct {
	Severity       Severity `json:"severity"`
	Drift          float64  `json:"drift"` // V, newest - oldest in the window
	Entries        int      `json:"entries"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Tracker owns the SEM history. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	key      string
	capacity int
	entries  []Entry
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithKey overrides the store key
func WithKey(key string) Option {
	return func(t *Tracker) { t.key = key }
}

// WithCapacity overrides the number of retained entries
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// WithClock sets the time source for new entries
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a tracker and loads the persisted history
func New(ctx context.Context, store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	t := &Tracker{
		store:    store,
		key:      HistoryKey,
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	entries, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	t.entries = entries
	return t, nil
}

func (t *Tracker) load(ctx context.Context) ([]Entry, error) {
	raw, err := t.store.Get(ctx, t.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("semtracker: load history: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("semtracker: decode history: %w", err)
	}
	return entries, nil
}

// AddEntry records the SEM voltage of md. Without a voltage nothing is
// recorded and false is returned. Reload, append and persist happen
// under one lock, so concurrent analyses cannot lose entries.
func (t *Tracker) AddEntry(ctx context.Context, md metadata.Metadata) (bool, error) {
	if md.SEMVoltage == nil {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.load(ctx)
	if err != nil {
		return false, err
	}
	entries = append(entries, Entry{
		Timestamp: t.now().UTC(),
		Source:    md.Source,
		Voltage:   *md.SEMVoltage,
	})
	if len(entries) > t.capacity {
		entries = entries[len(entries)-t.capacity:]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("semtracker: encode history: %w", err)
	}
	if err := t.store.Set(ctx, t.key, string(data)); err != nil {
		return false, fmt.Errorf("semtracker: persist history: %w", err)
	}
	t.entries = entries
	t.logger.Debug("SEM voltage recorded", "voltage", *md.SEMVoltage, "source", md.Source, "entries", len(entries))
	return true, nil
}

// Entries returns a copy of the history, oldest first
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// CheckAging compares the oldest and newest voltage of the most recent
// entries. Fewer than five entries never produce a warning.
func (t *Tracker) CheckAging() Warning {
	t.mu.Lock()
	entries := t.entries
	t.mu.Unlock()
	return checkAging(entries)
}

func checkAging(entries []Entry) Warning {
	n := len(entries)
	if n < minEntries {
		return Warning{
			Severity: SeverityNone,
			Entries:  n,
			Message:  fmt.Sprintf("not enough SEM history (%d of %d entries)", n, minEntries),
		}
	}
	recent := entries
	if n > window {
		recent = entries[n-window:]
	}
	drift := recent[len(recent)-1].Voltage - recent[0].Voltage
	w := Warning{Drift: drift, Entries: len(recent)}
	switch {
	case drift > criticalDrift:
		w.Severity = SeverityCritical
		w.Message = fmt.Sprintf("SEM voltage rose by %.0f V: multiplier is near end of life", drift)
		w.Recommendation = "Replace the SEM and recalibrate the instrument."
	case drift > warningDrift:
		w.Severity = SeverityWarning
		w.Message = fmt.Sprintf("SEM voltage rose by %.0f V: significant detector aging", drift)
		w.Recommendation = "Plan SEM replacement and check the sensitivity calibration."
	case drift > infoDrift:
		w.Severity = SeverityInfo
		w.Message = fmt.Sprintf("SEM voltage rose by %.0f V: normal aging", drift)
		w.Recommendation = "Keep monitoring the SEM voltage."
	default:
		w.Severity = SeverityNone
		w.Message = fmt.Sprintf("SEM voltage stable (drift %.0f V)", drift)
	}
	return w
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
