package session

import (
	"context"
	"fmt"

	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
)

// Slots is the slot-partitioned view of one browser's persistent area as
// seen by one application. Missing slots are reported as absent, never as errors.
type Slots interface {
	Get(ctx context.Context, slot string) (string, bool, error)
	Set(ctx context.Context, slot, value string) error
	Remove(ctx context.Context, slot string) error
	ClearScoped(ctx context.Context) error
	ClearShared(ctx context.Context) error
}

// Backend is the raw key-value area shared by every application.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// Layout decides which namespace a slot belongs to.
type Layout struct {
	shared map[string]struct{}
	order  []string
	scoped map[string][]string
}

// NewLayout builds a layout from configuration.
func NewLayout(cfg config.SlotsConfig) Layout {
	l := Layout{
		shared: make(map[string]struct{}, len(cfg.Shared)),
		order:  append([]string{}, cfg.Shared...),
		scoped: make(map[string][]string, len(cfg.Scoped)),
	}
	for _, slot := range cfg.Shared {
		l.shared[slot] = struct{}{}
	}
	for app, slots := range cfg.Scoped {
		l.scoped[app] = append([]string{}, slots...)
	}
	return l
}

// Namespace reports the namespace of slot. Unknown slots are scoped.
func (l Layout) Namespace(slot string) domain.Namespace {
	if _, ok := l.shared[slot]; ok {
		return domain.NamespaceShared
	}
	return domain.NamespaceScoped
}

// SharedSlots returns the shared slot names.
func (l Layout) SharedSlots() []string {
	return append([]string{}, l.order...)
}

// ScopedSlots returns the slots owned by app.
func (l Layout) ScopedSlots(app string) []string {
	return append([]string{}, l.scoped[app]...)
}

// Factory hands out stores bound to a browser and application.
type Factory struct {
	backend    Backend
	layout     Layout
	prefix     string
	app        string
	dispatcher events.Dispatcher
}

// NewFactory constructs a factory for app. dispatcher may be nil.
func NewFactory(backend Backend, layout Layout, prefix, app string, dispatcher events.Dispatcher) *Factory {
	return &Factory{backend: backend, layout: layout, prefix: prefix, app: app, dispatcher: dispatcher}
}

// For returns the store of browserID.
func (f *Factory) For(browserID string) *Store {
	return &Store{
		backend:    f.backend,
		layout:     f.layout,
		prefix:     f.prefix,
		browserID:  browserID,
		app:        f.app,
		dispatcher: f.dispatcher,
	}
}

// App returns the application the factory serves.
func (f *Factory) App() string {
	return f.app
}

// Backend exposes the raw backend for health checks.
func (f *Factory) Backend() Backend {
	return f.backend
}

// Store implements Slots over a Backend.
type Store struct {
	backend    Backend
	layout     Layout
	prefix     string
	browserID  string
	app        string
	dispatcher events.Dispatcher
}

// BrowserID returns the browser the store is bound to.
func (s *Store) BrowserID() string {
	return s.browserID
}

// App returns the owning application.
func (s *Store) App() string {
	return s.app
}

func (s *Store) key(slot string) string {
	if s.layout.Namespace(slot) == domain.NamespaceShared {
		return fmt.Sprintf("%s%s:shared:%s", s.prefix, s.browserID, slot)
	}
	return s.scopedPrefix() + slot
}

func (s *Store) scopedPrefix() string {
	return fmt.Sprintf("%s%s:app:%s:", s.prefix, s.browserID, s.app)
}

// Get returns the slot value and whether it was present.
func (s *Store) Get(ctx context.Context, slot string) (string, bool, error) {
	val, ok, err := s.backend.Get(ctx, s.key(slot))
	if err != nil {
		return "", false, fmt.Errorf("get slot %s: %w", slot, err)
	}
	return val, ok, nil
}

// Set writes the slot.
func (s *Store) Set(ctx context.Context, slot, value string) error {
	if err := s.backend.Set(ctx, s.key(slot), value); err != nil {
		return fmt.Errorf("set slot %s: %w", slot, err)
	}
	s.notify(ctx, slot, false)
	return nil
}

// Remove deletes the slot; removing an absent slot is not an error.
func (s *Store) Remove(ctx context.Context, slot string) error {
	if err := s.backend.Delete(ctx, s.key(slot)); err != nil {
		return fmt.Errorf("remove slot %s: %w", slot, err)
	}
	s.notify(ctx, slot, true)
	return nil
}

// ClearScoped removes every slot this application wrote outside the shared
// namespace, including slots the layout does not list.
func (s *Store) ClearScoped(ctx context.Context) error {
	if err := s.backend.DeletePrefix(ctx, s.scopedPrefix()); err != nil {
		return fmt.Errorf("clear scoped slots: %w", err)
	}
	for _, slot := range s.layout.ScopedSlots(s.app) {
		s.notify(ctx, slot, true)
	}
	return nil
}

// ClearShared removes the shared slots.
func (s *Store) ClearShared(ctx context.Context) error {
	return s.clear(ctx, s.layout.SharedSlots())
}

func (s *Store) clear(ctx context.Context, slots []string) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, s.key(slot))
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}
	for _, slot := range slots {
		s.notify(ctx, slot, true)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, slot string, removed bool) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventSlotChanged, s.browserID, s.app, events.SlotChangedPayload{
		Slot:      slot,
		Namespace: s.layout.Namespace(slot),
		Removed:   removed,
	}))
}
