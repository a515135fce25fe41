// Package prefs holds the user's ordering, group overrides, pins and the
// nav-collapsed flag, and persists each as its own record.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/kvstore"
)

// Storage keys. The _v1 suffix versions each record independently.
const (
	OrderKey        = "app_collection_desktop_order_v1"
	GroupKey        = "app_collection_desktop_group_v1"
	PinnedKey       = "app_collection_desktop_pinned_v1"
	NavCollapsedKey = "app_collection_nav_collapsed_v1"
)

const writeTimeout = 5 * time.Second

// State is a snapshot of every persisted preference.
type State struct {
	Order        []string                 `json:"order"`
	Groups       map[string]apps.GroupKey `json:"groups"`
	Pinned       []string                 `json:"pinned"`
	NavCollapsed bool                     `json:"navCollapsed"`
}

func (s State) clone() State {
	groups := make(map[string]apps.GroupKey, len(s.Groups))
	for k, v := range s.Groups {
		groups[k] = v
	}
	return State{
		Order:        append([]string(nil), s.Order...),
		Groups:       groups,
		Pinned:       append([]string(nil), s.Pinned...),
		NavCollapsed: s.NavCollapsed,
	}
}

type write struct {
	key   string
	value []byte
	done  chan struct{}
}

// Store owns preference state. Every mutation replaces the affected
// record in the backing kvstore through a single background writer, so
// writes land in mutation order and the last one wins.
type Store struct {
	kv     kvstore.Store
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	live   []string
	closed bool

	writes chan write
	done   chan struct{}
}

// Open loads every record from kv and starts the writer. Records that are
// missing or unreadable start empty.
func Open(ctx context.Context, kv kvstore.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:     kv,
		logger: logger,
		state:  State{Groups: map[string]apps.GroupKey{}},
		writes: make(chan write, 64),
		done:   make(chan struct{}),
	}
	s.load(ctx)
	go s.writer()
	return s
}

func (s *Store) load(ctx context.Context) {
	var order, pinned []string
	if s.readJSON(ctx, OrderKey, &order) {
		s.state.Order = order
	}
	if s.readJSON(ctx, PinnedKey, &pinned) {
		s.state.Pinned = pinned
	}
	var raw map[string]string
	if s.readJSON(ctx, GroupKey, &raw) {
		for id, g := range raw {
			if key, err := apps.ParseGroup(g); err == nil {
				s.state.Groups[id] = key
			}
		}
	}
	if data, err := s.kv.Get(ctx, NavCollapsedKey); err == nil {
		s.state.NavCollapsed = string(data) == "1"
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Warn("failed to read preference", zap.String("key", NavCollapsedKey), zap.Error(err))
	}
}

func (s *Store) readJSON(ctx context.Context, key string, v any) bool {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("failed to read preference", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("ignoring corrupt preference", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) writer() {
	defer close(s.done)
	for w := range s.writes {
		if w.done != nil {
			close(w.done)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.kv.Set(ctx, w.key, w.value); err != nil {
			s.logger.Warn("failed to persist preference", zap.String("key", w.key), zap.Error(err))
		}
		cancel()
	}
}

// enqueue must be called with s.mu held so records queue in mutation
// order.
func (s *Store) enqueue(key string, value []byte) {
	if s.closed {
		return
	}
	s.writes <- write{key: key, value: value}
}

func (s *Store) persistList(key string, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	s.enqueue(key, data)
}

func (s *Store) persistGroups() {
	raw := make(map[string]string, len(s.state.Groups))
	for id, g := range s.state.Groups {
		raw[id] = string(g)
	}
	data, _ := json.Marshal(raw)
	s.enqueue(GroupKey, data)
}

// Flush waits until every write queued before the call has been applied.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	marker := write{done: make(chan struct{})}
	s.writes <- marker
	s.mu.Unlock()

	select {
	case <-marker.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to flush preferences: %w", ctx.Err())
	}
}

// Close drains queued writes and stops the writer.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()
	<-s.done
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Apply reconciles state with a new discovery result: the order is
// merged, pins and group overrides of vanished apps are dropped, and the
// pruned pins are written back.
func (s *Store) Apply(live []string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = append([]string(nil), live...)
	s.state.Order = Merge(s.state.Order, live)
	s.state.Pinned = Retain(s.state.Pinned, live)

	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}
	for id := range s.state.Groups {
		if !liveSet[id] {
			delete(s.state.Groups, id)
		}
	}
	s.persistList(PinnedKey, s.state.Pinned)
	return s.state.clone()
}

// Move places fromID at toID's position. It reports whether the order
// changed.
func (s *Store) Move(fromID, toID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fromID == toID || indexOf(s.state.Order, fromID) < 0 || indexOf(s.state.Order, toID) < 0 {
		return false
	}
	s.state.Order = MoveID(s.state.Order, fromID, toID)
	s.persistList(OrderKey, s.state.Order)
	return true
}

// ResetOrder replaces the order with natural discovery order.
func (s *Store) ResetOrder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Order = append([]string(nil), s.live...)
	s.persistList(OrderKey, s.state.Order)
}

// TogglePin unpins a pinned id or pins it at the front. It returns the new
// pinned state.
func (s *Store) TogglePin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pinned := indexOf(s.state.Pinned, id) >= 0
	if pinned {
		s.state.Pinned = without(s.state.Pinned, id)
	} else {
		s.state.Pinned = append([]string{id}, s.state.Pinned...)
	}
	s.persistList(PinnedKey, s.state.Pinned)
	return !pinned
}

// SetGroup overrides the detected group for id.
func (s *Store) SetGroup(id string, group apps.GroupKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Groups[id] = group
	s.persistGroups()
}

// ClearGroup removes an override so the detected group applies again.
func (s *Store) ClearGroup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Groups[id]; !ok {
		return
	}
	delete(s.state.Groups, id)
	s.persistGroups()
}

// ToggleNav flips the sidebar state and returns the new value.
func (s *Store) ToggleNav() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.NavCollapsed = !s.state.NavCollapsed
	v := "0"
	if s.state.NavCollapsed {
		v = "1"
	}
	s.enqueue(NavCollapsedKey, []byte(v))
	return s.state.NavCollapsed
}

// ResolveGroup returns the override for app, else its detected group.
func (s *Store) ResolveGroup(app apps.InstalledApp) apps.GroupKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolveGroup(s.state.Groups, app)
}

func resolveGroup(overrides map[string]apps.GroupKey, app apps.InstalledApp) apps.GroupKey {
	if g, ok := overrides[app.ID]; ok {
		return g
	}
	return apps.DetectGroup(app)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
