package devotion

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	clock Clock

	prayers     map[string]map[string]Prayer           // userID -> prayerID -> Prayer
	invocations map[string]map[string]Invocation       // userID -> invocationID -> Invocation
	options     map[string]map[string]InvocationOption // userID -> optionID -> option
	catalog     map[string]CatalogEntry
	profiles    map[string]Profile

	prayerFeed     feed[Prayer]
	invocationFeed feed[Invocation]
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
// Write timestamps come from clock; nil selects the system clock.
func NewMemoryRepository(clock Clock) Repository {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &memoryRepository{
		clock:          clock,
		prayers:        make(map[string]map[string]Prayer),
		invocations:    make(map[string]map[string]Invocation),
		options:        make(map[string]map[string]InvocationOption),
		catalog:        make(map[string]CatalogEntry),
		profiles:       make(map[string]Profile),
		prayerFeed:     newFeed[Prayer](),
		invocationFeed: newFeed[Invocation](),
	}
}

func (r *memoryRepository) serverTime() Timestamp {
	return TimestampFromMillis(r.clock.Now().UnixMilli())
}

// ===== Prayers =====

func (r *memoryRepository) CreatePrayer(_ context.Context, prayer Prayer) (Prayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userStore := ensureUserStore(r.prayers, prayer.UserID)
	if _, exists := userStore[prayer.ID]; exists {
		return Prayer{}, ErrConflict
	}

	prayer.Date = r.serverTime()
	userStore[prayer.ID] = prayer
	r.prayerFeed.publish(prayer.UserID, r.prayerSnapshotLocked(prayer.UserID))
	return prayer, nil
}

func (r *memoryRepository) UpdatePrayer(_ context.Context, userID, prayerID string, patch PrayerPatch) (Prayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prayer, ok := r.prayers[userID][prayerID]
	if !ok {
		return Prayer{}, ErrNotFound
	}
	if patch.Type != nil {
		prayer.Type = *patch.Type
	}
	if patch.Location != nil {
		prayer.Location = *patch.Location
	}
	if patch.Note != nil {
		prayer.Note = *patch.Note
	}
	if patch.OnTime != nil {
		prayer.OnTime = *patch.OnTime
	}
	r.prayers[userID][prayerID] = prayer
	r.prayerFeed.publish(userID, r.prayerSnapshotLocked(userID))
	return prayer, nil
}

func (r *memoryRepository) DeletePrayer(_ context.Context, userID, prayerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prayers[userID][prayerID]; !ok {
		return ErrNotFound
	}
	delete(r.prayers[userID], prayerID)
	r.prayerFeed.publish(userID, r.prayerSnapshotLocked(userID))
	return nil
}

func (r *memoryRepository) ListPrayers(_ context.Context, userID string) ([]Prayer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prayerSnapshotLocked(userID), nil
}

func (r *memoryRepository) prayerSnapshotLocked(userID string) []Prayer {
	return sortedByID(r.prayers[userID])
}

// ===== Invocations =====

func (r *memoryRepository) CreateInvocation(_ context.Context, inv Invocation) (Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userStore := ensureUserStore(r.invocations, inv.UserID)
	if _, exists := userStore[inv.ID]; exists {
		return Invocation{}, ErrConflict
	}

	inv.LastRecitedAt = r.serverTime()
	userStore[inv.ID] = inv
	r.invocationFeed.publish(inv.UserID, r.invocationSnapshotLocked(inv.UserID))
	return inv, nil
}

func (r *memoryRepository) IncrementInvocation(_ context.Context, userID, invocationID string) (Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invocations[userID][invocationID]
	if !ok {
		return Invocation{}, ErrNotFound
	}
	inv.Count++
	inv.LastRecitedAt = r.serverTime()
	r.invocations[userID][invocationID] = inv
	r.invocationFeed.publish(userID, r.invocationSnapshotLocked(userID))
	return inv, nil
}

func (r *memoryRepository) DeleteInvocation(_ context.Context, userID, invocationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invocations[userID][invocationID]; !ok {
		return ErrNotFound
	}
	delete(r.invocations[userID], invocationID)
	r.invocationFeed.publish(userID, r.invocationSnapshotLocked(userID))
	return nil
}

func (r *memoryRepository) ListInvocations(_ context.Context, userID string) ([]Invocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.invocationSnapshotLocked(userID), nil
}

func (r *memoryRepository) invocationSnapshotLocked(userID string) []Invocation {
	return sortedByID(r.invocations[userID])
}

// ===== Invocation options =====

func (r *memoryRepository) ListInvocationOptions(_ context.Context, userID string) ([]InvocationOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByID(r.options[userID]), nil
}

func (r *memoryRepository) CreateInvocationOption(_ context.Context, userID string, opt InvocationOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userStore := ensureUserStore(r.options, userID)
	if _, exists := userStore[opt.ID]; exists {
		return ErrConflict
	}
	userStore[opt.ID] = opt
	return nil
}

func (r *memoryRepository) DeleteInvocationOption(_ context.Context, userID, optionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.options[userID][optionID]; !ok {
		return ErrNotFound
	}
	delete(r.options[userID], optionID)
	return nil
}

// ===== Catalog =====

func (r *memoryRepository) ListCatalog(_ context.Context) ([]CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByID(r.catalog), nil
}

func (r *memoryRepository) CreateCatalogEntry(_ context.Context, entry CatalogEntry) (CatalogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.catalog[entry.ID]; exists {
		return CatalogEntry{}, ErrConflict
	}
	entry.CreatedAt = r.serverTime()
	r.catalog[entry.ID] = entry
	return entry, nil
}

func (r *memoryRepository) DeleteCatalogEntry(_ context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.catalog[entryID]; !ok {
		return ErrNotFound
	}
	delete(r.catalog, entryID)
	return nil
}

// ===== Profile =====

func (r *memoryRepository) GetProfile(_ context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if profile, ok := r.profiles[userID]; ok {
		return profile, nil
	}
	return Profile{UserID: userID}, nil
}

func (r *memoryRepository) SetProfilePhoto(_ context.Context, userID, photoPath string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile := Profile{UserID: userID, PhotoPath: photoPath, UpdatedAt: r.serverTime()}
	r.profiles[userID] = profile
	return profile, nil
}

// ===== Subscriptions =====

func (r *memoryRepository) SubscribePrayers(ctx context.Context, userID string, fn func([]Prayer)) error {
	r.mu.Lock()
	ch := r.prayerFeed.add(userID, r.prayerSnapshotLocked(userID))
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.prayerFeed.remove(userID, ch)
		r.mu.Unlock()
	}()

	return deliver(ctx, ch, fn)
}

func (r *memoryRepository) SubscribeInvocations(ctx context.Context, userID string, fn func([]Invocation)) error {
	r.mu.Lock()
	ch := r.invocationFeed.add(userID, r.invocationSnapshotLocked(userID))
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.invocationFeed.remove(userID, ch)
		r.mu.Unlock()
	}()

	return deliver(ctx, ch, fn)
}

// feed fans snapshots out to subscribers. Each subscriber channel holds at
// most the latest snapshot; a slow subscriber skips intermediate ones.
// Callers hold the repository lock.
type feed[T any] struct {
	subs map[string][]chan []T
}

func newFeed[T any]() feed[T] {
	return feed[T]{subs: make(map[string][]chan []T)}
}

func (f feed[T]) add(userID string, initial []T) chan []T {
	ch := make(chan []T, 1)
	ch <- initial
	f.subs[userID] = append(f.subs[userID], ch)
	return ch
}

func (f feed[T]) remove(userID string, ch chan []T) {
	subs := f.subs[userID]
	for i, c := range subs {
		if c == ch {
			f.subs[userID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(f.subs[userID]) == 0 {
		delete(f.subs, userID)
	}
}

func (f feed[T]) publish(userID string, snapshot []T) {
	for _, ch := range f.subs[userID] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func deliver[T any](ctx context.Context, ch <-chan []T, fn func([]T)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot := <-ch:
			fn(snapshot)
		}
	}
}

func ensureUserStore[T any](stores map[string]map[string]T, userID string) map[string]T {
	userStore, ok := stores[userID]
	if !ok {
		userStore = make(map[string]T)
		stores[userID] = userStore
	}
	return userStore
}

// sortedByID returns the values ordered by key, which for v7 IDs is write order.
func sortedByID[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
