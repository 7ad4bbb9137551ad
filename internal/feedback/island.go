package feedback

import (
	"context"
	"sync"
	"time"
)

// SaveSlot is the index of the save action in the island carousel.
const SaveSlot = -1

// DefaultIdleDelay is how long the island stays visible without interaction.
const DefaultIdleDelay = 4 * time.Second

// Saver is the document save behind the island's save slot.
type Saver interface {
	Save(ctx context.Context) error
	SaveState() SaveState
}

// SaveState describes the document's save progress.
type SaveState struct {
	Saving  bool      `json:"saving"`
	Dirty   bool      `json:"dirty"`
	SavedAt time.Time `json:"saved_at"`
}

// SaveView is what the save slot renders: a spinner while saving, the last save
// time when clean, an enabled button otherwise.
type SaveView struct {
	SaveState
	Enabled bool `json:"enabled"`
}

// Timer is the handle returned by a scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// IslandOption configures an Island.
type IslandOption func(*Island)

// WithIdleDelay sets the auto-hide delay.
func WithIdleDelay(d time.Duration) IslandOption {
	return func(i *Island) {
		if d > 0 {
			i.idleDelay = d
		}
	}
}

// WithAfterFunc replaces the timer source, mainly for tests.
func WithAfterFunc(f AfterFunc) IslandOption {
	return func(i *Island) {
		if f != nil {
			i.afterFunc = f
		}
	}
}

// Island is the floating review carousel over [save, items...].
type Island struct {
	resolver  Resolver
	saver     Saver
	idleDelay time.Duration
	afterFunc AfterFunc

	mu          sync.Mutex
	items       []Item
	index       int
	visible     bool
	interacting bool
	hideTimer   Timer
	generation  uint64
	disposed    bool
}

// NewIsland creates an island positioned on the save slot.
func NewIsland(resolver Resolver, saver Saver, items []Item, opts ...IslandOption) *Island {
	i := &Island{
		resolver:  resolver,
		saver:     saver,
		idleDelay: DefaultIdleDelay,
		afterFunc: realAfterFunc,
		index:     SaveSlot,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.items = append([]Item(nil), items...)
	return i
}

// SetItems replaces the carousel's source list, keeping the index in range.
func (i *Island) SetItems(items []Item) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append([]Item(nil), items...)
	i.clamp()
}

func (i *Island) Items() []Item {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Item(nil), i.items...)
}

// Index returns the current slot; SaveSlot means the save action.
func (i *Island) Index() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index
}

// Current returns the item under the cursor, if the cursor is on an item.
func (i *Island) Current() (Item, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == SaveSlot {
		return Item{}, false
	}
	return i.items[i.index], true
}

// Next moves one slot forward, wrapping from the last item to the save slot.
func (i *Island) Next() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	slots := len(i.items) + 1
	i.index = (i.index+1+1)%slots - 1
	return i.index
}

// Prev moves one slot back, wrapping from the save slot to the last item.
func (i *Island) Prev() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	slots := len(i.items) + 1
	i.index = (i.index+1+slots-1)%slots - 1
	return i.index
}

// Apply resolves the current item: suggestions are applied, comments are marked
// as read.
func (i *Island) Apply(ctx context.Context) error {
	return i.resolve(ctx, func(item Item) error {
		if item.IsSuggestion() {
			return i.resolver.Apply(ctx, item.ID)
		}
		return i.resolver.MarkAsRead(ctx, item.ID)
	})
}

// Reject rejects the current item.
func (i *Island) Reject(ctx context.Context) error {
	return i.resolve(ctx, func(item Item) error {
		return i.resolver.Reject(ctx, item.ID)
	})
}

func (i *Island) resolve(ctx context.Context, action func(Item) error) error {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return ErrClosed
	}
	if i.index == SaveSlot {
		i.mu.Unlock()
		return &ValidationError{Reason: "no feedback item selected"}
	}
	item := i.items[i.index]
	i.mu.Unlock()

	err := action(item)
	if err != nil && !IsStaleReference(err) {
		return err
	}

	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return ErrClosed
	}
	i.drop(item.ID)
	i.mu.Unlock()
	i.Show()
	return err
}

// drop removes id and steps the cursor back so it never points past the end.
func (i *Island) drop(id ID) {
	for n, item := range i.items {
		if item.ID == id {
			i.items = append(i.items[:n], i.items[n+1:]...)
			i.index--
			i.clamp()
			return
		}
	}
}

func (i *Island) clamp() {
	if i.index >= len(i.items) {
		i.index = len(i.items) - 1
	}
	if i.index < SaveSlot {
		i.index = SaveSlot
	}
}

// SaveView reports what the save slot should render.
func (i *Island) SaveView() SaveView {
	if i.saver == nil {
		return SaveView{}
	}
	state := i.saver.SaveState()
	return SaveView{SaveState: state, Enabled: state.Dirty && !state.Saving}
}

// Save runs the save action. Saving a clean document is refused.
func (i *Island) Save(ctx context.Context) error {
	i.mu.Lock()
	disposed := i.disposed
	i.mu.Unlock()
	if disposed {
		return ErrClosed
	}
	if !i.SaveView().Enabled {
		return &ValidationError{Reason: "nothing to save"}
	}
	err := i.saver.Save(ctx)
	i.Show()
	return err
}

// Show makes the island visible and schedules it to hide after the idle delay,
// unless the user is interacting with it.
func (i *Island) Show() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return
	}
	i.visible = true
	if !i.interacting {
		i.arm()
	}
}

// SetInteracting records hover or focus. Interaction cancels the pending hide;
// leaving re-arms it.
func (i *Island) SetInteracting(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return
	}
	i.interacting = on
	if on {
		i.disarm()
		return
	}
	if i.visible {
		i.arm()
	}
}

func (i *Island) Visible() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.visible
}

// Dispose stops the hide timer; the island ignores further calls.
func (i *Island) Dispose() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disarm()
	i.disposed = true
	i.visible = false
}

func (i *Island) arm() {
	i.disarm()
	gen := i.generation
	i.hideTimer = i.afterFunc(i.idleDelay, func() { i.hide(gen) })
}

func (i *Island) disarm() {
	i.generation++
	if i.hideTimer != nil {
		i.hideTimer.Stop()
		i.hideTimer = nil
	}
}

func (i *Island) hide(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	// a timer that fired after being replaced must not hide the island
	if gen != i.generation || i.interacting {
		return
	}
	i.visible = false
	i.hideTimer = nil
}
