package scatter

import (
	"fmt"
	"strings"
	"sync"

	"Praetorius/core/seeded"
)

// Field owns the layout cache for one console session. Layout is
// recomputed only when the derived seed (box dimensions plus item
// identity order) changes or when a recompute is forced; otherwise the
// previous position map is reapplied verbatim, so incidental re-renders
// never reshuffle the field.
type Field struct {
	engine *Engine

	mu        sync.Mutex
	items     []*Item
	box       Box
	lastSeed  string
	positions map[int64]Position
	token     uint64
}

// NewField wraps an engine with an empty cache.
func NewField(engine *Engine) *Field {
	return &Field{
		engine:    engine,
		positions: map[int64]Position{},
	}
}

// Seed derives the layout seed for a box and item order.
func Seed(box Box, items []*Item) string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return fmt.Sprintf("%.0fx%.0f::%s", box.Width, box.Height, strings.Join(keys, "|"))
}

// SetItems replaces the item generation and invalidates any in-flight
// layout pass.
func (f *Field) SetItems(items []*Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
	f.lastSeed = ""
	f.token++
}

// Items returns a snapshot of the current item generation in layout
// order. Copies, not the live pointers: Measure keeps mutating extents
// under the field lock.
func (f *Field) Items() []*Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return snapshotItems(f.items)
}

// Measure records client-reported extents for one item. Zero or negative
// dimensions fall back to the defaults.
func (f *Field) Measure(workID int64, width, height float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.WorkID != workID {
			continue
		}
		if width <= 0 {
			width = DefaultWidth
		}
		if height <= 0 {
			height = DefaultHeight
		}
		item.Width = width
		item.Height = height
		return
	}
}

// Layout produces positions for the current items in the given box.
// The bool result reports whether a fresh compute ran (false means the
// cached map was reapplied). A pass invalidated mid-flight by a newer
// request drops its result silently.
func (f *Field) Layout(box Box, force bool) (map[int64]Position, bool) {
	f.mu.Lock()
	f.box = box
	if len(f.items) == 0 {
		f.mu.Unlock()
		return map[int64]Position{}, false
	}
	seed := Seed(box, f.items)
	if !force && seed == f.lastSeed {
		out := copyPositions(f.positions)
		f.mu.Unlock()
		return out, false
	}
	// 在锁内拷贝条目快照，Compute在锁外读取时不会与Measure写入竞争
	items := snapshotItems(f.items)
	f.token++
	token := f.token
	f.mu.Unlock()

	positions := f.engine.Compute(items, box, seeded.New(seed))

	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.token {
		// 已有更新的布局请求，丢弃过期结果
		return copyPositions(f.positions), false
	}
	f.positions = positions
	f.lastSeed = seed
	return copyPositions(positions), true
}

// Drag moves one item's center, clamped to the safe region, and records
// the new position without disturbing the cache seed.
func (f *Field) Drag(workID int64, pos Position) (Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.WorkID != workID {
			continue
		}
		clamped := f.engine.ClampToField(item, pos, f.box)
		f.positions[workID] = clamped
		return clamped, true
	}
	return Position{}, false
}

// Positions returns a copy of the current position map.
func (f *Field) Positions() map[int64]Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyPositions(f.positions)
}

func snapshotItems(in []*Item) []*Item {
	out := make([]*Item, len(in))
	for i, item := range in {
		clone := *item
		out[i] = &clone
	}
	return out
}

func copyPositions(in map[int64]Position) map[int64]Position {
	out := make(map[int64]Position, len(in))
	for id, pos := range in {
		out[id] = pos
	}
	return out
}
