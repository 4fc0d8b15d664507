// Package scatter computes non-overlapping, deterministic 2D positions
// for the console's work items inside a bounded field. Placement is a
// jittered grid followed by a small number of collision-relaxation
// passes; the whole pass is driven by a seeded generator so an identical
// catalog in an identical box always lands in identical positions.
package scatter

import (
	"math"

	"Praetorius/core/seeded"
	"Praetorius/logger"
)

const (
	// DefaultWidth/DefaultHeight stand in for items the client has not
	// measured yet.
	DefaultWidth  = 160
	DefaultHeight = 48

	// MaxRotation 单个标题的最大倾斜角度（度）
	MaxRotation = 2
	// MaxLetterJitter 字距抖动幅度（em）
	MaxLetterJitter = 0.03

	gridJitterFactor = 0.35
	pushFactor       = 0.6
)

// Item is the layout-side view of one work: measured extents plus the
// persistent per-item visual seeds assigned once at creation.
type Item struct {
	WorkID       int64
	Key          string // slug, falling back to title or id; feeds the layout seed
	Width        float64
	Height       float64
	Rotation     float64 // degrees, stable for the item's lifetime
	LetterJitter float64 // em, stable for the item's lifetime
}

// Box is the field viewport in pixels.
type Box struct {
	Width  float64
	Height float64
}

// Position is an item center point in field coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Engine holds the layout tuning. The zero value is unusable; use
// NewEngine for sane defaults.
type Engine struct {
	SafeMargin       float64
	CollisionPadding float64
	Passes           int
}

// NewEngine returns an engine with the console's stock geometry.
func NewEngine(safeMargin, collisionPadding float64, passes int) *Engine {
	if safeMargin <= 0 {
		safeMargin = 64
	}
	if collisionPadding <= 0 {
		collisionPadding = 24
	}
	if passes <= 0 {
		passes = 8
	}
	return &Engine{SafeMargin: safeMargin, CollisionPadding: collisionPadding, Passes: passes}
}

// AssignVisualSeeds draws each item's persistent rotation and letter
// jitter from rnd, in item order. Called once per item generation.
func AssignVisualSeeds(items []*Item, rnd *seeded.Source) {
	for _, item := range items {
		item.Rotation = (rnd.Float64() - 0.5) * MaxRotation * 2
		item.LetterJitter = (rnd.Float64() - 0.5) * MaxLetterJitter * 2
	}
}

// Compute runs both layout phases and returns the position of every
// item's center. Every position keeps the item's padded extent inside
// the safe margin; boxes smaller than an item clamp to the far margin
// rather than failing.
func (e *Engine) Compute(items []*Item, box Box, rnd *seeded.Source) map[int64]Position {
	if len(items) == 0 {
		return map[int64]Position{}
	}
	positions := e.jitteredGrid(items, box, rnd)
	e.resolveCollisions(items, positions, box, rnd)
	return positions
}

// jitteredGrid sizes a rows×cols grid to the box aspect ratio, assigns
// items to cells in order and perturbs each cell center by a seeded
// offset.
func (e *Engine) jitteredGrid(items []*Item, box Box, rnd *seeded.Source) map[int64]Position {
	width := math.Max(1, box.Width-e.SafeMargin*2)
	height := math.Max(1, box.Height-e.SafeMargin*2)
	count := float64(len(items))
	aspect := width / height
	rows := math.Max(1, math.Round(math.Sqrt(count/aspect)))
	cols := math.Max(1, math.Ceil(count/rows))
	cellW := width / cols
	cellH := height / rows
	jitterX := cellW * gridJitterFactor
	jitterY := cellH * gridJitterFactor

	positions := make(map[int64]Position, len(items))
	for index, item := range items {
		row := math.Floor(float64(index) / cols)
		col := math.Mod(float64(index), cols)
		halfW := item.Width / 2
		halfH := item.Height / 2
		xBase := e.SafeMargin + (col+0.5)*cellW
		yBase := e.SafeMargin + (row+0.5)*cellH
		x := clamp(xBase+(rnd.Float64()-0.5)*jitterX, e.SafeMargin+halfW, box.Width-e.SafeMargin-halfW)
		y := clamp(yBase+(rnd.Float64()-0.5)*jitterY, e.SafeMargin+halfH, box.Height-e.SafeMargin-halfH)
		positions[item.WorkID] = Position{X: x, Y: y}
	}
	return positions
}

// resolveCollisions relaxes padded bounding-box overlaps over at most
// e.Passes sweeps, pushing overlapping pairs apart along their center
// vector and re-clamping after each push. A pass with no adjustment
// stops early; residual overlap after the final pass is logged.
func (e *Engine) resolveCollisions(items []*Item, positions map[int64]Position, box Box, rnd *seeded.Source) {
	for pass := 0; pass < e.Passes; pass++ {
		adjusted := false
		for i := 0; i < len(items); i++ {
			a := items[i]
			posA, ok := positions[a.WorkID]
			if !ok {
				continue
			}
			for j := i + 1; j < len(items); j++ {
				b := items[j]
				posB, ok := positions[b.WorkID]
				if !ok {
					continue
				}
				dx := posB.X - posA.X
				dy := posB.Y - posA.Y
				overlapX := (a.Width+b.Width)/2 + e.CollisionPadding - math.Abs(dx)
				overlapY := (a.Height+b.Height)/2 + e.CollisionPadding - math.Abs(dy)
				if overlapX <= 0 || overlapY <= 0 {
					continue
				}
				adjusted = true
				// 中心重合时用随机方向打破平衡
				ax, ay := dx, dy
				if ax == 0 {
					ax = rnd.Float64() - 0.5
				}
				if ay == 0 {
					ay = rnd.Float64() - 0.5
				}
				angle := math.Atan2(ay, ax)
				push := math.Min(overlapX, overlapY)
				pushX := math.Cos(angle) * push * pushFactor
				pushY := math.Sin(angle) * push * pushFactor
				posA.X = clamp(posA.X-pushX, e.SafeMargin+a.Width/2, box.Width-e.SafeMargin-a.Width/2)
				posA.Y = clamp(posA.Y-pushY, e.SafeMargin+a.Height/2, box.Height-e.SafeMargin-a.Height/2)
				posB.X = clamp(posB.X+pushX, e.SafeMargin+b.Width/2, box.Width-e.SafeMargin-b.Width/2)
				posB.Y = clamp(posB.Y+pushY, e.SafeMargin+b.Height/2, box.Height-e.SafeMargin-b.Height/2)
				positions[a.WorkID] = posA
				positions[b.WorkID] = posB
			}
		}
		if !adjusted {
			return
		}
	}
	if residual := e.overlappingPairs(items, positions); residual > 0 {
		logger.Warn("collision passes exhausted with residual overlap",
			logger.Int("pairs", residual),
			logger.Int("items", len(items)))
	}
}

// overlappingPairs counts item pairs whose padded boxes still overlap in
// both axes.
func (e *Engine) overlappingPairs(items []*Item, positions map[int64]Position) int {
	count := 0
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			posA, okA := positions[a.WorkID]
			posB, okB := positions[b.WorkID]
			if !okA || !okB {
				continue
			}
			overlapX := (a.Width+b.Width)/2 + e.CollisionPadding - math.Abs(posB.X-posA.X)
			overlapY := (a.Height+b.Height)/2 + e.CollisionPadding - math.Abs(posB.Y-posA.Y)
			if overlapX > 0 && overlapY > 0 {
				count++
			}
		}
	}
	return count
}

// ClampToField clamps a dragged item center so its full extent stays
// inside the safe region.
func (e *Engine) ClampToField(item *Item, pos Position, box Box) Position {
	return Position{
		X: clamp(pos.X, e.SafeMargin+item.Width/2, box.Width-e.SafeMargin-item.Width/2),
		Y: clamp(pos.Y, e.SafeMargin+item.Height/2, box.Height-e.SafeMargin-item.Height/2),
	}
}

// clamp keeps the upper bound authoritative when the bounds cross
// (undersized boxes), matching the field's overflow behavior.
func clamp(v, min, max float64) float64 {
	return math.Min(max, math.Max(min, v))
}
