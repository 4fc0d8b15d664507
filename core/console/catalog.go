package console

import (
	"strconv"
	"strings"
	"sync"

	"Praetorius/model"
)

// Catalog is the shared, read-only work registry hydrated from the
// feed. Indexes are built lazily on first lookup; ad hoc work values
// are admitted and indexed on sight. A feed reload replaces the whole
// generation.
type Catalog struct {
	mu          sync.RWMutex
	works       []*model.Work
	byID        map[int64]*model.Work
	bySlug      map[string]*model.Work
	pageFollows map[string]model.PageFollow
	generation  uint64
}

// NewCatalog builds a catalog over an already-normalized work list.
func NewCatalog(works []*model.Work, pageFollows map[string]model.PageFollow) *Catalog {
	c := &Catalog{}
	c.Replace(works, pageFollows)
	return c
}

// Replace swaps in a new work generation.
func (c *Catalog) Replace(works []*model.Work, pageFollows map[string]model.PageFollow) {
	if pageFollows == nil {
		pageFollows = map[string]model.PageFollow{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.works = works
	c.byID = nil
	c.bySlug = nil
	c.pageFollows = pageFollows
	c.generation++
}

// Generation increments with every Replace; sessions compare it to
// notice catalog changes.
func (c *Catalog) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Works returns the current generation's work list in catalog order.
func (c *Catalog) Works() []*model.Work {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.works
}

// PageFollows returns the per-slug page-follow configuration map.
func (c *Catalog) PageFollows() map[string]model.PageFollow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageFollows
}

// ByID looks a work up by id, building the index on first use.
func (c *Catalog) ByID(id int64) *model.Work {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndexLocked()
	return c.byID[id]
}

// BySlug looks a work up by slug.
func (c *Catalog) BySlug(slug string) *model.Work {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndexLocked()
	return c.bySlug[slug]
}

// Admit registers an ad hoc work value into the current generation's
// index so later lookups by its id resolve.
func (c *Catalog) Admit(work *model.Work) {
	if work == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndexLocked()
	if _, exists := c.byID[work.ID]; !exists {
		c.works = append(c.works, work)
	}
	c.byID[work.ID] = work
	if work.Slug != "" {
		c.bySlug[work.Slug] = work
	}
}

func (c *Catalog) ensureIndexLocked() {
	if c.byID != nil {
		return
	}
	c.byID = make(map[int64]*model.Work, len(c.works))
	c.bySlug = make(map[string]*model.Work, len(c.works))
	for _, work := range c.works {
		c.byID[work.ID] = work
		if work.Slug != "" {
			c.bySlug[work.Slug] = work
		}
	}
}

// SeedBase derives the item-generation seed from work identity order.
func (c *Catalog) SeedBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, len(c.works))
	for i, work := range c.works {
		keys[i] = workKey(work)
	}
	seed := strings.Join(keys, "|")
	if seed == "" {
		seed = "typescatter"
	}
	return seed
}

func workKey(w *model.Work) string {
	if w.Slug != "" {
		return w.Slug
	}
	if w.Title != "" {
		return w.Title
	}
	return strconv.FormatInt(w.ID, 10)
}
