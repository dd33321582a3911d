package guest

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Catalog indexes discovered guests by name and machine.
type Catalog struct {
	sync.RWMutex
	guests    map[string]*Guest
	byMachine map[string][]*Guest
	logger    *zap.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *zap.Logger) *Catalog {
	return &Catalog{
		guests:    make(map[string]*Guest),
		byMachine: make(map[string][]*Guest),
		logger:    logger.With(zap.String("component", "guest-catalog")),
	}
}

// Register adds a guest. Names are unique.
func (c *Catalog) Register(g *Guest) error {
	c.Lock()
	defer c.Unlock()

	name := g.Name()
	if _, exists := c.guests[name]; exists {
		return &GuestAlreadyRegisteredError{GuestName: name}
	}

	c.guests[name] = g
	c.byMachine[g.Machine()] = append(c.byMachine[g.Machine()], g)

	c.logger.Debug("Guest registered",
		zap.String("name", name),
		zap.String("machine", g.Machine()),
	)
	return nil
}

// RegisterAll registers guests, skipping duplicates with a warning.
func (c *Catalog) RegisterAll(guests []*Guest) {
	for _, g := range guests {
		if err := c.Register(g); err != nil {
			c.logger.Warn("Skipping guest", zap.String("dir", g.Manifest.Dir()), zap.Error(err))
		}
	}
}

// Get retrieves a guest by name.
func (c *Catalog) Get(name string) (*Guest, bool) {
	c.RLock()
	defer c.RUnlock()

	g, ok := c.guests[name]
	return g, ok
}

// Resolve is Get with an error for unknown names.
func (c *Catalog) Resolve(name string) (*Guest, error) {
	g, ok := c.Get(name)
	if !ok {
		return nil, &GuestNotFoundError{GuestName: name}
	}
	return g, nil
}

// LookupByMachine returns the guests for a machine.
func (c *Catalog) LookupByMachine(machine string) []*Guest {
	c.RLock()
	defer c.RUnlock()

	result := make([]*Guest, len(c.byMachine[machine]))
	copy(result, c.byMachine[machine])
	return result
}

// List returns all guests sorted by name.
func (c *Catalog) List() []*Guest {
	c.RLock()
	defer c.RUnlock()

	result := make([]*Guest, 0, len(c.guests))
	for _, g := range c.guests {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Unregister removes a guest.
func (c *Catalog) Unregister(name string) {
	c.Lock()
	defer c.Unlock()

	g, ok := c.guests[name]
	if !ok {
		return
	}

	machine := g.Machine()
	list := c.byMachine[machine]
	for i, other := range list {
		if other == g {
			c.byMachine[machine] = append(list[:i], list[i+1:]...)
			break
		}
	}
	delete(c.guests, name)
}

// Count returns the number of guests.
func (c *Catalog) Count() int {
	c.RLock()
	defer c.RUnlock()

	return len(c.guests)
}
