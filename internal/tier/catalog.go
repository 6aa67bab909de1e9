package tier

import "sync"

type catalogKey struct {
	Role string
	Tier Tier
}

// Catalog stores tier definitions per (role, tier). It performs no dominance
// validation between adjacent tiers: keeping higher tiers element-wise above
// lower ones is a configuration invariant the catalog owner must uphold.
type Catalog struct {
	mu   sync.RWMutex
	defs map[catalogKey]Definition
}

func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[catalogKey]Definition)}
}

// SetTier overwrites or inserts the definition for (role, tier).
func (c *Catalog) SetTier(role string, t Tier, def Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[catalogKey{Role: role, Tier: t}] = def
}

// GetTier returns the stored definition, or a zero-valued definition with
// IsActive=false when the pair was never configured.
func (c *Catalog) GetTier(role string, t Tier) Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defs[catalogKey{Role: role, Tier: t}]
}

func (c *Catalog) IsActive(role string, t Tier) bool {
	return c.GetTier(role, t).IsActive
}

// Roles lists the distinct roles with at least one configured tier.
func (c *Catalog) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	roles := make([]string, 0, len(c.defs))
	for k := range c.defs {
		if _, ok := seen[k.Role]; ok {
			continue
		}
		seen[k.Role] = struct{}{}
		roles = append(roles, k.Role)
	}
	return roles
}
