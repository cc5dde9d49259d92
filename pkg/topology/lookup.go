package topology

// SubnetEntry is what the lookup knows about a declared subnet.
type SubnetEntry struct {
	ID             string
	VirtualNetwork string
	Location       string
}

// SubnetLookup maps subnet names to their declared ids. Names are global
// across every VNET of a topology.
type SubnetLookup struct {
	entries map[string]SubnetEntry
	order   []string
}

// NewSubnetLookup returns an empty lookup.
func NewSubnetLookup() *SubnetLookup {
	return &SubnetLookup{entries: make(map[string]SubnetEntry)}
}

// Add records a subnet. A name that is already present is rejected with a
// ConfigurationError; the earlier entry is kept.
func (l *SubnetLookup) Add(name string, entry SubnetEntry) error {
	if existing, ok := l.entries[name]; ok {
		return configErr("vnets."+entry.VirtualNetwork+".subnets",
			"subnet name %q is already declared in %s; subnet names must be unique across all vnets",
			name, existing.VirtualNetwork)
	}
	l.entries[name] = entry
	l.order = append(l.order, name)
	return nil
}

// Resolve returns the entry recorded for name.
func (l *SubnetLookup) Resolve(name string) (SubnetEntry, bool) {
	e, ok := l.entries[name]
	return e, ok
}

// ID returns the id recorded for name.
func (l *SubnetLookup) ID(name string) (string, bool) {
	e, ok := l.entries[name]
	return e.ID, ok
}

// Names returns subnet names in the order they were added.
func (l *SubnetLookup) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

func (l *SubnetLookup) Len() int {
	return len(l.order)
}
