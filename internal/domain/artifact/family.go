package artifact

import "strings"

// Family describes one hardware generation the project is built for.
type Family struct {
	// ID is the architecture identifier, e.g. the compute capability "86".
	ID string `yaml:"id" json:"id"`
	// Name is the human-readable architecture name, e.g. "Ampere".
	Name string `yaml:"name" json:"name"`
	// MinToolchain is the lowest toolchain version able to target the family.
	MinToolchain string `yaml:"min_toolchain" json:"min_toolchain"`
	// Patterns are hardware-name substrings identifying members of the family.
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Table is the ordered pattern table. The order of families and of the
// patterns inside them is the tie-break for equal-length matches.
type Table struct {
	// Families lists every known architecture family.
	Families []Family `yaml:"families" json:"families"`
}

// Family returns the family with the given identifier.
func (t *Table) Family(id string) (Family, bool) {
	if t == nil {
		return Family{}, false
	}

	for _, family := range t.Families {
		if family.ID == id {
			return family, true
		}
	}

	return Family{}, false
}

// IDs returns the architecture identifiers in table order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}

	ids := make([]string, 0, len(t.Families))
	for _, family := range t.Families {
		ids = append(ids, family.ID)
	}

	return ids
}

// Target is the outcome of resolving a hardware descriptor.
// A zero ArchID means no pattern matched.
type Target struct {
	// ArchID is the resolved architecture identifier, empty when unknown.
	ArchID string
	// Descriptor is the hardware string the target was resolved from.
	Descriptor string
	// Pattern is the table pattern that won the match.
	Pattern string
}

// ExplicitTarget builds a Target for an architecture given by the caller.
func ExplicitTarget(archID string) Target {
	return Target{ArchID: strings.TrimSpace(archID)}
}

// Unknown reports whether no architecture could be determined.
func (t Target) Unknown() bool {
	return t.ArchID == ""
}

// String returns the architecture identifier or "unknown".
func (t Target) String() string {
	if t.Unknown() {
		return "unknown"
	}

	return t.ArchID
}

// Actor identifies the host and user that produced a build or installation.
type Actor struct {
	// Hostname is the machine name where the action was performed.
	Hostname string `yaml:"hostname"`
	// Username is the system user who triggered the action.
	Username string `yaml:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}
