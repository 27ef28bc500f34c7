package library

import (
	"fmt"
	"sort"
	"strings"
)

// MaterialType describes how long a kind of material may be held and what
// its lateness costs per day.
type MaterialType struct {
	Name                  string `json:"name" yaml:"name"`
	OverdueThresholdWeeks int    `json:"overdue_threshold_weeks" yaml:"overdue_threshold_weeks"`
	DailyFineRate         int    `json:"daily_fine_rate" yaml:"daily_fine_rate"`
}

// OverdueThresholdDays is the number of days a material of this type may be
// held before fines accrue.
func (t MaterialType) OverdueThresholdDays() int {
	return t.OverdueThresholdWeeks * 7
}

// TypeRegistry maps material type names to their descriptors. It is filled
// once at startup and sealed when handed to a LendingService.
type TypeRegistry struct {
	types  map[string]MaterialType
	sealed bool
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]MaterialType)}
}

// DefaultTypeRegistry returns an unsealed registry holding the standard
// Book, Journal and DVD schedules.
func DefaultTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	for _, t := range []MaterialType{
		{Name: "Book", OverdueThresholdWeeks: 4, DailyFineRate: 1},
		{Name: "Journal", OverdueThresholdWeeks: 2, DailyFineRate: 3},
		{Name: "DVD", OverdueThresholdWeeks: 1, DailyFineRate: 5},
	} {
		r.types[t.Name] = t
	}
	return r
}

// Register adds a material type. Names are unique: registering a name twice
// is rejected rather than overwriting the earlier schedule.
func (r *TypeRegistry) Register(name string, overdueThresholdWeeks, dailyFineRate int) error {
	if r.sealed {
		return fmt.Errorf("register %q: %w", name, ErrRegistrySealed)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("register type: empty name: %w", ErrInvalidArgument)
	}
	if overdueThresholdWeeks < 0 || dailyFineRate < 0 {
		return fmt.Errorf("register %q: negative threshold or rate: %w", name, ErrInvalidArgument)
	}
	if _, ok := r.types[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrAlreadyExists)
	}
	r.types[name] = MaterialType{
		Name:                  name,
		OverdueThresholdWeeks: overdueThresholdWeeks,
		DailyFineRate:         dailyFineRate,
	}
	return nil
}

func (r *TypeRegistry) Lookup(name string) (MaterialType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Seal forbids further registrations.
func (r *TypeRegistry) Seal() { r.sealed = true }

func (r *TypeRegistry) Sealed() bool { return r.sealed }

// Names returns the registered type names sorted alphabetically.
func (r *TypeRegistry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Types returns the registered descriptors sorted by name.
func (r *TypeRegistry) Types() []MaterialType {
	out := make([]MaterialType, 0, len(r.types))
	for _, name := range r.Names() {
		out = append(out, r.types[name])
	}
	return out
}
