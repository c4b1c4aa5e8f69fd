package glm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownFamily is returned when a family or link name is not registered.
var ErrUnknownFamily = errors.New("unknown family")

// FamilyFactory resolves family names to Family values.
type FamilyFactory interface {
	// Get returns the family registered under name.
	Get(name string) (Family, error)
	// List returns the registered names in sorted order.
	List() []string
	// Register adds or replaces a family.
	Register(name string, creator func() Family) error
}

// DefaultFamilyFactory is a thread-safe FamilyFactory. Families are stateless,
// so Get builds a fresh value on each call instead of caching one.
type DefaultFamilyFactory struct {
	mu       sync.RWMutex
	creators map[string]func() Family
}

// NewFamilyFactory creates a factory with the whole catalog registered.
//
// Every distribution is registered under its bare name, which selects the
// canonical link, and under "<distribution>_<link>" for each link it
// supports, e.g. "binomial", "binomial_probit", "Gamma_log".
//
// Returns:
//   - *DefaultFamilyFactory: A factory ready for lookups.
func NewFamilyFactory() *DefaultFamilyFactory {
	f := &DefaultFamilyFactory{creators: make(map[string]func() Family)}
	for _, d := range distributions {
		for i, link := range d.links {
			fam := family{dist: d, link: links[link]}
			creator := func() Family { return fam }
			_ = f.Register(d.name+"_"+link, creator)
			if i == 0 {
				_ = f.Register(d.name, creator)
			}
		}
	}
	return f
}

// Register adds a family under name, replacing any previous entry.
//
// Parameters:
//   - name: The lookup key.
//   - creator: Builds the Family on each Get.
//
// Returns:
//   - error: An error if name is empty or creator is nil.
func (f *DefaultFamilyFactory) Register(name string, creator func() Family) error {
	if name == "" {
		return errors.New("family name must not be empty")
	}
	if creator == nil {
		return fmt.Errorf("family %q: nil creator", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
	return nil
}

// Get returns the family registered under name, or an error wrapping
// ErrUnknownFamily.
func (f *DefaultFamilyFactory) Get(name string) (Family, error) {
	f.mu.RLock()
	creator, ok := f.creators[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	return creator(), nil
}

// List returns the registered names sorted alphabetically.
func (f *DefaultFamilyFactory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustGet is like Get but panics when the family is missing. It is meant for
// initialization code.
func (f *DefaultFamilyFactory) MustGet(name string) Family {
	fam, err := f.Get(name)
	if err != nil {
		panic(fmt.Sprintf("glm: required family not found: %s", name))
	}
	return fam
}

var defaultFactory = NewFamilyFactory()

// DefaultFactory returns the process-wide factory used by FitParallel.
func DefaultFactory() *DefaultFamilyFactory {
	return defaultFactory
}

// LookupFamily resolves name with the default factory.
func LookupFamily(name string) (Family, error) {
	return defaultFactory.Get(name)
}
