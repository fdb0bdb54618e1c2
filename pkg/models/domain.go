package models

// Domain is a normalized FQDN plus its classification.
type Domain struct {
	Name         string
	Root         string
	Organization bool
	IP           bool
}

// DomainSet is a set of domains keyed by name. Iteration follows insertion
// order and the first observation of a name wins.
type DomainSet struct {
	order []string
	items map[string]Domain
}

func NewDomainSet(domains ...Domain) *DomainSet {
	s := &DomainSet{items: make(map[string]Domain, len(domains))}
	for _, d := range domains {
		s.Add(d)
	}
	return s
}

// Add inserts d unless a domain with the same name is already present.
// It reports whether the set changed.
func (s *DomainSet) Add(d Domain) bool {
	if s.items == nil {
		s.items = make(map[string]Domain)
	}
	if d.Name == "" {
		return false
	}
	if _, ok := s.items[d.Name]; ok {
		return false
	}
	s.items[d.Name] = d
	s.order = append(s.order, d.Name)
	return true
}

func (s *DomainSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[name]
	return ok
}

func (s *DomainSet) Get(name string) (Domain, bool) {
	if s == nil {
		return Domain{}, false
	}
	d, ok := s.items[name]
	return d, ok
}

func (s *DomainSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Domains returns the members in insertion order.
func (s *DomainSet) Domains() []Domain {
	if s == nil {
		return nil
	}
	out := make([]Domain, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.items[name])
	}
	return out
}

func (s *DomainSet) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *DomainSet) Clone() *DomainSet {
	return NewDomainSet(s.Domains()...)
}

// Union returns s followed by the members of other not already in s.
func (s *DomainSet) Union(other *DomainSet) *DomainSet {
	out := s.Clone()
	for _, d := range other.Domains() {
		out.Add(d)
	}
	return out
}

// Difference returns the members of s whose names are not in other.
func (s *DomainSet) Difference(other *DomainSet) *DomainSet {
	return s.Filter(func(d Domain) bool { return !other.Has(d.Name) })
}

// Intersect returns the members of s whose names are also in other.
func (s *DomainSet) Intersect(other *DomainSet) *DomainSet {
	return s.Filter(func(d Domain) bool { return other.Has(d.Name) })
}

func (s *DomainSet) Filter(keep func(Domain) bool) *DomainSet {
	out := NewDomainSet()
	for _, d := range s.Domains() {
		if keep(d) {
			out.Add(d)
		}
	}
	return out
}

// Equal compares membership only.
func (s *DomainSet) Equal(other *DomainSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, name := range s.Names() {
		if !other.Has(name) {
			return false
		}
	}
	return true
}
