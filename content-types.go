package responsefields

// TypeSet is a read-only allow-list of content type names.
type TypeSet map[string]struct{}

// NewTypeSet returns a set of the given type names.
func NewTypeSet(types ...string) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set.
func (s TypeSet) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// With returns a new set with the given types added.
func (s TypeSet) With(types ...string) TypeSet {
	n := make(TypeSet, len(s)+len(types))
	for t := range s {
		n[t] = struct{}{}
	}
	for _, t := range types {
		n[t] = struct{}{}
	}
	return n
}

// DefaultSingularTypes are the types whose single views get headers:
// posts, pages, attachments and the given public custom types.
func DefaultSingularTypes(publicCustomTypes ...string) TypeSet {
	return NewTypeSet("post", "page", "attachment").With(publicCustomTypes...)
}

// DefaultArchiveTypes are the types whose listings get headers:
// posts and the given public custom types.
func DefaultArchiveTypes(publicCustomTypes ...string) TypeSet {
	return NewTypeSet("post").With(publicCustomTypes...)
}
