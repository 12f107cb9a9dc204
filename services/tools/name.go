// Package tools holds the registry of model-invocable tools and their
// executors.
package tools

// Name is the closed set of tool identifiers.
type Name string

const (
	BookAmenity Name = "book_amenity"
)

var known = []Name{BookAmenity}

// Names lists every known tool.
func Names() []Name {
	out := make([]Name, len(known))
	copy(out, known)
	return out
}

// ParseName converts a wire string into a Name.
func ParseName(s string) (Name, bool) {
	for _, n := range known {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

func (n Name) String() string { return string(n) }
