package hierarchy

import "strings"

// Delimiter separates segments in the stored hierarchy string
const Delimiter = ">"

// Path is an organization path held as an ordered list of segment tokens.
// Segment order is fixed: Enterprise, Segment, Platform, Division, Plant.
// Paths are values; nothing mutates them after Parse or New.
type Path struct {
	segments []string
}

// New builds a path from segments in hierarchy order
func New(segments ...string) Path {
	if len(segments) == 0 {
		return Path{}
	}
	s := make([]string, len(segments))
	copy(s, segments)
	return Path{segments: s}
}

// Parse converts a stored hierarchy string into a path.
// A single trailing delimiter is dropped; nothing else is validated, so
// inconsistent casing or whitespace is carried through as-is.
func Parse(raw string) Path {
	if raw == "" {
		return Path{}
	}
	raw = strings.TrimSuffix(raw, Delimiter)
	if raw == "" {
		return Path{}
	}
	return Path{segments: strings.Split(raw, Delimiter)}
}

// Segments returns a copy of the path tokens
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Len returns the number of populated segments
func (p Path) Len() int {
	return len(p.segments)
}

// IsZero reports whether the path has no segments
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// Segment returns the segment at the given level (1=Enterprise .. 5=Plant)
func (p Path) Segment(level Level) string {
	i := int(level) - 1
	if i < 0 || i >= len(p.segments) {
		return ""
	}
	return p.segments[i]
}

// Enterprise returns the first segment
func (p Path) Enterprise() string { return p.Segment(LevelEnterprise) }

// Plant returns the fifth segment
func (p Path) Plant() string { return p.Segment(LevelPlant) }

// Truncate returns the ancestor path holding at most level segments
func (p Path) Truncate(level Level) Path {
	n := int(level)
	if n <= 0 {
		return Path{}
	}
	if n >= len(p.segments) {
		return p
	}
	return New(p.segments[:n]...)
}

// Child returns a new path with name appended
func (p Path) Child(name string) Path {
	return New(append(p.Segments(), name)...)
}

// String returns the segments joined without a trailing delimiter
func (p Path) String() string {
	return strings.Join(p.segments, Delimiter)
}

// Prefix returns the scope-prefix form: segments joined with a trailing
// delimiter, so that "Division1>" never string-matches "Division10>".
func (p Path) Prefix() string {
	if len(p.segments) == 0 {
		return ""
	}
	return strings.Join(p.segments, Delimiter) + Delimiter
}

// Equal reports token-by-token equality
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Covers reports whether p is an ancestor of, or equal to, other
func (p Path) Covers(other Path) bool {
	if len(p.segments) > len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// MarshalText stores the path in its plain delimited form
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a delimited hierarchy string
func (p *Path) UnmarshalText(text []byte) error {
	*p = Parse(string(text))
	return nil
}

// Encodings returns every stored string that parses to exactly p.
// A path ending in an empty segment only round-trips through Prefix.
func (p Path) Encodings() []string {
	if len(p.segments) == 0 {
		return []string{"", Delimiter}
	}
	if p.segments[len(p.segments)-1] == "" {
		return []string{p.Prefix()}
	}
	return []string{p.String(), p.Prefix()}
}
