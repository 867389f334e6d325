package hierarchy

// Level is the numeric depth of a role in the organization tree
type Level int

const (
	LevelEnterprise Level = 1
	LevelSegment    Level = 2
	LevelPlatform   Level = 3
	LevelDivision   Level = 4
	LevelPlant      Level = 5
)

// Scope is the access scope label derived from a level
type Scope string

const (
	ScopeEnterprise Scope = "ENTERPRISE"
	ScopeSegment    Scope = "SEGMENT"
	ScopePlatform   Scope = "PLATFORM"
	ScopeDivision   Scope = "DIVISION"
	ScopePlant      Scope = "PLANT"
)

// ScopeForLevel maps a level to its scope. Levels outside 1..5 map to the
// empty scope, which every evaluator treats as deny.
func ScopeForLevel(level Level) Scope {
	switch level {
	case LevelEnterprise:
		return ScopeEnterprise
	case LevelSegment:
		return ScopeSegment
	case LevelPlatform:
		return ScopePlatform
	case LevelDivision:
		return ScopeDivision
	case LevelPlant:
		return ScopePlant
	default:
		return ""
	}
}

// Level returns the level for a scope, or 0 when unknown
func (s Scope) Level() Level {
	switch s {
	case ScopeEnterprise:
		return LevelEnterprise
	case ScopeSegment:
		return LevelSegment
	case ScopePlatform:
		return LevelPlatform
	case ScopeDivision:
		return LevelDivision
	case ScopePlant:
		return LevelPlant
	default:
		return 0
	}
}

// Valid reports whether the scope is one of the five known labels
func (s Scope) Valid() bool {
	return s.Level() != 0
}

// IsPrefixScope reports whether records are matched by path prefix
func (s Scope) IsPrefixScope() bool {
	return s == ScopeSegment || s == ScopePlatform || s == ScopeDivision
}

// Valid reports whether the level is within 1..5
func (l Level) Valid() bool {
	return l >= LevelEnterprise && l <= LevelPlant
}
