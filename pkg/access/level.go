package access

// Level represents an access level granted on a resource
type Level string

const (
	LevelReadOnly  Level = "READ_ONLY"
	LevelReadWrite Level = "READ_WRITE"
	LevelAdmin     Level = "ADMIN"
)

var levelOrder = map[Level]int{
	LevelReadOnly:  0,
	LevelReadWrite: 1,
	LevelAdmin:     2,
}

// Rank returns the numeric rank of a level. Unknown levels rank below
// READ_ONLY.
func (l Level) Rank() int {
	if rank, ok := levelOrder[l]; ok {
		return rank
	}
	return -1
}

// Valid reports whether the level is one of the known levels
func (l Level) Valid() bool {
	_, ok := levelOrder[l]
	return ok
}

// Satisfies checks whether an attained level meets a required level
// using the order READ_ONLY < READ_WRITE < ADMIN.
func (l Level) Satisfies(required Level) bool {
	return l.Rank() >= required.Rank() && l.Rank() >= 0
}
