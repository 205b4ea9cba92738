package entity

// Role is bound to a connection at admission and never changes for it.
type Role int

const (
	First Role = iota
	Second
)

// Roles lists every role in admission order.
var Roles = [...]Role{First, Second}

// Mark - the symbol this role places on the board.
func (that Role) Mark() Mark {
	if that == First {
		return MarkX
	}
	return MarkO
}

func (that Role) Opponent() Role {
	if that == First {
		return Second
	}
	return First
}

func (that Role) String() string {
	switch that {
	case First:
		return "first"
	case Second:
		return "second"
	default:
		return "unknown"
	}
}

// RoleOf - maps a mark back to the role that owns it.
func RoleOf(mark Mark) (Role, bool) {
	switch mark {
	case MarkX:
		return First, true
	case MarkO:
		return Second, true
	default:
		return 0, false
	}
}
