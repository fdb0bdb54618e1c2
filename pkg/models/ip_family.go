package models

import "fmt"

// IPFamily is the address family a browser session was pinned to.
type IPFamily int

const (
	FamilyV4 IPFamily = iota
	FamilyV6
	FamilyBoth
)

func (f IPFamily) String() string {
	switch f {
	case FamilyV4:
		return "v4"
	case FamilyV6:
		return "v6"
	case FamilyBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Mode selects which families a target is crawled over.
type Mode int

const (
	ModeIPv4 Mode = iota
	ModeIPv6
	ModeDual
)

func (m Mode) String() string {
	switch m {
	case ModeIPv4:
		return "ipv4"
	case ModeIPv6:
		return "ipv6"
	case ModeDual:
		return "dual"
	default:
		return "unknown"
	}
}

// Families lists the families a run in this mode touches, v4 first.
func (m Mode) Families() []IPFamily {
	switch m {
	case ModeIPv6:
		return []IPFamily{FamilyV6}
	case ModeDual:
		return []IPFamily{FamilyV4, FamilyV6}
	default:
		return []IPFamily{FamilyV4}
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "ipv4", "v4", "":
		return ModeIPv4, nil
	case "ipv6", "v6":
		return ModeIPv6, nil
	case "dual", "both", "dual-stack":
		return ModeDual, nil
	}
	return ModeIPv4, fmt.Errorf("unknown ip mode %q", s)
}
