package eligibility

import "strings"

// Reason explains a negative decision.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonItemNotFound     Reason = "item_not_found"
	ReasonTypeUnsupported  Reason = "type_unsupported"
	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonNoReadPermission Reason = "no_read_permission"
	ReasonNotEnabled       Reason = "not_enabled"
)

// Conditions are the four independent checks, already resolved by the caller.
type Conditions struct {
	TypeSupported bool
	Authenticated bool
	CanRead       bool
	Enabled       bool
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

// Evaluate requires every condition. The first failing check, in declaration order,
// names the reason.
func Evaluate(in Conditions) Decision {
	switch {
	case !in.TypeSupported:
		return deny(ReasonTypeUnsupported)
	case !in.Authenticated:
		return deny(ReasonNotAuthenticated)
	case !in.CanRead:
		return deny(ReasonNoReadPermission)
	case !in.Enabled:
		return deny(ReasonNotEnabled)
	default:
		return Decision{Allowed: true}
	}
}

func Deny(reason Reason) Decision {
	return deny(reason)
}

func deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// TypeSet is the startup-time set of item types that carry the feature.
type TypeSet map[string]struct{}

// DefaultTypes are the host's two built-in content kinds.
var DefaultTypes = []string{"post", "page"}

func NewTypeSet(types []string) TypeSet {
	set := make(TypeSet, len(types))
	for _, raw := range types {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func (s TypeSet) Supports(itemType string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(itemType))]
	return ok
}
