package confirmation

import (
	"fmt"
	"strconv"
	"strings"
)

// Storage keys shared with the host platform.
const (
	MetaConfirmedUsers = "hm_car_confirmed_users"
	MetaEnabled        = "hm_car_enabled"
	OptionSettings     = "hm_confirm_as_read_settings"
)

// Request surface.
const (
	ParamConfirmToken   = "hm-car-action-confirm-nonce"
	ParamUnconfirmToken = "hm-car-action-unconfirm-nonce"
	ParamItemID         = "hm-car-post-id"
	ParamStatus         = "hm-car-status"

	FieldEnabled       = "hm_car_enabled"
	FieldReset         = "hm_car_reset"
	FieldItemToken     = "hm_car_item_nonce"
	FieldSettingsToken = "hm_car_settings_nonce"
)

// Action is a state-changing request kind. Each action is its own token namespace.
type Action string

const (
	ActionConfirm      Action = "hm-car-action-confirm"
	ActionUnconfirm    Action = "hm-car-action-unconfirm"
	ActionItemSettings Action = "hm-car-item-settings"
	ActionSettings     Action = "hm-car-settings"
)

func (a Action) Valid() bool {
	switch a {
	case ActionConfirm, ActionUnconfirm, ActionItemSettings, ActionSettings:
		return true
	default:
		return false
	}
}

// TokenParam is the query parameter carrying the token for a toggle action.
func (a Action) TokenParam() string {
	switch a {
	case ActionConfirm:
		return ParamConfirmToken
	case ActionUnconfirm:
		return ParamUnconfirmToken
	default:
		return ""
	}
}

// Status is the indicator appended to the redirect after a toggle.
func (a Action) Status() string {
	switch a {
	case ActionConfirm:
		return "confirmed"
	case ActionUnconfirm:
		return "unconfirmed"
	default:
		return ""
	}
}

// Outcome tags why a transition did or did not happen.
type Outcome string

const (
	OutcomeApplied             Outcome = "applied"
	OutcomeUnchanged           Outcome = "unchanged"
	OutcomeRejectedBadToken    Outcome = "rejected_bad_token"
	OutcomeRejectedMissingItem Outcome = "rejected_missing_item"
	OutcomeRejectedNotEligible Outcome = "rejected_not_eligible"
	OutcomeRejectedForbidden   Outcome = "rejected_forbidden"
	OutcomeFailed              Outcome = "failed"
)

// Accepted reports whether the request passed every guard.
func (o Outcome) Accepted() bool {
	return o == OutcomeApplied || o == OutcomeUnchanged
}

// ParseItemID parses a raw item id parameter.
func ParseItemID(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrItemIDRequired
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidItemID, raw)
	}
	return id, nil
}
