package enums

import "fmt"

// TradeRole identifies which side of a trade a user occupies.
type TradeRole string

const (
	TradeRoleBuyer  TradeRole = "buyer"
	TradeRoleSeller TradeRole = "seller"
)

var validTradeRoles = []TradeRole{
	TradeRoleBuyer,
	TradeRoleSeller,
}

// String implements fmt.Stringer.
func (r TradeRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known TradeRole.
func (r TradeRole) IsValid() bool {
	for _, role := range validTradeRoles {
		if role == r {
			return true
		}
	}
	return false
}

// Counterpart returns the opposite role.
func (r TradeRole) Counterpart() TradeRole {
	if r == TradeRoleBuyer {
		return TradeRoleSeller
	}
	return TradeRoleBuyer
}

// ParseTradeRole converts raw input into a TradeRole.
func ParseTradeRole(value string) (TradeRole, error) {
	role := TradeRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid trade role %q", value)
	}
	return role, nil
}
