package domain

type CartState string

const (
	CartStateOpen      CartState = "OPEN"
	CartStatePurchased CartState = "PURCHASED"
)

func (s CartState) IsTerminal() bool {
	return s == CartStatePurchased
}

// String representation (for logging)
func (s CartState) String() string {
	return string(s)
}

// CanTransitionTo reports whether a cart in state from may move to state to.
// The only edge is OPEN -> PURCHASED; there is no way back.
func CanTransitionTo(from, to CartState) bool {
	return from == CartStateOpen && to == CartStatePurchased
}
