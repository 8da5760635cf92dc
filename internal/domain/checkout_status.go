package domain

type CheckoutStatus string

const (
	CheckoutStatusEmpty          CheckoutStatus = "EMPTY"
	CheckoutStatusBuilding       CheckoutStatus = "BUILDING"
	CheckoutStatusMethodSelected CheckoutStatus = "METHOD_SELECTED"
	CheckoutStatusReady          CheckoutStatus = "READY"
	CheckoutStatusSubmitting     CheckoutStatus = "SUBMITTING"
	CheckoutStatusCompleted      CheckoutStatus = "COMPLETED"
	CheckoutStatusFailed         CheckoutStatus = "FAILED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	// a method may be chosen before the first item is scanned
	CheckoutStatusEmpty: {
		CheckoutStatusBuilding, CheckoutStatusMethodSelected, CheckoutStatusReady,
	},
	CheckoutStatusBuilding: {
		CheckoutStatusEmpty, CheckoutStatusMethodSelected, CheckoutStatusReady,
	},
	CheckoutStatusMethodSelected: {
		CheckoutStatusEmpty, CheckoutStatusBuilding, CheckoutStatusReady,
	},
	CheckoutStatusReady: {
		CheckoutStatusEmpty, CheckoutStatusBuilding, CheckoutStatusMethodSelected, CheckoutStatusSubmitting,
	},
	CheckoutStatusSubmitting: {
		CheckoutStatusCompleted, CheckoutStatusFailed,
	},
	CheckoutStatusCompleted: {
		CheckoutStatusEmpty,
	},
	// a failed submission keeps the cart; the cashier corrects it or retries
	CheckoutStatusFailed: {
		CheckoutStatusEmpty, CheckoutStatusBuilding, CheckoutStatusMethodSelected,
		CheckoutStatusReady, CheckoutStatusSubmitting,
	},
}

// CanTransitionTo reports whether a checkout may move from one status to another.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
