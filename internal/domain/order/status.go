package order

// Status is the lifecycle state of an order
type Status string

const (
	StatusEnCours   Status = "en_cours"
	StatusLivraison Status = "livraison"
	StatusLivre     Status = "livre"
	StatusAnnule    Status = "annule"
)

// validTransitions defines allowed state transitions. Moves are single-step;
// livre and annule are terminal.
var validTransitions = map[Status][]Status{
	StatusEnCours:   {StatusLivraison, StatusAnnule},
	StatusLivraison: {StatusLivre, StatusAnnule},
	StatusLivre:     {},
	StatusAnnule:    {},
}

// Valid reports whether s is one of the canonical statuses
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether no transition can leave s
func (s Status) Terminal() bool {
	return s.Valid() && len(validTransitions[s]) == 0
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentMethod is the mobile money operator used to pay
type PaymentMethod string

const (
	PaymentOrangeMoney PaymentMethod = "OM"
	PaymentMTNMoMo     PaymentMethod = "MOMO"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentOrangeMoney, PaymentMTNMoMo:
		return true
	}
	return false
}
