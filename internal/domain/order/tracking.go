package order

import "time"

// TrackingStep is one entry of the customer-facing fulfilment timeline
type TrackingStep struct {
	Status      Status     `json:"status"`
	Label       string     `json:"label"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// StatusChange records when an order reached a status
type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	By     string    `json:"by,omitempty"`
}

var forwardSteps = []Status{StatusEnCours, StatusLivraison, StatusLivre}

// Label returns the customer-facing name of a status
func (s Status) Label() string {
	switch s {
	case StatusEnCours:
		return "En cours de traitement"
	case StatusLivraison:
		return "Expédiée"
	case StatusLivre:
		return "Livrée"
	case StatusAnnule:
		return "Annulée"
	}
	return string(s)
}

// DeriveTrackingSteps builds the timeline from the status history. A step's
// completion time is the time of the change that reached it.
func DeriveTrackingSteps(history []StatusChange) []TrackingStep {
	reached := make(map[Status]time.Time, len(history))
	for _, change := range history {
		if _, seen := reached[change.Status]; !seen {
			reached[change.Status] = change.At
		}
	}

	steps := make([]TrackingStep, 0, len(forwardSteps)+1)
	for _, status := range forwardSteps {
		steps = append(steps, newStep(status, reached))
	}
	if _, cancelled := reached[StatusAnnule]; cancelled {
		steps = append(steps, newStep(StatusAnnule, reached))
	}
	return steps
}

func newStep(status Status, reached map[Status]time.Time) TrackingStep {
	step := TrackingStep{Status: status, Label: status.Label()}
	if at, ok := reached[status]; ok {
		at := at
		step.Completed = true
		step.CompletedAt = &at
	}
	return step
}
