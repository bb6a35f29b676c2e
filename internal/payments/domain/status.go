package payments

// FactStatus is the lifecycle status of a transaction fact.
type FactStatus string

const (
	FactAwaitingReview    FactStatus = "AWAITING_REVIEW"
	FactAwaitingApproval  FactStatus = "AWAITING_APPROVAL"
	FactAwaitingInvoicing FactStatus = "AWAITING_INVOICING"
	FactHold              FactStatus = "HOLD"
	FactStale             FactStatus = "STALE"
	FactInvoiced          FactStatus = "INVOICED"
)

// ParseFactStatus validates a status name.
func ParseFactStatus(raw string) (FactStatus, bool) {
	switch s := FactStatus(raw); s {
	case FactAwaitingReview, FactAwaitingApproval, FactAwaitingInvoicing, FactHold, FactStale, FactInvoiced:
		return s, true
	}
	return "", false
}

// Live reports whether the status takes part in settlement.
func (s FactStatus) Live() bool {
	return s != FactStale && s != FactInvoiced
}

// CanTransition reports whether a fact may move from s to next.
func (s FactStatus) CanTransition(next FactStatus) bool {
	if !s.Live() || s == next {
		return false
	}
	switch next {
	case FactHold:
		return true
	case FactAwaitingApproval:
		return s == FactAwaitingReview
	case FactAwaitingInvoicing:
		return s == FactAwaitingApproval
	case FactAwaitingReview:
		return s == FactHold
	default:
		return false
	}
}
