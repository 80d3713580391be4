// services/finance-service/internal/invoice/transitions.go

package invoice

import (
	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

// transitionTable lists the legal outgoing edges per status.
// Same-state moves are always legal and are not listed.
var transitionTable = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:         {StatusPending, StatusCancelled},
	StatusPending:       {StatusPaid, StatusPartiallyPaid, StatusOverdue, StatusCancelled},
	StatusPartiallyPaid: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue:       {StatusPaid, StatusPartiallyPaid, StatusCancelled},
	StatusPaid:          {},
	StatusCancelled:     {},
}

var terminalStates = map[InvoiceStatus]struct{}{
	StatusPaid:      {},
	StatusCancelled: {},
}

// TerminalStates returns the statuses with no outgoing edges.
func TerminalStates() []InvoiceStatus {
	return []InvoiceStatus{StatusPaid, StatusCancelled}
}

func IsTerminal(s InvoiceStatus) bool {
	_, ok := terminalStates[s]
	return ok
}

// ValidNextStates returns a copy of the outgoing edges of from.
func ValidNextStates(from InvoiceStatus) []InvoiceStatus {
	next := transitionTable[from]
	out := make([]InvoiceStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to InvoiceStatus) bool {
	return ValidateTransition(from, to) == nil
}

// ValidateTransition is silent for legal edges and same-state moves.
// Terminal sources fail with ErrTerminalState, everything else with
// ErrInvalidTransition.
func ValidateTransition(from, to InvoiceStatus) error {
	if !from.Valid() {
		return domainErr.NewValidationError("status", "unknown status "+string(from))
	}
	if !to.Valid() {
		return domainErr.NewValidationError("status", "unknown status "+string(to))
	}
	if from == to {
		return nil
	}
	if IsTerminal(from) {
		return &domainErr.TransitionError{From: string(from), To: string(to), Err: domainErr.ErrTerminalState}
	}
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return nil
		}
	}
	return &domainErr.TransitionError{From: string(from), To: string(to), Err: domainErr.ErrInvalidTransition}
}
