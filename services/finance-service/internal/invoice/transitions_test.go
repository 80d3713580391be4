package invoice

import (
	"errors"
	"testing"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

func TestValidateTransition_AllPairs(t *testing.T) {
	allowed := map[InvoiceStatus]map[InvoiceStatus]bool{
		StatusDraft:         {StatusPending: true, StatusCancelled: true},
		StatusPending:       {StatusPaid: true, StatusPartiallyPaid: true, StatusOverdue: true, StatusCancelled: true},
		StatusPartiallyPaid: {StatusPaid: true, StatusOverdue: true, StatusCancelled: true},
		StatusOverdue:       {StatusPaid: true, StatusPartiallyPaid: true, StatusCancelled: true},
		StatusPaid:          {},
		StatusCancelled:     {},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			err := ValidateTransition(from, to)
			switch {
			case from == to:
				if err != nil {
					t.Errorf("%s -> %s: same-state move should be silent, got %v", from, to, err)
				}
			case allowed[from][to]:
				if err != nil {
					t.Errorf("%s -> %s: expected legal, got %v", from, to, err)
				}
			case IsTerminal(from):
				if !errors.Is(err, domainErr.ErrTerminalState) {
					t.Errorf("%s -> %s: expected ErrTerminalState, got %v", from, to, err)
				}
			default:
				if !errors.Is(err, domainErr.ErrInvalidTransition) {
					t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
				}
			}
			if CanTransition(from, to) != (err == nil) {
				t.Errorf("%s -> %s: CanTransition disagrees with ValidateTransition", from, to)
			}
		}
	}
}

func TestValidateTransition_TransitionErrorCarriesEdge(t *testing.T) {
	err := ValidateTransition(StatusDraft, StatusPaid)
	var te *domainErr.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %T", err)
	}
	if te.From != "DRAFT" || te.To != "PAID" {
		t.Errorf("got edge %s -> %s", te.From, te.To)
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	tests := []struct {
		name     string
		from, to InvoiceStatus
	}{
		{"unknown source", "ARCHIVED", StatusPaid},
		{"unknown target", StatusDraft, "SENT"},
		{"empty", "", StatusDraft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTransition(tt.from, tt.to); !errors.Is(err, domainErr.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range TerminalStates() {
		if !IsTerminal(s) {
			t.Errorf("%s listed as terminal but IsTerminal is false", s)
		}
		if len(ValidNextStates(s)) != 0 {
			t.Errorf("%s is terminal but has outgoing edges", s)
		}
	}
	for _, s := range []InvoiceStatus{StatusDraft, StatusPending, StatusPartiallyPaid, StatusOverdue} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestValidNextStates_ReturnsCopy(t *testing.T) {
	next := ValidNextStates(StatusDraft)
	if len(next) != 2 {
		t.Fatalf("expected 2 edges from DRAFT, got %v", next)
	}
	next[0] = StatusPaid
	if CanTransition(StatusDraft, StatusPaid) {
		t.Fatal("mutating the returned slice changed the table")
	}
}
