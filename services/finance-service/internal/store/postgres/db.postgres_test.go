package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		in      error
		wantIs  error
		wantNil bool
	}{
		{name: "nil", in: nil, wantNil: true},
		{
			name:   "document number taken",
			in:     &pq.Error{Code: "23505", Constraint: "invoices_document_number_key", Detail: "Key (document_number)=(INV-2025-0001) already exists."},
			wantIs: domainErr.ErrDuplicateDocumentNumber,
		},
		{
			name:   "wrapped document number taken",
			in:     fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "invoices_document_number_key"}),
			wantIs: domainErr.ErrDuplicateDocumentNumber,
		},
		{
			name:   "deadline",
			in:     context.DeadlineExceeded,
			wantIs: domainErr.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.wantIs) {
				t.Errorf("expected %v, got %v", tt.wantIs, got)
			}
		})
	}
}

func TestMapError_OtherUniqueViolationPassesThrough(t *testing.T) {
	in := &pq.Error{Code: "23505", Constraint: "document_artifacts_pkey"}
	got := mapError(in)
	if errors.Is(got, domainErr.ErrDuplicateDocumentNumber) {
		t.Fatal("only the document number constraint is a numbering collision")
	}
	var pqErr *pq.Error
	if !errors.As(got, &pqErr) {
		t.Errorf("driver error lost: %v", got)
	}
}

func TestSchema_DeclaresNumberConstraint(t *testing.T) {
	if !strings.Contains(schema, documentNumberUnique) {
		t.Fatalf("schema.sql must name the %s constraint that mapError relies on", documentNumberUnique)
	}
	for _, table := range []string{"invoices", "invoice_items", "invoice_payments", "invoice_status_history", "document_artifacts"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema is missing table %s", table)
		}
	}
}
