package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

func newDocumentCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Fetch rendered invoice and receipt PDFs",
	}
	cmd.AddCommand(newDocumentGetCmd(rt), newDocumentHistoryCmd(rt))
	return cmd
}

func parseKind(raw string) (document.Kind, error) {
	kind := document.Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return "", domainErr.NewValidationError("kind", fmt.Sprintf("%q is not INVOICE or RECEIPT", raw))
	}
	return kind, nil
}

func newDocumentGetCmd(rt *runtime) *cobra.Command {
	var kindFlag, out string
	cmd := &cobra.Command{
		Use:   "get <invoice-id>",
		Short: "Return a signed URL for the current PDF, rendering it only if the content changed",
		Example: `  financectl document get 6f1c... --kind receipt
  financectl document get 6f1c... --out INV-2025-0001.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := d.lifecycle.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			res, err := d.documents.GetOrCreate(cmd.Context(), inv, kind, d.docOpts)
			if err != nil {
				return err
			}

			if out != "" {
				data, err := d.documents.Download(cmd.Context(), res.BlobKey, d.docOpts.Timeout)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"document_number": inv.DocumentNumber,
				"kind":            kind,
				"artifact_id":     res.ArtifactID,
				"content_hash":    res.ContentHash,
				"blob_key":        res.BlobKey,
				"signed_url":      res.SignedURL,
				"regenerated":     res.Regenerated,
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", string(document.KindInvoice), "INVOICE or RECEIPT")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also download the PDF to this path")
	return cmd
}

func newDocumentHistoryCmd(rt *runtime) *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "history <invoice-id>",
		Short: "List every rendered version, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			artifacts, err := d.documents.History(cmd.Context(), id, kind)
			if err != nil {
				return err
			}
			type row struct {
				ID          string `json:"id"`
				ContentHash string `json:"content_hash"`
				BlobKey     string `json:"blob_key"`
				Bytes       int64  `json:"bytes"`
				CreatedAt   string `json:"created_at"`
			}
			rows := make([]row, 0, len(artifacts))
			for _, a := range artifacts {
				rows = append(rows, row{
					ID:          a.ID.String(),
					ContentHash: a.ContentHash,
					BlobKey:     a.BlobKey,
					Bytes:       a.ByteSize,
					CreatedAt:   a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", string(document.KindInvoice), "INVOICE or RECEIPT")
	return cmd
}
