package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/gcsuploader"
	"github.com/dvloznov/finance-reconciler/internal/logger"
)

type ingestOptions struct {
	kind   string
	file   string
	gcsURI string
	name   string
}

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var in ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the extraction pipeline on one document synchronously",
		Long: "Reads already extracted text from a local file or a gs:// object, records it as a\n" +
			"document and runs the extraction pipeline on it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseDocumentKind(in.kind)
			if err != nil {
				return err
			}
			if (in.file == "") == (in.gcsURI == "") {
				return fmt.Errorf("exactly one of --file or --gcs-uri is required")
			}
			return opts.withServices(cmd, func(ctx context.Context, svc *Services) error {
				return runIngest(ctx, cmd, svc, kind, in)
			})
		},
	}

	cmd.Flags().StringVar(&in.kind, "kind", "", "document kind: invoice or bank_statement (required)")
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().StringVar(&in.file, "file", "", "local file holding the document text")
	cmd.Flags().StringVar(&in.gcsURI, "gcs-uri", "", "gs:// URI of the document text")
	cmd.Flags().StringVar(&in.name, "name", "", "file name to record (defaults to the source base name)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, svc *Services, kind domain.DocumentKind, in ingestOptions) error {
	var (
		data      []byte
		fileName  string
		sourceURI string
		err       error
	)
	switch {
	case in.file != "":
		data, err = os.ReadFile(in.file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", in.file, err)
		}
		fileName = filepath.Base(in.file)
	default:
		if svc.Fetcher == nil {
			return fmt.Errorf("--gcs-uri needs a configured GCS bucket")
		}
		data, err = svc.Fetcher.Fetch(ctx, in.gcsURI)
		if err != nil {
			return err
		}
		fileName = gcsuploader.FileNameFromURI(in.gcsURI)
		sourceURI = in.gcsURI
	}
	if in.name != "" {
		fileName = in.name
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%s is not UTF-8 text; extract the text first", fileName)
	}

	doc := &domain.Document{
		FileName:     fileName,
		Kind:         kind,
		OriginalText: string(data),
		SourceURI:    sourceURI,
	}
	if err := svc.Repo.CreateDocument(ctx, doc); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Debug().Int64("document_id", doc.ID).Str("file_name", fileName).Msg("Document recorded")

	res, err := svc.Ingester.Ingest(ctx, doc.ID, kind, doc.OriginalText)
	if err != nil {
		return fmt.Errorf("document %d: %w", doc.ID, err)
	}

	out := cmd.OutOrStdout()
	switch kind {
	case domain.KindInvoice:
		fmt.Fprintf(out, "Document %d processed: invoice %d with %d item(s)\n", doc.ID, *res.InvoiceID, res.ItemCount)
	case domain.KindBankStatement:
		fmt.Fprintf(out, "Document %d processed: bank statement %d with %d transaction(s)\n", doc.ID, *res.StatementID, res.TransactionCount)
	}
	return nil
}
