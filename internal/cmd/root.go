package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the pagetext command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pagetext",
		Short: "Extract text from PDFs page range by page range",
		Long: `pagetext splits a document into fixed-size page ranges, extracts each range
through a language model (or the local PDF parser) with bounded concurrency and
retries, and reassembles the text in page order.`,
		SilenceUsage: true,
	}
	root.AddCommand(newExtractCmd(), newServeCmd())
	return root
}

// Execute runs the root command. Cancelling ctx stops any run in progress.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
