package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		outDir    string
		indexPath string
		maxBytes  int
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the journal as markdown shards with a JSONL index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return errors.New("missing --out")
			}
			if maxBytes <= 0 {
				return errors.New("--max-bytes must be > 0")
			}
			if indexPath == "" {
				indexPath = filepath.Join(outDir, "index.jsonl")
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.ListEntries(service.ListQuery{})
			if err != nil {
				return err
			}
			index, err := journal.WriteMarkdownShards(entries, journal.MarkdownOptions{
				OutDir:    outDir,
				MaxBytes:  maxBytes,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			if err := journal.WriteShardIndex(indexPath, index, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entries_exported=%d out_dir=%s index=%s\n", len(index), outDir, indexPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory for journal_NNNN.md shards")
	cmd.Flags().StringVar(&indexPath, "index", "", "Index path (default <out>/index.jsonl)")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 100*1024, "Approximate maximum shard size in bytes")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing shards and index")
	return cmd
}

func newReindexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the retrieval file from the journal log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.store.RebuildRetrieval()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "records_written=%d retrieval=%s\n", n, a.store.RetrievalPath())
			return nil
		},
	}
}
