package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal/fileutils"
)

func newAddCmd(opts *globalOptions) *cobra.Command {
	var (
		file      string
		at        string
		noAnalyze bool
	)
	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Record a journal entry",
		Long: `Records a journal entry. The text comes from the arguments, from --file, or from stdin
when neither is given. The entry is saved even when the model cannot be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var when time.Time
			if at != "" {
				when, err = journal.ParseTimestamp(at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.AddEntry(cmd.Context(), service.AddEntryInput{Text: text, At: when, SkipAnalysis: noAnalyze})
			if err != nil {
				return err
			}
			for _, w := range res.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			printEntry(cmd.OutOrStdout(), res.Entry)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Read the entry from a file ('-' for stdin)")
	cmd.Flags().StringVar(&at, "at", "", "Backdate the entry (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "Save without calling the model")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		from, to    string
		asJSON      bool
		newestFirst bool
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var q service.ListQuery
			var err error
			if from != "" {
				if q.From, err = journal.ParseTimestamp(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if q.To, err = journal.ParseRangeEnd(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			if limit < 0 {
				return errors.New("--limit must be >= 0")
			}
			q.NewestFirst = newestFirst
			q.Limit = limit

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.ListEntries(q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
				return nil
			}
			for _, e := range entries {
				printEntry(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Only entries at or after this time")
	cmd.Flags().StringVar(&to, "to", "", "Only entries at or before this time; a bare date includes the whole day")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as a JSON array")
	cmd.Flags().BoolVar(&newestFirst, "newest-first", false, "Print the most recent entries first")
	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many of the most recent entries (0 = all)")
	return cmd
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Send a free-form message to the journaling model",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := readInput(args, "", cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			reply, err := a.svc.Chat(cmd.Context(), message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

// readInput joins args, or reads file ("-" is stdin), or falls back to stdin.
func readInput(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 && file != "" {
		return "", errors.New("give the text as arguments or --file, not both")
	}
	var text string
	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case file != "" && file != "-":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		text = string(b)
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", service.ErrEmptyText
	}
	return text, nil
}

func printEntry(w io.Writer, e journal.Entry) {
	fmt.Fprintf(w, "%s  %s\n", e.Timestamp.Time.Format(time.RFC3339), fileutils.Truncate(strings.Join(strings.Fields(e.Text), " "), 80))
	fmt.Fprintf(w, "  summary:  %s\n", e.Analysis.Summary)
	if len(e.Analysis.Emotions) > 0 {
		fmt.Fprintf(w, "  emotions: %s\n", strings.Join(e.Analysis.Emotions, ", "))
	}
	if len(e.Analysis.Patterns) > 0 {
		fmt.Fprintf(w, "  patterns: %s\n", strings.Join(e.Analysis.Patterns, ", "))
	}
	if len(e.Analysis.Themes) > 0 {
		fmt.Fprintf(w, "  themes:   %s\n", strings.Join(e.Analysis.Themes, ", "))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
