package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/theimaginaryfoundation/reflect-o-bot/journal/fileutils"
)

type MarkdownOptions struct {
	OutDir    string
	MaxBytes  int
	Overwrite bool
}

// ShardIndexRecord maps one entry to the markdown shard and anchor that hold it.
type ShardIndexRecord struct {
	EntryID   string    `json:"entry_id,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	ShardFile string    `json:"shard_file"`
	Anchor    string    `json:"anchor"`
	Summary   string    `json:"summary"`
	Emotions  []string  `json:"emotions,omitempty"`
	Themes    []string  `json:"themes,omitempty"`
}

// WriteMarkdownShards renders entries oldest first into journal_NNNN.md files of roughly
// MaxBytes each. A single entry larger than MaxBytes gets a shard of its own.
func WriteMarkdownShards(entries []Entry, opts MarkdownOptions) ([]ShardIndexRecord, error) {
	if opts.OutDir == "" {
		return nil, errors.New("WriteMarkdownShards: OutDir is empty")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 100 * 1024
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteMarkdownShards: mkdir OutDir: %w", err)
	}

	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Time.Before(sorted[j].Timestamp.Time)
	})

	var (
		shardNum     = 1
		curr         strings.Builder
		currFilename = ""
		index        []ShardIndexRecord
	)

	flush := func() error {
		if curr.Len() == 0 {
			return nil
		}
		outPath := filepath.Join(opts.OutDir, currFilename)
		if !opts.Overwrite && fileutils.FileExists(outPath) {
			return fmt.Errorf("WriteMarkdownShards: shard exists: %s", outPath)
		}
		if err := fileutils.WriteFileAtomicSameDir(outPath, []byte(curr.String()), 0o644); err != nil {
			return fmt.Errorf("WriteMarkdownShards: write shard: %w", err)
		}
		shardNum++
		curr.Reset()
		currFilename = ""
		return nil
	}

	seen := map[string]int{}
	for _, e := range sorted {
		anchor := uniqueAnchor(entryAnchor(e), seen)
		section := renderEntryMarkdown(e, anchor)

		if curr.Len() > 0 && curr.Len()+len(section) > opts.MaxBytes {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if curr.Len() == 0 {
			currFilename = shardName(shardNum)
			fmt.Fprintf(&curr, "# Journal Shard %04d\n\n", shardNum)
		}
		curr.WriteString(section)

		a := e.Analysis.normalized()
		index = append(index, ShardIndexRecord{
			EntryID:   e.ID,
			Timestamp: e.Timestamp,
			ShardFile: currFilename,
			Anchor:    anchor,
			Summary:   fileutils.Truncate(a.Summary, 400),
			Emotions:  dedupeStrings(a.Emotions),
			Themes:    dedupeStrings(a.Themes),
		})
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return index, nil
}

// WriteShardIndex writes index records as JSONL.
func WriteShardIndex(path string, records []ShardIndexRecord, overwrite bool) error {
	if path == "" {
		return errors.New("WriteShardIndex: path is empty")
	}
	if !overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("WriteShardIndex: file exists: %s", path)
	}
	return fileutils.WriteJSONLinesAtomic(path, records)
}

func shardName(n int) string {
	return fmt.Sprintf("journal_%04d.md", n)
}

func entryAnchor(e Entry) string {
	if e.ID != "" {
		return "entry-" + sanitizeAnchor(e.ID)
	}
	return "entry-" + sanitizeAnchor(e.Timestamp.Time.UTC().Format("20060102t150405"))
}

func uniqueAnchor(anchor string, seen map[string]int) string {
	seen[anchor]++
	if n := seen[anchor]; n > 1 {
		return fmt.Sprintf("%s-%d", anchor, n)
	}
	return anchor
}

func renderEntryMarkdown(e Entry, anchor string) string {
	a := e.Analysis.normalized()

	var b strings.Builder
	fmt.Fprintf(&b, "<a id=\"%s\"></a>\n", anchor)
	fmt.Fprintf(&b, "## %s\n\n", e.Timestamp.Time.Format("2006-01-02 15:04"))
	if s := strings.TrimSpace(a.Summary); s != "" {
		fmt.Fprintf(&b, "_%s_\n\n", escapeMarkdownInline(s))
	}

	writeList := func(label string, items []string) {
		items = dedupeStrings(items)
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "**%s**: %s\n\n", label, escapeMarkdownInline(strings.Join(items, ", ")))
	}
	writeList("emotions", a.Emotions)
	writeList("patterns", a.Patterns)
	writeList("themes", a.Themes)

	if t := strings.TrimSpace(e.Text); t != "" {
		for _, line := range strings.Split(t, "\n") {
			b.WriteString("> ")
			b.WriteString(strings.TrimRight(line, "\r"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	return b.String()
}

func sanitizeAnchor(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "entry"
	}
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		} else {
			out.WriteByte('-')
		}
	}
	return strings.Trim(out.String(), "-")
}

func escapeMarkdownInline(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
