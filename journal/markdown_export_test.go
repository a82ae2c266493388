package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteMarkdownShardsSplitsAndIndexes(t *testing.T) {
	t.Parallel()

	outDir := filepath.Join(t.TempDir(), "export")
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 4; i++ {
		e := entryAt(base.Add(time.Duration(3-i)*time.Hour), []string{"calm", "Calm"}, []string{"routine"})
		e.ID = "id-" + string(rune('a'+i))
		e.Text = strings.Repeat("words ", 40)
		entries = append(entries, e)
	}

	records, err := WriteMarkdownShards(entries, MarkdownOptions{OutDir: outDir, MaxBytes: 600})
	if err != nil {
		t.Fatalf("WriteMarkdownShards: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records=%d", len(records))
	}
	// Oldest first.
	if records[0].EntryID != "id-d" || records[3].EntryID != "id-a" {
		t.Fatalf("order=%s..%s", records[0].EntryID, records[3].EntryID)
	}
	if records[0].Anchor != "entry-id-d" {
		t.Fatalf("anchor=%q", records[0].Anchor)
	}
	if len(records[0].Emotions) != 1 {
		t.Fatalf("emotions not deduped: %v", records[0].Emotions)
	}

	shards := map[string]bool{}
	for _, r := range records {
		shards[r.ShardFile] = true
	}
	if len(shards) < 2 {
		t.Fatalf("expected multiple shards, got %v", shards)
	}

	b, err := os.ReadFile(filepath.Join(outDir, "journal_0001.md"))
	if err != nil {
		t.Fatalf("read shard: %v", err)
	}
	md := string(b)
	if !strings.HasPrefix(md, "# Journal Shard 0001\n\n") {
		t.Fatalf("header=%q", md[:30])
	}
	if !strings.Contains(md, `<a id="entry-id-d"></a>`) || !strings.Contains(md, "**themes**: routine") {
		t.Fatalf("shard content missing section:\n%s", md)
	}

	if _, err := WriteMarkdownShards(entries, MarkdownOptions{OutDir: outDir, MaxBytes: 600}); err == nil {
		t.Fatalf("expected error when shards exist and overwrite=false")
	}
	if _, err := WriteMarkdownShards(entries, MarkdownOptions{OutDir: outDir, MaxBytes: 600, Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	indexPath := filepath.Join(outDir, "index.jsonl")
	if err := WriteShardIndex(indexPath, records, false); err != nil {
		t.Fatalf("WriteShardIndex: %v", err)
	}
	idx, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if strings.Count(string(idx), "\n") != 4 {
		t.Fatalf("index lines=%d", strings.Count(string(idx), "\n"))
	}
	if err := WriteShardIndex(indexPath, records, false); err == nil {
		t.Fatalf("expected error when index exists and overwrite=false")
	}
}

func TestSanitizeAnchor(t *testing.T) {
	t.Parallel()

	if got := sanitizeAnchor("  Hello World!  "); got != "hello-world" {
		t.Fatalf("got=%q", got)
	}
	if got := sanitizeAnchor(""); got != "entry" {
		t.Fatalf("got=%q", got)
	}
}
