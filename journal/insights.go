package journal

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type EmotionMonthCount struct {
	Month   time.Time `json:"month"`
	Emotion string    `json:"emotion"`
	Count   int       `json:"count"`
}

// NormalizeLabel trims and title-cases a label so "  anxious" and "Anxious" count together.
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

// ThemeFrequency counts normalized themes across entries and returns the topN most frequent.
// Ties order by label. topN <= 0 returns every theme.
func ThemeFrequency(entries []Entry, topN int) []LabelCount {
	counts := map[string]int{}
	for _, e := range entries {
		for _, t := range e.Analysis.Themes {
			if l := NormalizeLabel(t); l != "" {
				counts[l]++
			}
		}
	}
	return topLabels(counts, topN)
}

// EmotionTimeline counts the topN emotions per calendar month, in the timestamp's own
// location. Rows are ordered by month, then emotion.
func EmotionTimeline(entries []Entry, topN int) []EmotionMonthCount {
	type key struct {
		year    int
		month   time.Month
		emotion string
	}
	totals := map[string]int{}
	perMonth := map[key]int{}
	// The first entry seen for a month supplies the location of its Month value.
	monthLoc := map[[2]int]*time.Location{}

	for _, e := range entries {
		ts := e.Timestamp.Time
		ym := [2]int{ts.Year(), int(ts.Month())}
		if _, ok := monthLoc[ym]; !ok {
			monthLoc[ym] = ts.Location()
		}
		for _, em := range e.Analysis.Emotions {
			l := NormalizeLabel(em)
			if l == "" {
				continue
			}
			totals[l]++
			perMonth[key{year: ts.Year(), month: ts.Month(), emotion: l}]++
		}
	}

	keep := map[string]bool{}
	for _, lc := range topLabels(totals, topN) {
		keep[lc.Label] = true
	}

	out := make([]EmotionMonthCount, 0, len(perMonth))
	for k, n := range perMonth {
		if !keep[k.emotion] {
			continue
		}
		loc := monthLoc[[2]int{k.year, int(k.month)}]
		out = append(out, EmotionMonthCount{
			Month:   time.Date(k.year, k.month, 1, 0, 0, 0, 0, loc),
			Emotion: k.emotion,
			Count:   n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month.Year() != out[j].Month.Year() {
			return out[i].Month.Year() < out[j].Month.Year()
		}
		if out[i].Month.Month() != out[j].Month.Month() {
			return out[i].Month.Month() < out[j].Month.Month()
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out
}

func topLabels(counts map[string]int, topN int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	for l, n := range counts {
		out = append(out, LabelCount{Label: l, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
