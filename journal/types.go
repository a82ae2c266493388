package journal

import "encoding/json"

// FallbackSummary is the summary recorded when a model reply carries no usable analysis.
const FallbackSummary = "Could not parse summary."

// Entry is one persisted line of the journal log.
type Entry struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Analysis  Analysis  `json:"analysis"`
	Timestamp Timestamp `json:"timestamp"`
}

// Analysis is the structured reading of an entry. Emotions, Patterns and Themes are always
// encoded as arrays, never null.
type Analysis struct {
	Summary    string   `json:"summary" jsonschema:"required,description=A gentle one-sentence summary of the entry."`
	Emotions   []string `json:"emotions" jsonschema:"required,maxItems=3,description=Primary emotions (max 3)."`
	Patterns   []string `json:"patterns" jsonschema:"required,maxItems=3,description=Cognitive distortions such as catastrophizing or self-blame (max 3)."`
	Themes     []string `json:"themes" jsonschema:"required,maxItems=3,description=Core themes such as work stress or relationships (max 3)."`
	AIThoughts *string  `json:"ai_thoughts" jsonschema:"-"`
	RawOutput  string   `json:"raw_output" jsonschema:"-"`
}

// Thoughts returns the reasoning segment or "" when the reply had none.
func (a Analysis) Thoughts() string {
	if a.AIThoughts == nil {
		return ""
	}
	return *a.AIThoughts
}

func (a Analysis) normalized() Analysis {
	if a.Emotions == nil {
		a.Emotions = []string{}
	}
	if a.Patterns == nil {
		a.Patterns = []string{}
	}
	if a.Themes == nil {
		a.Themes = []string{}
	}
	return a
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	type plain Analysis
	return json.Marshal(plain(a.normalized()))
}

func (a *Analysis) UnmarshalJSON(b []byte) error {
	type plain Analysis
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Analysis(p).normalized()
	return nil
}

// RetrievalRecord is the reduced projection appended for the external retrieval indexer.
type RetrievalRecord struct {
	Content  string            `json:"content"`
	Metadata RetrievalMetadata `json:"metadata"`
}

type RetrievalMetadata struct {
	Timestamp Timestamp `json:"timestamp"`
	Themes    []string  `json:"themes"`
	Emotions  []string  `json:"emotions"`
}

func retrievalRecordFor(e Entry) RetrievalRecord {
	a := e.Analysis.normalized()
	return RetrievalRecord{
		Content: e.Text,
		Metadata: RetrievalMetadata{
			Timestamp: e.Timestamp,
			Themes:    a.Themes,
			Emotions:  a.Emotions,
		},
	}
}
