package item

import "time"

// ExportRecord is one item in a YAML export, body included.
type ExportRecord struct {
	ID        string    `yaml:"id"`
	Timestamp time.Time `yaml:"timestamp"`
	Type      Type      `yaml:"type"`
	Source    Source    `yaml:"source"`
	Length    int       `yaml:"length"`
	Text      string    `yaml:"text"`
}

// ExportDocument is the top-level YAML export.
type ExportDocument struct {
	ExportedAt time.Time      `yaml:"exported_at"`
	Total      int            `yaml:"total"`
	Items      []ExportRecord `yaml:"items"`
}

// ToExportRecord pairs metadata with its body.
func ToExportRecord(it Item, text string) ExportRecord {
	return ExportRecord{
		ID:        it.ID,
		Timestamp: it.Timestamp,
		Type:      it.Type,
		Source:    it.Source,
		Length:    it.Length,
		Text:      text,
	}
}

// ToItem rebuilds metadata from a record. Derived fields are recomputed from
// the text; an unknown source falls back to clipboard.
func (r ExportRecord) ToItem() Item {
	src := r.Source
	if !src.Valid() {
		src = SourceClipboard
	}
	return New(r.Text, src, r.Timestamp)
}
