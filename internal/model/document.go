// Package model provides the data models shared by the retrieval core.
package model

// Document is a source text plus its identifier. It is immutable once loaded.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Source  string `json:"source"` // file path or URL
	Content string `json:"content,omitempty"`
}

// Passage is a contiguous substring of a Document, the unit of retrieval.
//
// Offset and Length are byte positions in the owning document's Content, so
// Content[Offset:Offset+Length] == Text always holds.
type Passage struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	// Index is the ordinal of the passage within its document.
	Index int `json:"index"`
}

// End returns the byte offset just past the passage.
func (p Passage) End() int {
	return p.Offset + p.Length
}
