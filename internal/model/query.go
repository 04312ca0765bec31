package model

import "time"

// Source is a retrieved passage as reported to the caller.
type Source struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Path       string  `json:"path,omitempty"`
	Offset     int     `json:"offset"`
	Length     int     `json:"length"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// QueryResult is the outcome of one question answered against an index.
type QueryResult struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	// Context is the exact context string given to the answerer.
	Context   string    `json:"context"`
	Prompt    string    `json:"prompt,omitempty"`
	Sources   []Source  `json:"sources"`
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}
