package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

const (
	// DefaultChunkSize is the default maximum passage size in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of characters shared by neighbouring passages.
	DefaultChunkOverlap = 200
)

// DefaultSeparators lists split boundaries from coarsest to finest:
// paragraph, line, sentence (Chinese and Latin), word.
// The empty separator splits between characters; it is not in the default
// list, so a single word longer than the chunk size is kept whole.
var DefaultSeparators = []string{"\n\n", "\n", "。", ". ", " "}

// SplitterConfig configures a Splitter. Sizes are counted in runes.
type SplitterConfig struct {
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	Separators   []string `json:"separators"`
}

// DefaultSplitterConfig returns the default splitter configuration.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Validate reports an ErrRAGInvalidConfig for sizes that cannot make progress.
func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.ErrRAGInvalidConfig.WithMessagef("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return errors.ErrRAGInvalidConfig.WithMessagef("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return errors.ErrRAGInvalidConfig.WithMessagef(
			"chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Span is a half-open byte range [Start, End) of the split text.
type Span struct {
	Start int
	End   int
}

// Splitter cuts text recursively on the coarsest boundary that keeps
// passages within ChunkSize, then merges the pieces into overlapping passages.
type Splitter struct {
	cfg SplitterConfig
}

// NewSplitter validates cfg and returns a Splitter.
// A nil Separators slice selects DefaultSeparators.
func NewSplitter(cfg SplitterConfig) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Separators == nil {
		cfg.Separators = DefaultSeparators
	}
	cfg.Separators = append([]string(nil), cfg.Separators...)
	return &Splitter{cfg: cfg}, nil
}

// Config returns the splitter configuration.
func (s *Splitter) Config() SplitterConfig {
	return s.cfg
}

// Split cuts doc into passages in left-to-right order.
// An empty document yields no passages.
func (s *Splitter) Split(doc model.Document) []model.Passage {
	spans := s.SplitText(doc.Content)
	passages := make([]model.Passage, 0, len(spans))
	for i, sp := range spans {
		passages = append(passages, model.Passage{
			Text:     doc.Content[sp.Start:sp.End],
			SourceID: doc.ID,
			Offset:   sp.Start,
			Length:   sp.End - sp.Start,
			Index:    i,
		})
	}
	return passages
}

// Split is a convenience wrapper that validates cfg and splits doc.
func Split(doc model.Document, cfg SplitterConfig) ([]model.Passage, error) {
	s, err := NewSplitter(cfg)
	if err != nil {
		return nil, err
	}
	return s.Split(doc), nil
}

// SplitText returns the passage spans of text. Consecutive spans overlap by
// at most ChunkOverlap runes and every byte of text lies in some span.
func (s *Splitter) SplitText(text string) []Span {
	if text == "" {
		return nil
	}
	pieces := s.cut(text, 0, len(text), s.cfg.Separators, nil)
	return s.merge(pieces)
}

// piece is an atomic run of text that is never split further.
type piece struct {
	start, end int
	runes      int
}

// cut splits text[start:end] into pieces no larger than ChunkSize where a
// boundary allows it. Separators stay attached to the piece they end, so the
// pieces tile the input exactly.
func (s *Splitter) cut(text string, start, end int, seps []string, out []piece) []piece {
	n := utf8.RuneCountInString(text[start:end])
	if n <= s.cfg.ChunkSize {
		return append(out, piece{start: start, end: end, runes: n})
	}

	for i, sep := range seps {
		if sep == "" {
			for off := start; off < end; {
				_, w := utf8.DecodeRuneInString(text[off:end])
				out = append(out, piece{start: off, end: off + w, runes: 1})
				off += w
			}
			return out
		}
		if !strings.Contains(text[start:end], sep) {
			continue
		}
		finer := seps[i+1:]
		pos := start
		for pos < end {
			idx := strings.Index(text[pos:end], sep)
			next := end
			if idx >= 0 {
				next = pos + idx + len(sep)
			}
			out = s.cut(text, pos, next, finer, out)
			pos = next
		}
		return out
	}

	// No boundary left: an over-long token is emitted whole.
	return append(out, piece{start: start, end: end, runes: n})
}

// merge packs pieces greedily into spans of at most ChunkSize runes. Each new
// span starts by stepping back over trailing pieces of the previous span
// worth at most ChunkOverlap runes, and always starts at least one piece later.
func (s *Splitter) merge(pieces []piece) []Span {
	size, overlap := s.cfg.ChunkSize, s.cfg.ChunkOverlap
	var spans []Span

	for i := 0; i < len(pieces); {
		j := i
		total := pieces[i].runes
		for j+1 < len(pieces) && total+pieces[j+1].runes <= size {
			j++
			total += pieces[j].runes
		}
		spans = append(spans, Span{Start: pieces[i].start, End: pieces[j].end})
		if j == len(pieces)-1 {
			break
		}

		next, carried := j+1, 0
		for next-1 > i {
			r := pieces[next-1].runes
			if carried+r > overlap || carried+r+pieces[j+1].runes > size {
				break
			}
			carried += r
			next--
		}
		i = next
	}
	return spans
}
