package graph

import (
	"iter"
	"strings"
)

const (
	DefaultChunkSize    = 100
	DefaultChunkOverlap = 20
)

// Chunk is a window of consecutive words taken from the input text.
// Start and End are word offsets, End exclusive.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping word windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a chunker producing windows of size words that share
// overlap words with the previous window. A non-positive size falls back to
// DefaultChunkSize and a negative overlap is treated as zero.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return Chunker{size: size, overlap: overlap}
}

func (c Chunker) step() int {
	return max(1, c.size-c.overlap)
}

// Chunks returns the chunks of text in order. The sequence is lazy and can be
// ranged over more than once.
//
// Text with no words yields nothing. Text with at most size words yields a
// single chunk holding the original text unchanged.
func (c Chunker) Chunks(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}
		if len(words) <= c.size {
			yield(Chunk{Index: 0, Start: 0, End: len(words), Text: text})
			return
		}

		step := c.step()
		for i, start := 0, 0; start < len(words); i, start = i+1, start+step {
			end := min(start+c.size, len(words))
			if !yield(Chunk{
				Index: i,
				Start: start,
				End:   end,
				Text:  strings.Join(words[start:end], " "),
			}) {
				return
			}
			if end == len(words) {
				return
			}
		}
	}
}

// Count returns how many chunks Chunks(text) yields without materializing them.
func (c Chunker) Count(text string) int {
	return c.countWords(len(strings.Fields(text)))
}

func (c Chunker) countWords(words int) int {
	if words == 0 {
		return 0
	}
	if words <= c.size {
		return 1
	}
	step := c.step()
	// windows start at 0, step, 2*step, ... until one reaches the last word
	return (words-c.size+step-1)/step + 1
}
