package extract

import (
	"math"
	"strings"

	"go.uber.org/zap"
)

// wordTokenRate approximates model tokens per whitespace-separated word
const wordTokenRate = 0.75

// Chunker splits document text into overlapping, token-bounded chunks
type Chunker struct {
	TokenThreshold int
	OverlapRate    float64
	// MaxChunks caps the chunks handed to the model; zero means no cap
	MaxChunks int
}

// DefaultChunker matches the extraction defaults: 1000 tokens, 5% overlap,
// at most 5 chunks
func DefaultChunker() Chunker {
	return Chunker{TokenThreshold: 1000, OverlapRate: 0.05, MaxChunks: 5}
}

// Split chunks text. When the document would need more than MaxChunks
// chunks, the tail is dropped and a warning is logged.
func (c Chunker) Split(text string, logger *zap.Logger) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	size := c.wordsPerChunk()
	overlap := int(float64(size) * c.OverlapRate)
	if overlap >= size {
		overlap = size - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	step := size - overlap

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}

	if c.MaxChunks > 0 && len(chunks) > c.MaxChunks {
		if logger != nil {
			logger.Warn("document exceeds chunk limit",
				zap.Int("chunks", len(chunks)),
				zap.Int("max_chunks", c.MaxChunks))
		}
		chunks = chunks[:c.MaxChunks]
	}

	return chunks
}

func (c Chunker) wordsPerChunk() int {
	threshold := c.TokenThreshold
	if threshold <= 0 {
		threshold = 1000
	}
	n := int(math.Floor(float64(threshold) / wordTokenRate))
	if n < 1 {
		n = 1
	}
	return n
}
