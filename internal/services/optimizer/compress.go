package optimizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/j-veylop/tokenwatch/internal/models"
)

// Compression strategy names.
const (
	StrategySemantic      = "semantic"
	StrategyStructural    = "structural"
	StrategySummarization = "summarization"
	StrategyAdaptive      = "adaptive"
)

// ErrUnknownStrategy is returned for an unregistered compression strategy.
var ErrUnknownStrategy = errors.New("unknown compression strategy")

// Compressor shrinks context text and estimates how much meaning survived,
// as a quality score in [0, 1].
type Compressor interface {
	Name() string
	Compress(text string) (compressed string, quality float64)
}

func builtinCompressors() []Compressor {
	return []Compressor{semanticCompressor{}, structuralCompressor{}, summarizationCompressor{}}
}

// RegisterCompressor adds or replaces a strategy.
func (e *Engine) RegisterCompressor(c Compressor) {
	e.mu.Lock()
	e.compressors[c.Name()] = c
	e.mu.Unlock()
}

// Compress applies the named strategy. The adaptive strategy runs every
// builtin strategy and keeps the smallest result meeting the quality
// threshold, falling back to structural compression.
func (e *Engine) Compress(text, strategy string) (string, models.CompressionResult, error) {
	if strategy == StrategyAdaptive {
		return e.compressAdaptive(text)
	}

	e.mu.Lock()
	c, ok := e.compressors[strategy]
	e.mu.Unlock()
	if !ok {
		return "", models.CompressionResult{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	out, res := run(c, text)
	return out, res, nil
}

func (e *Engine) compressAdaptive(text string) (string, models.CompressionResult, error) {
	var (
		best    string
		bestRes models.CompressionResult
		found   bool
	)
	for _, c := range builtinCompressors() {
		out, res := run(c, text)
		if res.QualityScore < e.config.QualityThreshold {
			continue
		}
		if !found || res.CompressedSize < bestRes.CompressedSize {
			best, bestRes, found = out, res, true
		}
	}
	if !found {
		best, bestRes = run(structuralCompressor{}, text)
	}

	bestRes.Technique = StrategyAdaptive + ":" + bestRes.Technique
	return best, bestRes, nil
}

// run applies c and guarantees compressedSize <= originalSize: an empty or
// longer output is replaced by the original text.
func run(c Compressor, text string) (string, models.CompressionResult) {
	out, quality := c.Compress(text)
	if strings.TrimSpace(out) == "" || len(out) > len(text) {
		out, quality = text, 1
	}

	res := models.CompressionResult{
		OriginalSize:     len(text),
		CompressedSize:   len(out),
		CompressionRatio: 1,
		QualityScore:     min(max(quality, 0), 1),
		Technique:        c.Name(),
	}
	if len(text) > 0 {
		res.CompressionRatio = float64(len(out)) / float64(len(text))
	}
	return out, res
}

// semanticCompressor drops repeated lines, keeping the first occurrence.
type semanticCompressor struct{}

func (semanticCompressor) Name() string { return StrategySemantic }

func (semanticCompressor) Compress(text string) (string, float64) {
	seen := make(map[string]struct{})
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		key := strings.TrimSpace(line)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), 0.95
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines      = regexp.MustCompile(`\n\s*\n`)
)

// structuralCompressor collapses runs of whitespace and blank lines.
type structuralCompressor struct{}

func (structuralCompressor) Name() string { return StrategyStructural }

func (structuralCompressor) Compress(text string) (string, float64) {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	out = horizontalSpace.ReplaceAllString(out, " ")
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n")
	return strings.TrimSpace(out), 0.99
}

const (
	summaryPercent     = 30
	longSentenceLength = 100
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// summarizationCompressor keeps sentences flagged "important" or long ones,
// up to 30% of the sentence count, in their original order. At least one
// sentence is always kept, so inputs of three sentences or fewer keep one.
type summarizationCompressor struct{}

func (summarizationCompressor) Name() string { return StrategySummarization }

func (summarizationCompressor) Compress(text string) (string, float64) {
	var sentences []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return text, 1
	}

	limit := max(1, len(sentences)*summaryPercent/100)
	var kept []string
	for _, s := range sentences {
		if len(kept) == limit {
			break
		}
		if strings.Contains(strings.ToLower(s), "important") || len(s) > longSentenceLength {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		kept = sentences[:1]
	}

	out := strings.Join(kept, " ")
	ratio := 1.0
	if len(text) > 0 {
		ratio = min(float64(len(out))/float64(len(text)), 1)
	}
	return out, 0.6 + 0.4*ratio
}
