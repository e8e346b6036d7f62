package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/xhad/twitoff/internal/models"
)

type ProcessorConfig struct {
	MaxContentLength int // display/storage truncation, in runes
}

type Processor struct {
	config ProcessorConfig
}

// PreparedPost carries the full text used for embedding and the truncated
// content that is stored and displayed.
type PreparedPost struct {
	ID       int64
	FullText string
	Content  string
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.MaxContentLength == 0 {
		config.MaxContentLength = 300
	}

	return Processor{
		config: config,
	}
}

// Prepare cleans posts, dropping empty ones and repeated IDs. Order is preserved.
func (p *Processor) Prepare(posts []models.Post) []PreparedPost {
	prepared := make([]PreparedPost, 0, len(posts))
	seen := make(map[int64]bool, len(posts))

	for _, post := range posts {
		if seen[post.ID] {
			continue
		}
		full := cleanText(post.Text)
		if full == "" {
			continue
		}
		seen[post.ID] = true
		prepared = append(prepared, PreparedPost{
			ID:       post.ID,
			FullText: full,
			Content:  p.Truncate(full),
		})
	}

	return prepared
}

// Truncate cuts text to at most MaxContentLength runes.
func (p *Processor) Truncate(text string) string {
	if utf8.RuneCountInString(text) <= p.config.MaxContentLength {
		return text
	}
	n := 0
	for i := range text {
		if n == p.config.MaxContentLength {
			return text[:i]
		}
		n++
	}
	return text
}

func cleanText(text string) string {
	text = sanitizeUTF8(text)

	// Replace runs of whitespace with a single space
	return strings.Join(strings.Fields(text), " ")
}

// sanitizeUTF8 drops invalid byte sequences.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
