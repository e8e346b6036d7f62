package models

import (
	"fmt"
	"time"
)

type Author struct {
	ID           string
	Name         string
	NewestTextID int64
	Texts        []Text
}

type Text struct {
	ID        int64
	AuthorID  string
	Content   string
	Embedding Embedding
	CreatedAt time.Time
}

// Embedding is a vector together with the embedder configuration that produced it.
type Embedding struct {
	Vector []float32
	Model  string
}

// Profile identifies an author on the timeline source.
type Profile struct {
	ID   string
	Name string
}

type Post struct {
	ID      int64
	Text    string
	Retweet bool
	Reply   bool
}

// Prediction is the outcome of comparing two authors on one text.
// NameA and NameB are always in canonical (sorted) order.
type Prediction struct {
	FavoredAuthor string  `json:"favored_author"`
	OtherAuthor   string  `json:"other_author"`
	NameA         string  `json:"name_a"`
	NameB         string  `json:"name_b"`
	Text          string  `json:"text"`
	Probability   float64 `json:"probability"`
}

func (p Prediction) Message() string {
	return fmt.Sprintf("%q is more likely to be said by %s than %s", p.Text, p.FavoredAuthor, p.OtherAuthor)
}
