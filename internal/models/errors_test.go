package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("fetch %q: %w", "bob", ErrAuthorNotFound), "author_not_found"},
		{ErrSelfComparison, "self_comparison"},
		{fmt.Errorf("fit: %w", ErrSingleClass), "single_class"},
		{ErrEmptyInput, "empty_input"},
		{ErrEmbedderMismatch, "embedder_mismatch"},
		{errors.New("connection refused"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}

func TestPredictionMessage(t *testing.T) {
	p := Prediction{FavoredAuthor: "alice", OtherAuthor: "bob", Text: "hello"}
	assert.Equal(t, `"hello" is more likely to be said by alice than bob`, p.Message())
}
