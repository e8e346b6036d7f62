package models

import "errors"

var (
	// ErrAuthorNotFound signals an author absent from the corpus or the timeline source.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrSelfComparison signals the same author given twice.
	ErrSelfComparison = errors.New("cannot compare an author to themselves")
	// ErrSingleClass signals that one side of a comparison has no texts.
	ErrSingleClass = errors.New("classifier needs texts from both authors")
	// ErrEmptyInput signals empty text handed to an embedder.
	ErrEmptyInput = errors.New("empty input")
	// ErrConfiguration signals a missing or unusable embedder model or provider.
	ErrConfiguration = errors.New("embedder configuration error")
	// ErrDimensionMismatch signals vectors of inconsistent dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbedderMismatch signals embeddings produced by different embedder configurations.
	ErrEmbedderMismatch = errors.New("embeddings produced by a different embedder")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrSelfComparison, "self_comparison"},
	{ErrAuthorNotFound, "author_not_found"},
	{ErrSingleClass, "single_class"},
	{ErrEmptyInput, "empty_input"},
	{ErrConfiguration, "configuration"},
	{ErrDimensionMismatch, "dimension_mismatch"},
	{ErrEmbedderMismatch, "embedder_mismatch"},
}

// ErrorKind maps err onto a stable kind string. Unknown errors are "internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
