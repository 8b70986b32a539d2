package index

import "errors"

var ErrEmptyEmbedding = errors.New("index record has no embedding")
