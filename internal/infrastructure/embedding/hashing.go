package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {}, "of": {}, "and": {},
	"or": {}, "is": {}, "are": {}, "to": {}, "with": {}, "for": {}, "by": {},
}

// HashingEmbedder 词袋特征哈希，离线确定性向量
// 用于本地开发和测试，语义能力有限
type HashingEmbedder struct {
	dimension int
}

var _ embedding.Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder 创建哈希 Embedder
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingEmbedder{dimension: dimension}
}

// EmbedStrings 批量生成 L2 归一化向量
func (e *HashingEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashingEmbedder) embed(text string) []float64 {
	vec := make([]float64, e.dimension)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Tokenize 小写分词并去除停用词
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
