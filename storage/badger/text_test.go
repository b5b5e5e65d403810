package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeAndFilter(t *testing.T) {
	t.Run("lowercases and trims punctuation", func(t *testing.T) {
		assert.Equal(t, []string{"cheerful", "singer"}, tokenizeAndFilter("Cheerful, Singer!"))
	})

	t.Run("drops stop words", func(t *testing.T) {
		assert.Equal(t, []string{"singer", "band"}, tokenizeAndFilter("the singer of a band"))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, tokenizeAndFilter("   "))
	})
}

func TestTextRank(t *testing.T) {
	t.Run("full match", func(t *testing.T) {
		assert.Equal(t, float32(1), textRank("a cheerful pop singer from Tokyo", "cheerful singer"))
	})

	t.Run("partial match", func(t *testing.T) {
		assert.Equal(t, float32(0.5), textRank("a cheerful dancer", "cheerful singer"))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Equal(t, float32(0), textRank("stoic drummer", "cheerful singer"))
	})

	t.Run("query of only stop words", func(t *testing.T) {
		assert.Equal(t, float32(0), textRank("anything at all", "the of and"))
	})
}
