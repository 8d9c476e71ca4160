package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIntoChunks(t *testing.T) {
	text := strings.Repeat("a", 10)

	chunks := SplitIntoChunks(text, 4, 0)
	assert.Equal(t, []string{"aaaa", "aaaa", "aa"}, chunks)
}

func TestSplitIntoChunksOverlap(t *testing.T) {
	chunks := SplitIntoChunks("abcdefgh", 4, 2)
	assert.Equal(t, []string{"abcd", "cdef", "efgh"}, chunks)
}

func TestSplitIntoChunksUnicode(t *testing.T) {
	chunks := SplitIntoChunks("你好世界再见", 2, 0)
	assert.Equal(t, []string{"你好", "世界", "再见"}, chunks)
}

func TestSplitIntoChunksEmpty(t *testing.T) {
	assert.Nil(t, SplitIntoChunks("", 4, 0))
	assert.Nil(t, SplitIntoChunks("abc", 0, 0))
}

func TestSplitIntoChunksDropsWhitespaceOnly(t *testing.T) {
	chunks := SplitIntoChunks("ab    cd", 2, 0)
	assert.Equal(t, []string{"ab", "cd"}, chunks)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab...", TruncateString("abcdef", 2))
	assert.Equal(t, "你好...", TruncateString("你好世界", 2))
}

func TestHashString(t *testing.T) {
	a := HashString("hello")
	b := HashString("hello")
	c := HashString("world")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
