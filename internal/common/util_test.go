package common

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	for _, n := range []int{0, 16, 32} {
		s, err := MakeRandHexString(n)
		require.NoError(t, err)
		assert.Len(t, s, n*2)
		_, err = hex.DecodeString(s)
		assert.NoError(t, err)
	}

	a, _ := MakeRandHexString(32)
	b, _ := MakeRandHexString(32)
	assert.NotEqual(t, a, b)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("s3cret!")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, 7), buf)

	// nil не должен паниковать
	WipeByteArray(nil)
}

func TestPrefix(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 3, "abc"},
		{"ab", 3, "ab"},
		{"", 3, ""},
		{"发送超时", 2, "发送"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Prefix(c.in, c.n), "Prefix(%q, %d)", c.in, c.n)
	}
}

func TestTruncate_CountsRunes(t *testing.T) {
	assert.Len(t, Truncate(strings.Repeat("x", 800), 500), 500)
	assert.Equal(t, 1000, len([]rune(Truncate(strings.Repeat("日", 1200), 1000))))
}
