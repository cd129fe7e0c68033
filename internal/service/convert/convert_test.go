package convert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoneIsIdentity(t *testing.T) {
	for _, scheme := range []string{"", "none", " NONE "} {
		conv, err := New(scheme)
		require.NoError(t, err)
		assert.IsType(t, Identity{}, conv)
	}
}

func TestOpenCCSimplifiedToTaiwan(t *testing.T) {
	conv, err := New("s2twp")
	require.NoError(t, err)

	out, err := conv.Convert("汉字")
	require.NoError(t, err)
	assert.Equal(t, "漢字", out)

	empty, err := conv.Convert("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	_, err := New("klingon")
	require.Error(t, err)
}

func TestOpenCCStreamMatchesWholeTextOnLongRun(t *testing.T) {
	conv, err := NewOpenCC("s2twp")
	require.NoError(t, err)

	text := strings.Repeat("我", 24) + "软件" + strings.Repeat("我", 20)
	want, err := conv.Convert(text)
	require.NoError(t, err)
	require.Contains(t, want, "軟體")

	s := NewStream(conv, DefaultHoldRunes)
	var got strings.Builder
	for _, r := range text {
		piece, err := s.Push(string(r))
		require.NoError(t, err)
		got.WriteString(piece)
	}
	rest, err := s.Flush()
	require.NoError(t, err)
	got.WriteString(rest)

	assert.Equal(t, want, got.String())
}
