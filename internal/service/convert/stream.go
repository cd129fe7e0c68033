package convert

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultHoldRunes bounds how much unconverted text a Stream keeps when no boundary shows up.
const DefaultHoldRunes = 32

// maxOverlap is kept unconverted on a forced cut. OpenCC phrase entries are shorter than this.
const maxOverlap = 8

// Stream converts a sequence of fragments without cutting through a multi-character phrase.
//
// Raw fragments are buffered and only the text up to the last whitespace, punctuation or
// symbol rune is converted; the tail waits for the next fragment. When the tail grows past
// the hold limit it is emitted anyway, minus a short overlap, at the rightmost point where
// no phrase crosses the cut. Concatenating every string returned by Push and Flush yields
// the converted turn.
type Stream struct {
	conv    Converter
	hold    int
	overlap int
	pending strings.Builder
}

// NewStream returns a Stream over conv. hold <= 0 selects DefaultHoldRunes.
func NewStream(conv Converter, hold int) *Stream {
	if conv == nil {
		conv = Identity{}
	}
	if hold <= 0 {
		hold = DefaultHoldRunes
	}
	overlap := hold / 4
	if overlap > maxOverlap {
		overlap = maxOverlap
	}
	return &Stream{conv: conv, hold: hold, overlap: overlap}
}

// Push adds a raw fragment and returns the converted text that became safe to emit,
// which may be empty.
func (s *Stream) Push(fragment string) (string, error) {
	if fragment == "" {
		return "", nil
	}
	s.pending.WriteString(fragment)

	buffered := s.pending.String()
	cut, err := s.cutPoint(buffered)
	if err != nil {
		return "", err
	}
	if cut == 0 {
		return "", nil
	}

	ready, rest := buffered[:cut], buffered[cut:]
	s.pending.Reset()
	s.pending.WriteString(rest)

	return s.conv.Convert(ready)
}

// Flush converts whatever is still buffered. Call it once when the fragment sequence ends.
func (s *Stream) Flush() (string, error) {
	rest := s.pending.String()
	s.pending.Reset()
	if rest == "" {
		return "", nil
	}
	return s.conv.Convert(rest)
}

// Pending reports the number of buffered bytes.
func (s *Stream) Pending() int {
	return s.pending.Len()
}

func (s *Stream) cutPoint(buffered string) (int, error) {
	complete := completePrefix(buffered)

	cut := 0
	for i, r := range buffered[:complete] {
		if isBoundary(r) {
			cut = i + utf8.RuneLen(r)
		}
	}

	tail := buffered[cut:complete]
	offsets := make([]int, 0, len(tail)+1)
	for i := range tail {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(tail))

	tailRunes := len(offsets) - 1
	if tailRunes <= s.hold {
		return cut, nil
	}

	// Forced cut: step left through the overlap window until converting both sides
	// separately matches converting them together.
	keep := tailRunes - s.overlap
	for n := keep; n > 0 && n >= keep-s.overlap; n-- {
		clean, err := s.splitsCleanly(tail[:offsets[n]], tail[offsets[n]:])
		if err != nil {
			return 0, err
		}
		if clean {
			return cut + offsets[n], nil
		}
	}
	return cut + offsets[keep], nil
}

// splitsCleanly reports whether head and rest convert the same apart as together.
func (s *Stream) splitsCleanly(head, rest string) (bool, error) {
	a, err := s.conv.Convert(head)
	if err != nil {
		return false, err
	}
	b, err := s.conv.Convert(rest)
	if err != nil {
		return false, err
	}
	whole, err := s.conv.Convert(head + rest)
	if err != nil {
		return false, err
	}
	return a+b == whole, nil
}

// completePrefix returns the length of s without a trailing partial UTF-8 sequence.
func completePrefix(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return i
			}
			break
		}
	}
	return len(s)
}

func isBoundary(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
