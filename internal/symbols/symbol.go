// Package symbols holds declared symbols and the catalog that merges them
// across producers into the compressed master index.
package symbols

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Info is one declared symbol as reported by a producer.
type Info struct {
	ID              uint64
	Name            string
	Kind            string
	KindRank        uint16
	Description     string
	Glyph           uint16
	AssemblyNumber  uint16
	AssemblyName    string
	ProjectFilePath string

	// MatchLevel is set by search ranking and is never persisted.
	MatchLevel uint16
}

// Namespace returns the part of Description before its last '.'.
func (s *Info) Namespace() string {
	i := strings.LastIndexByte(s.Description, '.')
	if i < 0 {
		return ""
	}
	return s.Description[:i]
}

// Weight ranks search matches: lower is better.
func (s *Info) Weight() int {
	return int(s.MatchLevel)*10 + int(s.KindRank)
}

// URL returns the site-relative link to the symbol's declaration anchor.
func (s *Info) URL() string {
	return "/" + s.AssemblyName + "/a.html#" + FormatID(s.ID)
}

// Compare orders symbols for the master index: case-insensitive name, then
// kind rank, then case-sensitive name, then assembly number.
func Compare(a, b *Info) int {
	if c := FoldCompare(a.Name, b.Name); c != 0 {
		return c
	}
	if a.KindRank != b.KindRank {
		if a.KindRank < b.KindRank {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	switch {
	case a.AssemblyNumber < b.AssemblyNumber:
		return -1
	case a.AssemblyNumber > b.AssemblyNumber:
		return 1
	}
	return 0
}

// FoldCompare compares two strings rune by rune after upper-casing each
// rune. Invalid UTF-8 bytes compare by their byte value.
func FoldCompare(a, b string) int {
	for len(a) > 0 && len(b) > 0 {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra == utf8.RuneError && na == 1 {
			ra = rune(a[0])
		}
		if rb == utf8.RuneError && nb == 1 {
			rb = rune(b[0])
		}
		ua, ub := unicode.ToUpper(ra), unicode.ToUpper(rb)
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
		a, b = a[na:], b[nb:]
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
