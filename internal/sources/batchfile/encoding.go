// Package batchfile ingests flat delimited extracts whose text encoding
// is unknown. The resolver picks the most plausible encoding by scoring
// Hangul content; the parser turns decoded text into raw records.
package batchfile

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncodings is the candidate order used when none is configured.
// The first entry doubles as the last-resort fallback.
var DefaultEncodings = []string{"utf-8", "euc-kr", "utf-16le"}

var encodingsByName = map[string]encoding.Encoding{
	"utf-8":    unicode.UTF8,
	"euc-kr":   korean.EUCKR,
	"utf-16le": unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be": unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// Resolver decodes raw batch-file bytes by trying a fixed candidate
// list and keeping the decode with the most Hangul.
type Resolver struct {
	candidates []string
}

// NewResolver builds a resolver over the named candidate encodings, in
// the order given. The order is the tie-break, so it must be stable.
func NewResolver(names []string) (*Resolver, error) {
	if len(names) == 0 {
		names = DefaultEncodings
	}
	for _, name := range names {
		if _, ok := encodingsByName[name]; !ok {
			return nil, fmt.Errorf("unknown encoding candidate %q", name)
		}
	}
	return &Resolver{candidates: names}, nil
}

// Resolve decodes raw under each candidate and returns the decoding
// with the highest Hangul score plus the chosen encoding name. When
// every candidate fails it falls back to the first candidate and
// returns whatever that produces; a garbled import beats a blocked one.
func (r *Resolver) Resolve(raw []byte) (string, string) {
	if len(raw) == 0 {
		return "", r.candidates[0]
	}

	bestScore := -1
	bestText := ""
	bestName := ""

	for _, name := range r.candidates {
		decoded, err := encodingsByName[name].NewDecoder().String(string(raw))
		if err != nil {
			continue
		}
		if score := scoreText(decoded); score > bestScore {
			bestScore = score
			bestText = decoded
			bestName = name
		}
	}

	if bestName == "" {
		bestName = r.candidates[0]
		bestText, _ = encodingsByName[bestName].NewDecoder().String(string(raw))
		log.Warn().Str("encoding", bestName).
			Msg("all encoding candidates failed, falling back")
	}

	return strings.TrimPrefix(bestText, "\uFEFF"), bestName
}

// scoreText counts Hangul runes and penalizes replacement characters,
// which mark bytes the candidate could not map.
func scoreText(s string) int {
	score := 0
	for _, r := range s {
		switch {
		case r >= 0xAC00 && r <= 0xD7A3: // precomposed syllables
			score++
		case r >= 0x1100 && r <= 0x11FF: // jamo
			score++
		case r >= 0x3130 && r <= 0x318F: // compatibility jamo
			score++
		case r == '�':
			score -= 2
		}
	}
	return score
}
