// Package tokenizer counts tokens under a fixed BPE vocabulary.
//
// DESIGN: A single package-level encoding (o200k_base, the vocabulary used by
// the GPT-4o family) loaded once via sync.Once. Counting is deterministic and
// side-effect-free: the same string always yields the same count, and
// concurrent callers never block on anything but the one-time load.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "o200k_base"

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
	errl error
)

func encoding() (*tiktoken.Tiktoken, error) {
	once.Do(func() {
		enc, errl = tiktoken.GetEncoding(encodingName)
	})
	return enc, errl
}

// Counter counts tokens of a string under a fixed BPE vocabulary.
// The zero value is ready to use.
type Counter struct{}

// New returns a ready-to-use Counter.
func New() *Counter {
	return &Counter{}
}

// Count returns the non-negative number of tokens text would encode to.
// If the vocabulary fails to load (should not happen in practice; the
// vocabulary is embedded by the tiktoken-go library), Count falls back to a
// conservative byte-length/4 estimate rather than panicking, since token
// counting feeds threshold comparisons that must never block the pipeline.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	e, err := encoding()
	if err != nil {
		return fallbackCount(text)
	}
	return len(e.Encode(text, nil, nil))
}

func fallbackCount(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
