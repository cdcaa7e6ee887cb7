package gen

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the cl100k_base encoding for telemetry.
// The packing budget stays on the len/4 estimate; exact counts are
// reported, never enforced. Falls back to the estimate if the encoding
// cannot load.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return estimateTokens(text)
	}
	return len(encoding.Encode(text, nil, nil))
}
