package token

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidToken is returned when a public token is not valid hexadecimal.
// A well-formed token that maps to an unknown object is not a codec error;
// the lookup downstream decides what "unknown" means.
var ErrInvalidToken = errors.New("invalid token")

// Codec obfuscates internal object ids into public URL tokens and back.
// It applies a fixed XOR mask and renders the result as lowercase hex with
// no prefix. This hides raw sequential ids from link sharers; it is not an
// access-control mechanism.
type Codec struct {
	mask uint64
}

func NewCodec(mask uint64) *Codec {
	return &Codec{mask: mask}
}

// Encode maps an object id to its public token.
func (c *Codec) Encode(id int64) string {
	return strconv.FormatUint(uint64(id)^c.mask, 16)
}

// Decode maps a public token back to the object id it was derived from.
// Decode(Encode(x)) == x for every non-negative x.
func (c *Codec) Decode(tok string) (int64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, ErrInvalidToken
	}
	v, err := strconv.ParseUint(tok, 16, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return int64(v ^ c.mask), nil
}
