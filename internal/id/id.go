package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUID returns a random UUID v4 string.
func UUID() string {
	return uuid.NewString()
}

// ulidAlphabet is Crockford's Base32 (no I, L, O, U).
const ulidAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const ulidLen = 26

var (
	ulidMu     sync.Mutex
	ulidLastMs int64
	ulidSeq    uint16
)

// ULID returns a new ULID. IDs created in the same millisecond by this
// process differ in their random part and still sort after earlier ones.
func ULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	ms := time.Now().UnixMilli()
	if ms <= ulidLastMs {
		ms = ulidLastMs
		ulidSeq++
		if ulidSeq == 0 {
			ms++
		}
	} else {
		ulidSeq = 0
	}
	ulidLastMs = ms
	return encode(ms, ulidSeq)
}

// encode packs a 48-bit timestamp and 80 bits of entropy into 26 base32
// characters. seq occupies the top 16 entropy bits so IDs from one
// millisecond sort in creation order.
func encode(ms int64, seq uint16) string {
	var entropy [10]byte
	_, _ = rand.Read(entropy[2:])
	entropy[0] = byte(seq >> 8)
	entropy[1] = byte(seq)

	out := make([]byte, ulidLen)
	for i := 9; i >= 0; i-- {
		out[i] = ulidAlphabet[ms&0x1F]
		ms >>= 5
	}

	// 80 bits into 16 characters, 5 bits at a time, most significant first.
	var acc uint64
	bits := 0
	pos := 10
	for _, b := range entropy {
		acc = acc<<8 | uint64(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = ulidAlphabet[(acc>>uint(bits))&0x1F]
			pos++
		}
	}
	return string(out)
}

// IsValidULID reports whether s has the length and alphabet of a ULID.
func IsValidULID(s string) bool {
	if len(s) != ulidLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(ulidAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// ULIDTime returns the creation time encoded in a ULID.
func ULIDTime(s string) (time.Time, error) {
	if !IsValidULID(s) {
		return time.Time{}, fmt.Errorf("invalid ULID: %s", s)
	}
	var ms int64
	for i := 0; i < 10; i++ {
		ms = ms<<5 | int64(strings.IndexByte(ulidAlphabet, s[i]))
	}
	return time.UnixMilli(ms), nil
}
