package types

import (
	"errors"
	"fmt"
	"strings"
)

const bech32Alphabet = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var (
	errBech32Checksum = errors.New("bech32: invalid checksum")
	errBech32Padding  = errors.New("bech32: non-zero padding")
)

var bech32Generator = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

// encodeBech32 renders hrp and 8-bit payload as a BIP-173 string.
func encodeBech32(hrp string, payload []byte) (string, error) {
	if hrp == "" {
		return "", fmt.Errorf("bech32: empty HRP")
	}
	words, err := regroup(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	sum := bech32Checksum(hrp, words)

	var sb strings.Builder
	sb.Grow(len(hrp) + 1 + len(words) + len(sum))
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, w := range append(words, sum...) {
		sb.WriteByte(bech32Alphabet[w])
	}
	return sb.String(), nil
}

// decodeBech32 splits s into its HRP and 8-bit payload, verifying the checksum.
func decodeBech32(s string) (string, []byte, error) {
	lower := strings.ToLower(s)
	if lower != s && strings.ToUpper(s) != s {
		return "", nil, fmt.Errorf("bech32: mixed case")
	}
	sep := strings.LastIndexByte(lower, '1')
	if sep < 1 || sep+7 > len(lower) {
		return "", nil, fmt.Errorf("bech32: malformed string")
	}
	hrp, body := lower[:sep], lower[sep+1:]

	words := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		v := strings.IndexByte(bech32Alphabet, body[i])
		if v < 0 {
			return "", nil, fmt.Errorf("bech32: invalid character %q", body[i])
		}
		words[i] = byte(v)
	}
	if bech32Polymod(append(expandHRP(hrp), words...)) != 1 {
		return "", nil, errBech32Checksum
	}
	payload, err := regroup(words[:len(words)-6], 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, payload, nil
}

func bech32Polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i, g := range bech32Generator {
			if (top>>uint(i))&1 == 1 {
				chk ^= g
			}
		}
	}
	return chk
}

func expandHRP(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func bech32Checksum(hrp string, words []byte) []byte {
	values := append(expandHRP(hrp), words...)
	values = append(values, make([]byte, 6)...)
	mod := bech32Polymod(values) ^ 1
	sum := make([]byte, 6)
	for i := range sum {
		sum[i] = byte(mod>>uint(5*(5-i))) & 31
	}
	return sum
}

// regroup converts between bit-group widths (8->5 when encoding, 5->8 when decoding).
func regroup(in []byte, from, to uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	mask := uint32(1)<<to - 1
	out := make([]byte, 0, len(in)*int(from)/int(to)+1)
	for _, b := range in {
		if uint32(b)>>from != 0 {
			return nil, fmt.Errorf("bech32: value %d exceeds %d bits", b, from)
		}
		acc = acc<<from | uint32(b)
		bits += from
		for bits >= to {
			bits -= to
			out = append(out, byte(acc>>bits&mask))
		}
	}
	switch {
	case pad && bits > 0:
		out = append(out, byte(acc<<(to-bits)&mask))
	case !pad && (bits >= from || acc<<(to-bits)&mask != 0):
		return nil, errBech32Padding
	}
	return out, nil
}
