package cert

import (
	"encoding/binary"
	"fmt"
)

const z85Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.-:+=^!/*?&<>()[]{}@%$#"

var z85Decoder [256]byte

func init() {
	for i := range z85Decoder {
		z85Decoder[i] = 0xFF
	}
	for i := 0; i < len(z85Alphabet); i++ {
		z85Decoder[z85Alphabet[i]] = byte(i)
	}
}

// z85Encode encodes data whose length is a multiple of 4
func z85Encode(data []byte) (string, error) {
	if len(data)%4 != 0 {
		return "", fmt.Errorf("z85: input length %d is not a multiple of 4", len(data))
	}
	out := make([]byte, 0, len(data)*5/4)
	var chunk [5]byte
	for i := 0; i < len(data); i += 4 {
		value := binary.BigEndian.Uint32(data[i : i+4])
		for j := 4; j >= 0; j-- {
			chunk[j] = z85Alphabet[value%85]
			value /= 85
		}
		out = append(out, chunk[:]...)
	}
	return string(out), nil
}

// z85Decode decodes text whose length is a multiple of 5
func z85Decode(text string) ([]byte, error) {
	if len(text)%5 != 0 {
		return nil, fmt.Errorf("z85: input length %d is not a multiple of 5", len(text))
	}
	out := make([]byte, 0, len(text)*4/5)
	for i := 0; i < len(text); i += 5 {
		var value uint64
		for j := 0; j < 5; j++ {
			d := z85Decoder[text[i+j]]
			if d == 0xFF {
				return nil, fmt.Errorf("z85: invalid character %q at %d", text[i+j], i+j)
			}
			value = value*85 + uint64(d)
		}
		if value > 0xFFFFFFFF {
			return nil, fmt.Errorf("z85: chunk at %d overflows", i)
		}
		var word [4]byte
		binary.BigEndian.PutUint32(word[:], uint32(value))
		out = append(out, word[:]...)
	}
	return out, nil
}
