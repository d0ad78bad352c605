package models

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEncoding packs a face encoding into a little-endian float64 BLOB. an
// empty encoding is stored as NULL.
func EncodeEncoding(enc []float64) []byte {
	if len(enc) == 0 {
		return nil
	}
	buf := make([]byte, len(enc)*8)
	for i, v := range enc {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeEncoding unpacks a BLOB written by EncodeEncoding
func DecodeEncoding(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("face encoding blob has %d bytes, not a multiple of 8", len(data))
	}
	enc := make([]float64, len(data)/8)
	for i := range enc {
		enc[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return enc, nil
}
