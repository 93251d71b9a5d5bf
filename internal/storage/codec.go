package storage

import (
	"encoding/binary"
	"math"

	"github.com/mnemo-run/mnemo/internal/embeddings"
)

// encodeEmbedding/decodeEmbedding serialize a Vector as a fixed-width little-endian
// float32 blob, grounded on daverage-tinyMem/internal/embeddings/cache.go's
// serializeEmbedding/deserializeEmbedding.
func encodeEmbedding(v embeddings.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) embeddings.Vector {
	n := len(buf) / 4
	v := make(embeddings.Vector, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}
