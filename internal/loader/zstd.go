package loader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdSuffix marks compressed definitions, e.g. "2011-02-02.yaml.zst".
const zstdSuffix = ".zst"

var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			// Cannot fail with nil input and default options.
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return d
	},
}

// decompress returns body unchanged unless name carries the zstd suffix.
func decompress(name string, body []byte) ([]byte, error) {
	if !strings.HasSuffix(name, zstdSuffix) {
		return body, nil
	}
	decoder := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression of %s failed: %w", name, err)
	}
	return out, nil
}

// Compress zstd-encodes a definition for storage under a ".zst" name.
func Compress(body []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
}

// IsDefinitionName reports whether name looks like a catalog definition file.
func IsDefinitionName(name string) bool {
	base := strings.TrimSuffix(name, zstdSuffix)
	return strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml")
}
