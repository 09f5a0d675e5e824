package cache

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync"
)

// compressMinSize is the smallest payload worth compressing.
const compressMinSize = 1024

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(nil)
		},
	}

	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

// compress gzips data when that makes it smaller. Small payloads are returned as-is.
func compress(data []byte) []byte {
	if len(data) < compressMinSize {
		return data
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	gz := gzipWriterPool.Get().(*gzip.Writer)
	gz.Reset(buf)
	defer gzipWriterPool.Put(gz)

	if _, err := gz.Write(data); err != nil {
		return data
	}
	if err := gz.Close(); err != nil {
		return data
	}

	if buf.Len() >= len(data) {
		return data
	}
	compressed := make([]byte, buf.Len())
	copy(compressed, buf.Bytes())
	return compressed
}

// decompress reverses compress. Data without the gzip magic number is returned unchanged.
func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if _, err := io.Copy(buf, reader); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
