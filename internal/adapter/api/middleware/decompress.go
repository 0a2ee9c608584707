package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Decompress replaces a gzip or zstd encoded request body with its decoded
// stream. Size limits applied downstream therefore bound the decoded bytes;
// zstd frames are additionally refused when they declare more than
// maxDecoded bytes. Any other Content-Encoding is answered with 415.
func Decompress(maxDecoded int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return decompressHandler(next, maxDecoded)
	}
}

func decompressHandler(next http.Handler, maxDecoded int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))

		switch encoding {
		case "", "identity":
			next.ServeHTTP(w, r)
			return
		case "gzip":
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, "Malformed gzip body", http.StatusBadRequest)
				return
			}
			defer zr.Close()
			r.Body = readCloser{Reader: zr, close: r.Body.Close}
		case "zstd":
			zr, err := zstd.NewReader(r.Body,
				zstd.WithDecoderConcurrency(1),
				zstd.WithDecoderMaxMemory(uint64(maxDecoded)),
			)
			if err != nil {
				http.Error(w, "Malformed zstd body", http.StatusBadRequest)
				return
			}
			defer zr.Close()
			r.Body = readCloser{Reader: zr, close: r.Body.Close}
		default:
			http.Error(w, "Unsupported Content-Encoding", http.StatusUnsupportedMediaType)
			return
		}

		r.Header.Del("Content-Encoding")
		r.Header.Del("Content-Length")
		r.ContentLength = -1
		next.ServeHTTP(w, r)
	})
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }
