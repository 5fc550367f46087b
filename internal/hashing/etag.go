package hashing

import (
	"crypto/md5" // #nosec G501 -- used for file integrity verification only
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrInvalidChunkSize is returned when a chunk size is zero or negative.
var ErrInvalidChunkSize = errors.New("chunk size must be > 0")

// ChunkDigests reads r in chunkSize increments and returns the binary MD5
// digest of each chunk, in order. The final chunk may be shorter than
// chunkSize. Zero-length input yields an empty slice.
func ChunkDigests(r io.Reader, chunkSize int64) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	bufSize := int64(1 << 20) // 1 MiB
	if chunkSize < bufSize {
		bufSize = chunkSize
	}
	buf := make([]byte, bufSize)

	var sums [][]byte
	for {
		h := md5.New() // #nosec G401
		n, err := io.CopyBuffer(h, io.LimitReader(r, chunkSize), buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		sums = append(sums, h.Sum(nil))
		if n < chunkSize {
			break
		}
	}

	return sums, nil
}

// CompositeDigest builds the multipart-style digest string from the ordered
// per-chunk digests. A single part carries its plain hex digest with no
// suffix, matching what object stores report for single-part uploads. Zero
// parts (an empty input) collapses to the digest of the empty byte sequence.
func CompositeDigest(sums [][]byte) string {
	switch len(sums) {
	case 0:
		h := md5.Sum(nil) // #nosec G401
		return hex.EncodeToString(h[:])
	case 1:
		return hex.EncodeToString(sums[0])
	}

	h := md5.New() // #nosec G401
	for _, s := range sums {
		h.Write(s)
	}
	return hex.EncodeToString(h.Sum(nil)) + "-" + strconv.Itoa(len(sums))
}

// FileETag computes the multipart ETag-style digest of the file at path with
// the given chunk size. onProgress, if non-nil, receives byte counts as the
// file is read.
func FileETag(path string, chunkSize int64, onProgress func(n int64)) (string, error) {
	if chunkSize <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	sums, err := ChunkDigests(countReader(f, onProgress), chunkSize)
	if err != nil {
		return "", err
	}

	return CompositeDigest(sums), nil
}

// FileMD5 computes the plain whole-file MD5 hex digest of the file at path.
func FileMD5(path string, onProgress func(n int64)) (string, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, 1<<20) // 1 MiB
	h := md5.New()             // #nosec G401
	if _, err := io.CopyBuffer(h, countReader(f, onProgress), buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

type progressReader struct {
	r  io.Reader
	fn func(n int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.fn(int64(n))
	}
	return n, err
}

func countReader(r io.Reader, fn func(n int64)) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, fn: fn}
}
