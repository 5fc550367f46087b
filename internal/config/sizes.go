package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultChunkSize is the literal used when no --chunk-size is given. It
// matches the common 8 MiB multipart default of cloud object stores.
const DefaultChunkSize = "8MB"

// Suffix multipliers are 1024-based so that "8MB" means 8 MiB, keeping
// computed ETags comparable with multipart uploads done at the same literal.
var sizeLiterals = map[string]int64{
	"":   1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

var sizePattern = regexp.MustCompile(`^(\d+)([KMGT]B)?$`)

// ParseChunkSize converts a human-readable size such as "8MB" or "1GB" to a
// byte count. Bare digits are bytes. Zero or unparseable input is rejected.
func ParseChunkSize(s string) (int64, error) {
	m := sizePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid chunk size %q", s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk size %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid chunk size %q: must be > 0", s)
	}

	return n * sizeLiterals[m[2]], nil
}
