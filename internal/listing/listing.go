// Package listing reads and writes digest listings: plain text, one record
// per line, an expected digest followed by a file or object identifier.
package listing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record pairs an identifier with its digest.
type Record struct {
	Digest string
	ID     string
}

// ParseError reports a malformed listing line. It is fatal for the whole
// listing because record boundaries cannot be trusted after it.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("listing line %d: expected \"<digest> <identifier>\", got %q", e.Line, e.Text)
}

// Parse reads records from r. Each line must contain exactly two
// whitespace-separated fields; blank lines are rejected.
func Parse(r io.Reader) ([]Record, error) {
	records := []Record{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, &ParseError{Line: line, Text: sc.Text()}
		}
		records = append(records, Record{Digest: fields[0], ID: fields[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Load parses the listing file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Write emits records as tab-separated "<digest>\t<identifier>" lines, each
// newline-terminated. This is the compute-mode output format and parses back
// with Parse.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", rec.Digest, rec.ID); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Format renders records as Write would, as a string.
func Format(records []Record) string {
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(rec.Digest)
		sb.WriteByte('\t')
		sb.WriteString(rec.ID)
		sb.WriteByte('\n')
	}
	return sb.String()
}
