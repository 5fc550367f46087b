package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"etagcheck/internal/hashing"
	"etagcheck/internal/remote"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd := newRootCmd()
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

type stubLister struct {
	objects []remote.Object
	err     error
}

func (s *stubLister) ListDigests(_ context.Context, _, _, _ []string) ([]remote.Object, error) {
	return s.objects, s.err
}

func withLister(t *testing.T, l remote.Lister) {
	t.Helper()
	orig := newLister
	newLister = func(context.Context) (remote.Lister, error) { return l, nil }
	t.Cleanup(func() { newLister = orig })
}

func TestRejectedArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown mode", []string{"-m", "sha256", "-i", "a.bin"}, "Mode"},
		{"invalid chunk size", []string{"-s", "8MiB", "-i", "a.bin"}, "invalid chunk size"},
		{"zero chunk size", []string{"-s", "0", "-i", "a.bin"}, "invalid chunk size"},
		{"check and out conflict", []string{"-c", "sums.txt", "-o", "out.txt"}, "none of the others can be"},
		{"infiles and bucket conflict", []string{"-i", "a.bin", "-b", "bucket"}, "none of the others can be"},
		{"s3uri without bucket", []string{"-m", "s3uri", "-k", "prefix/"}, "--bucket"},
		{"s3uri without key", []string{"-m", "s3uri", "-b", "bucket"}, "--key"},
		{"nothing to do", []string{}, "nothing to do"},
		{"positional arguments rejected", []string{"a.bin"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestComputeToStdout(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "one.bin", bytes.Repeat([]byte("1"), 3000))
	p2 := writeFile(t, dir, "two.bin", bytes.Repeat([]byte("2"), 100))

	// chunk size 1KB forces a multipart digest for the first file
	stdout, _, err := executeCommand(t, "-i", p1, "-i", p2, "-s", "1KB")
	require.NoError(t, err)

	want1, err := hashing.FileETag(p1, 1<<10, nil)
	require.NoError(t, err)
	want2, err := hashing.FileETag(p2, 1<<10, nil)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("%s\t%s\n%s\t%s\n", want1, p1, want2, p2), stdout)
	assert.True(t, strings.Contains(want1, "-3"), "3000 bytes at 1 KiB chunks should carry -3")
}

func TestComputeMissingFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "present.bin", []byte("x"))

	stdout, _, err := executeCommand(t, "-i", p, "-i", filepath.Join(dir, "absent.bin"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
	assert.Empty(t, stdout, "no partial output on a fatal argument error")
}

func TestComputeThenCheckRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "one.bin", bytes.Repeat([]byte("round"), 5000))
	p2 := writeFile(t, dir, "two.bin", []byte("small"))
	sums := filepath.Join(dir, "sums.txt")

	_, _, err := executeCommand(t, "-i", p1, "-i", p2, "-s", "4KB", "-o", sums, "-w", "2")
	require.NoError(t, err)

	stdout, stderr, err := executeCommand(t, "-c", sums, "-s", "4KB", "-w", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(stdout, "\tOK\n"))
	assert.Contains(t, stderr, "matches: 2")

	// mutate one byte and the same check must fail
	fw, err := os.OpenFile(p1, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = fw.WriteAt([]byte("X"), 10)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	stdout, _, err = executeCommand(t, "-c", sums, "-s", "4KB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed: 1 of 2")
	assert.Contains(t, stdout, "MISMATCH")
	assert.Contains(t, stdout, "OK")
}

func TestCheckEmptyListing(t *testing.T) {
	dir := t.TempDir()
	sums := writeFile(t, dir, "empty.txt", nil)

	stdout, stderr, err := executeCommand(t, "-c", sums)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "matches: 0")
	assert.Contains(t, stderr, "mismatches: 0")
}

func TestCheckMalformedListingIsFatal(t *testing.T) {
	dir := t.TempDir()
	sums := writeFile(t, dir, "sums.txt", []byte("abc one.bin\nabc two.bin extra-token\n"))

	_, _, err := executeCommand(t, "-c", sums)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestCheckMissingFileIsSoft(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "present.bin", []byte("content"))
	digest, err := hashing.FileMD5(p, nil)
	require.NoError(t, err)

	sums := writeFile(t, dir, "sums.txt", []byte(fmt.Sprintf(
		"%s %s\n%s %s\n", digest, filepath.Join(dir, "gone.bin"), digest, p)))

	stdout, _, err := executeCommand(t, "-m", "md5", "-c", sums)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, stdout, "ERROR")
	assert.Contains(t, stdout, "\tOK\n", "remaining records are still checked")
}

func TestS3URICompute(t *testing.T) {
	withLister(t, &stubLister{objects: []remote.Object{
		{Key: "genomes/sample1.bam", ETag: "aabb-2"},
		{Key: "genomes/sample2.bam", ETag: "ccdd"},
	}})

	stdout, _, err := executeCommand(t, "-m", "s3uri", "-b", "bucket", "-k", "genomes/")
	require.NoError(t, err)
	assert.Equal(t, "aabb-2\tgenomes/sample1.bam\nccdd\tgenomes/sample2.bam\n", stdout)
}

func TestS3URICheck(t *testing.T) {
	withLister(t, &stubLister{objects: []remote.Object{
		{Key: "genomes/sample1.bam", ETag: "aabb-2"},
	}})

	dir := t.TempDir()
	sums := writeFile(t, dir, "sums.txt", []byte("aabb-2 sample1.bam\nffff sample2.bam\n"))

	stdout, _, err := executeCommand(t, "-m", "s3uri", "-b", "bucket", "-k", "genomes/", "-c", sums)
	require.Error(t, err)
	assert.Contains(t, stdout, "aabb-2\tsample1.bam\tOK")
	assert.Contains(t, stdout, "not found")
}

func TestS3URILookupFailureAborts(t *testing.T) {
	withLister(t, &stubLister{err: &remote.LookupError{Bucket: "bucket", Key: "genomes/", Err: errors.New("access denied")}})

	dir := t.TempDir()
	sums := writeFile(t, dir, "sums.txt", []byte("aabb-2 sample1.bam\n"))

	stdout, _, err := executeCommand(t, "-m", "s3uri", "-b", "bucket", "-k", "genomes/", "-c", sums)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote lookup")
	assert.Empty(t, stdout)
}

func TestCheckWritesJSONReport(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "data.bin", []byte("reported"))
	digest, err := hashing.FileMD5(p, nil)
	require.NoError(t, err)

	sums := writeFile(t, dir, "sums.txt", []byte(digest+" "+p+"\n"))
	reportPath := filepath.Join(dir, "report.json")

	_, _, err = executeCommand(t, "-m", "md5", "-c", sums, "-j", reportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var rep report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "md5", rep.Mode)
	assert.Equal(t, 1, rep.Matches)
	require.Len(t, rep.Entries, 1)
	assert.True(t, rep.Entries[0].Match)
	assert.Equal(t, p, rep.Entries[0].Identifier)
}

func TestDefaultsFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "data.bin", bytes.Repeat([]byte("z"), 10))
	cfgFile := writeFile(t, dir, "config.toml", []byte("chunk_size = \"4\"\n"))

	stdout, _, err := executeCommand(t, "-i", p, "--config", cfgFile)
	require.NoError(t, err)

	want, err := hashing.FileETag(p, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, want+"\t"+p+"\n", stdout)
	assert.Contains(t, stdout, "-3", "10 bytes at 4-byte chunks is a 3-part digest")
}
