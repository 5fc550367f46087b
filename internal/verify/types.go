package verify

// Hasher computes the digest of a local file. The caller binds the mode and
// chunk size (and any progress hooks) before handing it to the engine.
type Hasher func(path string) (string, error)

type Options struct {
	Workers int
}

// Outcome is the per-record verification result. A soft failure (missing
// file, unreadable file, object absent from the remote listing) sets Err and
// leaves OK false; it never aborts the batch.
type Outcome struct {
	ID       string
	Expected string
	Actual   string
	OK       bool
	Err      error
}

// Result holds the outcomes in listing order plus the overall tally. Every
// record that did not match, including soft failures, counts as a mismatch.
type Result struct {
	Outcomes   []Outcome
	Matches    int
	Mismatches int
}
