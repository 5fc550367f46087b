package cli

import (
	"os"

	"etagcheck/internal/verify"

	"github.com/goccy/go-json"
)

type reportEntry struct {
	Identifier string `json:"identifier"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual,omitempty"`
	Match      bool   `json:"match"`
	Error      string `json:"error,omitempty"`
}

type report struct {
	Mode       string        `json:"mode"`
	Matches    int           `json:"matches"`
	Mismatches int           `json:"mismatches"`
	Entries    []reportEntry `json:"entries"`
}

func writeReport(path, mode string, res *verify.Result) error {
	rep := report{
		Mode:       mode,
		Matches:    res.Matches,
		Mismatches: res.Mismatches,
		Entries:    make([]reportEntry, len(res.Outcomes)),
	}
	for i, o := range res.Outcomes {
		e := reportEntry{
			Identifier: o.ID,
			Expected:   o.Expected,
			Actual:     o.Actual,
			Match:      o.OK,
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		rep.Entries[i] = e
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
