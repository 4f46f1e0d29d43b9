package submitter

import (
	"io"
	"strconv"
	"time"

	"github.com/rodaine/table"
)

// Totals counts successful and failed requests.
type Totals struct {
	OK     int
	Failed int
}

// Summarize counts results.
func Summarize(results []Result) Totals {
	var t Totals

	for _, r := range results {
		if r.OK() {
			t.OK++
		} else {
			t.Failed++
		}
	}

	return t
}

// PrintSummary writes one row per request.
func PrintSummary(w io.Writer, results []Result) {
	tbl := table.New("API", "Group", "Rep", "Status", "Duration", "Response").WithWriter(w)

	for _, r := range results {
		status := "-"
		if r.Status != 0 {
			status = strconv.Itoa(r.Status)
		}

		file := r.File
		if r.Err != nil && file == "" {
			file = r.Err.Error()
		}

		tbl.AddRow(r.API, r.Level, r.Repetition, status, r.Duration.Round(time.Millisecond), file)
	}

	tbl.Print()
}
