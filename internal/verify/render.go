package verify

import (
	"fmt"
	"strings"
)

// renderSummary produces verify_summary.txt: deterministic, fixed field
// widths, sections in a fixed order, problem paths sorted by their
// manifest position (which is already lexicographic).
func renderSummary(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "wcbt verify summary\n")
	fmt.Fprintf(&b, "run_id    %s\n", res.Report.RunID)
	fmt.Fprintf(&b, "algorithm %s\n", res.Report.Algorithm)
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "counts\n")
	fmt.Fprintf(&b, "  %-14s %8d\n", "ok", res.Report.Counts.OK)
	fmt.Fprintf(&b, "  %-14s %8d\n", "missing", res.Report.Counts.Missing)
	fmt.Fprintf(&b, "  %-14s %8d\n", "unreadable", res.Report.Counts.Unreadable)
	fmt.Fprintf(&b, "  %-14s %8d\n", "hash_mismatch", res.Report.Counts.HashMismatch)
	fmt.Fprintf(&b, "  %-14s %8d\n", "total", res.Report.Total)

	problems := make([]Record, 0)
	for _, rec := range res.Records {
		if rec.Status != StatusOK {
			problems = append(problems, rec)
		}
	}
	if len(problems) > 0 {
		fmt.Fprintf(&b, "\nproblems\n")
		for _, rec := range problems {
			fmt.Fprintf(&b, "  %-14s %s\n", rec.Status, rec.Path)
		}
	}

	if res.AllOK() {
		fmt.Fprintf(&b, "\nresult OK\n")
	} else {
		fmt.Fprintf(&b, "\nresult FAILED\n")
	}
	return b.String()
}
