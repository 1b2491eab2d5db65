package doctor

import (
	"fmt"
	"io"
	"strings"
)

// Report summarizes a doctor run.
type Report struct {
	Passed int
	Warned int
	Failed int
	// Fixed counts checks remediated by --fix. They are also in Passed.
	Fixed int
	// Results holds every check result in run order.
	Results []*CheckResult
}

// OK reports whether no check failed. Warnings do not count.
func (r *Report) OK() bool { return r.Failed == 0 }

func (r *Report) tally(res *CheckResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Fixed:
		r.Fixed++
		r.Passed++
	case res.Status == StatusOK:
		r.Passed++
	case res.Status == StatusWarning:
		r.Warned++
	default:
		r.Failed++
	}
}

// Doctor runs registered health checks in registration order.
type Doctor struct {
	checks []Check
}

// Register adds a check to the run.
func (d *Doctor) Register(c Check) {
	d.checks = append(d.checks, c)
}

// Run executes every check, printing each result to w as it completes.
// With fix set, a non-OK check that supports it is fixed and re-run; it
// counts as fixed only if the re-run passes.
func (d *Doctor) Run(ctx *CheckContext, w io.Writer, fix bool) *Report {
	r := &Report{}
	for _, c := range d.checks {
		res := c.Run(ctx)
		if fix && res.Status != StatusOK && c.CanFix() && c.Fix(ctx) == nil {
			if again := c.Run(ctx); again.Status == StatusOK {
				res = again
				res.Fixed = true
			}
		}
		printResult(w, res, ctx.Verbose)
		r.tally(res)
	}
	return r
}

var icons = map[CheckStatus]string{
	StatusOK:      "✓",
	StatusWarning: "⚠",
	StatusError:   "✗",
}

func printResult(w io.Writer, r *CheckResult, verbose bool) {
	suffix := ""
	if r.Fixed {
		suffix = " (fixed)"
	}
	fmt.Fprintf(w, "  %s %-22s %s%s\n", icons[r.Status], r.Name, r.Message, suffix) //nolint:errcheck // best-effort output
	if verbose {
		for _, d := range r.Details {
			fmt.Fprintf(w, "      %s\n", d) //nolint:errcheck // best-effort output
		}
	}
	if r.FixHint != "" && r.Status != StatusOK {
		fmt.Fprintf(w, "      hint: %s\n", r.FixHint) //nolint:errcheck // best-effort output
	}
}

// PrintSummary writes the final summary line to w.
func PrintSummary(w io.Writer, r *Report) {
	var parts []string
	for _, p := range []struct {
		n    int
		noun string
	}{
		{r.Passed, "passed"},
		{r.Warned, "warnings"},
		{r.Failed, "failed"},
		{r.Fixed, "fixed"},
	} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", p.n, p.noun))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintln(w, "\nNo checks ran.") //nolint:errcheck // best-effort output
		return
	}
	fmt.Fprintf(w, "\n%s\n", strings.Join(parts, ", ")) //nolint:errcheck // best-effort output
}
