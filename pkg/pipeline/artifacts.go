package pipeline

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/netcfg-io/netcfg/pkg/deploy"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/util"
)

// DateTimeFormat is used in report headers
const DateTimeFormat = "2006-01-02 15:04:05 MST"

// WriteJSON writes the full result as indented JSON
func (r *Result) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

// WriteMarkdown writes a summary table followed by a failures section
func (r *Result) WriteMarkdown(path string) error {
	var b strings.Builder
	r.Markdown(&b)
	return writeFile(path, []byte(b.String()))
}

// Markdown renders the summary to w
func (r *Result) Markdown(w io.Writer) {
	fmt.Fprintf(w, "# netcfg Run %s (%s)\n\n", r.RunID, r.StartedAt.Local().Format(DateTimeFormat))
	fmt.Fprintf(w, "Mode: %s. Overall: **%s**.\n\n", r.Mode, r.Overall)

	fmt.Fprintln(w, "| Device | Address | Outcome | Stage | Sent | Rejected | Saved | Duration |")
	fmt.Fprintln(w, "|--------|---------|---------|-------|------|----------|-------|----------|")
	for _, key := range r.Keys {
		rep := r.Reports[key]
		if rep == nil {
			continue
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s | %d | %d | %t | %s |\n",
			key, rep.ManagementAddress, rep.Outcome, rep.FinalStage,
			rep.SentCount(), rep.Rejected(), rep.SavedConfig,
			(time.Duration(rep.DurationMs) * time.Millisecond).Round(time.Millisecond))
	}

	hasFailures := false
	for _, key := range r.Keys {
		rep := r.Reports[key]
		errs := intent.Errors(r.Diagnostics[key])
		if rep != nil && rep.Outcome.CleanFor(r.Mode) && len(errs) == 0 {
			continue
		}
		if !hasFailures {
			fmt.Fprintf(w, "\n## Failures\n\n")
			hasFailures = true
		}
		fmt.Fprintf(w, "### %s\n", key)
		for _, d := range errs {
			fmt.Fprintf(w, "- %s\n", d)
		}
		if rep == nil {
			fmt.Fprintln(w)
			continue
		}
		if rep.Error != "" {
			fmt.Fprintf(w, "- %s", rep.Outcome)
			if rep.FailedStage != "" {
				fmt.Fprintf(w, " at %s", rep.FailedStage)
			}
			fmt.Fprintf(w, ": %s\n", rep.Error)
		}
		for _, c := range rep.Commands {
			if c.Sent && !c.Accepted {
				fmt.Fprintf(w, "  - rejected `%s`: %s\n", c.Command, util.FirstLine(c.DeviceResponse))
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteJUnit writes a JUnit XML report with one testcase per device
func (r *Result) WriteJUnit(path string) error {
	suite := junitTestSuite{
		Name: "netcfg " + string(r.Mode),
		Time: float64(r.DurationMs) / 1000,
	}
	for _, key := range r.Keys {
		rep := r.Reports[key]
		suite.Tests++
		tc := junitTestCase{Name: key, ClassName: "netcfg." + string(r.Mode)}
		if rep != nil {
			tc.Time = float64(rep.DurationMs) / 1000
		}

		switch {
		case rep == nil:
			suite.Errors++
			tc.Error = &junitError{Message: "no report", Type: "Missing"}
		case rep.Outcome == deploy.SkippedValidationFailed:
			suite.Failures++
			tc.Failure = &junitFailure{
				Message: rep.Error,
				Type:    string(rep.Outcome),
				Body:    diagnosticText(r.Diagnostics[key]),
			}
		case rep.Outcome.CleanFor(r.Mode):
			if rep.Unchanged {
				suite.Skipped++
				tc.Skipped = &junitSkipped{Message: "plan already applied"}
			}
		default:
			suite.Failures++
			tc.Failure = &junitFailure{Message: rep.Error, Type: string(rep.Outcome)}
		}
		suite.Cases = append(suite.Cases, tc)
	}

	suites := junitTestSuites{Suites: []junitTestSuite{suite}}
	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append([]byte(xml.Header), data...))
}

func diagnosticText(diags []intent.Diagnostic) string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// JUnit XML types

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}
