// Package decision records and reads the human gate decisions of a run.
// The log is a markdown file with one structured entry per checkpoint
// (gates A-F): options presented, approved option, rationale, deferred
// risks. The pipeline core never writes entries; humans do, between runs.
package decision

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultLogName is the decision log file name under the output root.
const DefaultLogName = "wgcna_decision_log.md"

// Entry is one gate decision.
type Entry struct {
	Timestamp        time.Time
	Stage            string
	OptionsPresented []string
	ApprovedOption   string
	Rationale        string
	DeferredRisks    []string
}

func bulletize(values []string, fallback string) string {
	var lines []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			lines = append(lines, "- "+v)
		}
	}
	if len(lines) == 0 {
		return "- " + fallback
	}
	return strings.Join(lines, "\n")
}

// Render formats the entry as a markdown block.
func (e Entry) Render() string {
	ts := e.Timestamp.Format("2006-01-02T15:04:05")
	lines := []string{
		fmt.Sprintf("## %s - %s", ts, e.Stage),
		"",
		"### Options presented",
		bulletize(e.OptionsPresented, "[not provided]"),
		"",
		"### Approved option",
		"- " + strings.TrimSpace(e.ApprovedOption),
		"",
		"### Rationale",
		strings.TrimSpace(e.Rationale),
		"",
		"### Deferred risks",
		bulletize(e.DeferredRisks, "None noted"),
		"",
	}
	return strings.Join(lines, "\n")
}

// Append writes one entry to the log at path, creating the file with its
// header when missing. This is the only append-mode file in the system; the
// log is an audit trail, not a stage artifact.
func Append(path string, e Entry) error {
	if e.Stage == "" || e.ApprovedOption == "" || e.Rationale == "" {
		return fmt.Errorf("decision entry needs stage, approved option and rationale")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("decision log: %w", err)
	}
	defer f.Close()
	if os.IsNotExist(statErr) {
		if _, err := f.WriteString("# WGCNA Decision Log\n\n"); err != nil {
			return fmt.Errorf("decision log: %w", err)
		}
	} else {
		if _, err := f.WriteString("\n"); err != nil {
			return fmt.Errorf("decision log: %w", err)
		}
	}
	if _, err := f.WriteString(e.Render()); err != nil {
		return fmt.Errorf("decision log: %w", err)
	}
	return nil
}

// Decision is a parsed (stage, approved option) pair from the log.
type Decision struct {
	Heading  string
	Stage    string
	Approved string
}

// Parse reads the approved decisions back out of a log file. A missing file
// is an empty history, not an error.
func Parse(path string) ([]Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("decision log: %w", err)
	}

	var decisions []Decision
	var cur *Decision
	captureApproved := false
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "## ") {
			if cur != nil {
				decisions = append(decisions, *cur)
			}
			heading := strings.TrimSpace(line[3:])
			stage := heading
			if _, after, ok := strings.Cut(heading, " - "); ok {
				stage = after
			}
			cur = &Decision{Heading: heading, Stage: stage, Approved: "[not recorded]"}
			captureApproved = false
			continue
		}
		if strings.TrimSpace(line) == "### Approved option" {
			captureApproved = true
			continue
		}
		if captureApproved && strings.HasPrefix(strings.TrimSpace(line), "- ") {
			if cur != nil {
				cur.Approved = strings.TrimSpace(strings.TrimSpace(line)[2:])
			}
			captureApproved = false
		}
	}
	if cur != nil {
		decisions = append(decisions, *cur)
	}
	return decisions, nil
}
