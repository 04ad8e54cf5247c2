package harvest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReportFileName is the name of the run report in the work directory
const ReportFileName = "harvest-report.yaml"

// Counts tallies item outcomes
type Counts struct {
	Items   int            `yaml:"items"`
	OK      int            `yaml:"ok"`
	NOK     int            `yaml:"nok"`
	Skipped int            `yaml:"skipped"`
	Reasons map[string]int `yaml:"reasons,omitempty"`
}

func (c *Counts) add(res Result) {
	c.Items++
	switch res.Outcome {
	case OutcomeOK:
		c.OK++
	case OutcomeNOK:
		c.NOK++
	default:
		c.Skipped++
	}
	if res.Reason != ReasonNone {
		if c.Reasons == nil {
			c.Reasons = map[string]int{}
		}
		c.Reasons[string(res.Reason)]++
	}
}

// Report summarizes one harvest run
type Report struct {
	RunID          string         `yaml:"run_id"`
	StartedAt      string         `yaml:"started_at"`
	FinishedAt     string         `yaml:"finished_at"`
	Mode           string         `yaml:"mode"`
	Collection     string         `yaml:"collection,omitempty"`
	SourceDir      string         `yaml:"source_dir"`
	ConfiguredYear int            `yaml:"configured_cutoff"`
	CutoffYear     int            `yaml:"effective_cutoff"`
	Counts         Counts         `yaml:"counts"`
	Buckets        map[string]int `yaml:"buckets,omitempty"`
	Archive        string         `yaml:"archive,omitempty"`
}

// NewReport starts a report for the orchestrator's run
func (o *Orchestrator) NewReport(startedAt time.Time) *Report {
	return &Report{
		RunID:          o.runID,
		StartedAt:      startedAt.Format(time.RFC3339),
		SourceDir:      o.sourceDir,
		ConfiguredYear: o.configured,
		CutoffYear:     o.cutoff,
		Counts:         o.Counts(),
	}
}

// WriteReport saves the report as YAML
func WriteReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
