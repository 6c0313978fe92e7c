// Package sarif exports batch scan results as a SARIF report.
package sarif

import (
	"fmt"
	"os"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/filescan/pkg/shared"
)

const (
	toolName = "filescan"
	toolURI  = "https://github.com/scan-io-git/filescan"
)

// FromBatch converts an ordered batch of scan results into a single SARIF
// run. One SARIF result is produced per threat hit and per warning; clean
// paths contribute nothing beyond the artifact list.
func FromBatch(results []shared.ScanResult) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)

	for _, res := range results {
		for _, hit := range res.Threats {
			rule := run.AddRule(hit.SignatureID).
				WithDescription(fmt.Sprintf("signature match (%s)", hit.Category)).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: toSarifLevel(hit.Severity),
				})

			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(res.RequestPath)),
			)

			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(fmt.Sprintf(
					"signature %s matched at byte %d (%s region, confidence %.2f)",
					hit.SignatureID, hit.Offset, hit.Region, hit.Confidence))).
				WithLevel(toSarifLevel(hit.Severity)).
				WithLocations([]*sarif.Location{location})
			run.AddResult(result)
		}

		for _, warning := range res.Warnings {
			rule := run.AddRule(string(warning.Code)).
				WithDescription(warning.Message).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: toSarifLevel(warning.Severity),
				})

			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(res.RequestPath)),
			)

			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(warning.Message)).
				WithLevel(toSarifLevel(warning.Severity)).
				WithLocations([]*sarif.Location{location})
			run.AddResult(result)
		}
	}

	report.AddRun(run)
	return report, nil
}

// WriteFile renders the batch as pretty-printed SARIF at outputPath.
func WriteFile(outputPath string, results []shared.ScanResult) error {
	report, err := FromBatch(results)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error writing SARIF report: %w", err)
	}
	defer func() { _ = file.Close() }()

	return report.PrettyWrite(file)
}

func toSarifLevel(severity shared.Severity) string {
	switch severity {
	case shared.SeverityCritical:
		return "error"
	case shared.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
