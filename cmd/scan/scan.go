package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/filescan/internal/archive"
	"github.com/scan-io-git/filescan/internal/engine"
	"github.com/scan-io-git/filescan/internal/events"
	"github.com/scan-io-git/filescan/internal/matchexec"
	"github.com/scan-io-git/filescan/internal/precheck"
	"github.com/scan-io-git/filescan/internal/rxcheck"
	"github.com/scan-io-git/filescan/internal/sarif"
	"github.com/scan-io-git/filescan/internal/scanner"
	"github.com/scan-io-git/filescan/pkg/shared"
	"github.com/scan-io-git/filescan/pkg/shared/config"
	"github.com/scan-io-git/filescan/pkg/shared/logger"
)

// RunOptionsScan holds the arguments for the scan command.
type RunOptionsScan struct {
	ScanRoot    string
	InputFile   string
	Format      string
	OutputPath  string
	Signatures  string
	EnableRegex bool
}

var (
	AppConfig        *config.Config
	scanOptions      RunOptionsScan
	exampleScanUsage = `  # Scanning a list of files given as arguments
  filescan scan /path/to/a.bin /path/to/b.zip

  # Scanning paths listed in a file, one per line
  filescan scan --input-file /path/to/paths.txt

  # Enforcing a shared scan root: paths resolving outside it are rejected
  filescan scan --root /srv/uploads /srv/uploads/incoming/sample.zip

  # Writing a SARIF report instead of JSON
  filescan scan --format sarif --output report.sarif /path/to/sample.bin

  # Enabling regex signature patterns (off by default)
  filescan scan --enable-regex /path/to/sample.sh`
)

// scanGraceMargin extends the preemptive wall-clock bound past the
// scanner's cooperative budget, leaving room for in-flight items to finish
// and for the merge to mark stragglers incomplete.
const scanGraceMargin = 30 * time.Second

// ScanCmd represents the scan command.
var ScanCmd = &cobra.Command{
	Use:                   "scan [--root PATH] [--format json|sarif] [--output PATH] {--input-file PATH | PATH...}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScanUsage,
	Short:                 "Scans a batch of files against the signature database under hard resource bounds",
	RunE:                  runScanCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runScanCommand executes the scan command.
func runScanCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	log := logger.NewLogger(AppConfig, "core-scan")

	paths, err := validateScanArgs(&scanOptions, args)
	if err != nil {
		log.Error("invalid scan arguments", "error", err)
		return err
	}

	limits := AppConfig.Limits

	db := shared.BuiltinSignatures()
	if scanOptions.Signatures != "" {
		db, err = loadSignatureDatabase(scanOptions.Signatures)
		if err != nil {
			log.Error("failed to load signature database", "error", err)
			return err
		}
	}

	validator := rxcheck.NewValidator(rxcheck.Limits{
		MaxLength:       limits.MaxPatternLength,
		MaxGroups:       limits.MaxGroups,
		MaxQuantifiers:  limits.MaxQuantifiers,
		MaxAlternations: limits.MaxAlternations,
		MaxLookaheads:   limits.MaxLookaheads,
	})

	executor := matchexec.New(matchexec.Options{
		WorkerPath: AppConfig.Matcher.WorkerPath,
		Timeout:    limits.PatternTimeout,
		MaxInput:   limits.MaxPatternInput,
		Cooldown:   AppConfig.Matcher.WorkerCooldown,
	}, log)

	enableRegex := scanOptions.EnableRegex || AppConfig.Matcher.EnableRegex

	sink := events.NewSink(AppConfig, log.Named("events"))
	defer sink.Close()

	eng, err := engine.New(db, engine.Limits{
		MaxPatternCount:   limits.MaxPatternCount,
		FullScanThreshold: limits.FullScanThreshold,
		SampleSize:        limits.SampleSize,
	}, validator, executor, enableRegex, log.Named("engine"))
	if err != nil {
		log.Error("failed to compile signature database", "error", err)
		return err
	}
	for key, reason := range eng.RejectedPatterns() {
		sink.Emit(events.KindPatternRejected, "regex pattern rejected by static validation",
			map[string]interface{}{"pattern": key, "reason": reason.String()})
	}

	s := scanner.New(limits, eng, archive.New(limits, log.Named("archive")), sink, log)

	// The scanner enforces the scan budget itself, cooperatively, and
	// reports unscanned paths as incomplete. The outer race gets a grace
	// margin past that budget so the merge always runs; it only fires when
	// a scan is wedged in something uninterruptible.
	var results []shared.ScanResult
	err = precheck.WithTimeout(context.Background(), limits.ScanTimeout+scanGraceMargin, func(ctx context.Context) error {
		results = s.ScanBatch(ctx, paths, scanOptions.ScanRoot)
		return nil
	})
	if err != nil {
		log.Error("scan wedged past the configured budget", "error", err)
		return err
	}

	if err := writeResults(results, &scanOptions); err != nil {
		log.Error("failed to write results", "error", err)
		return err
	}

	log.Info("scan command completed", "paths", len(paths))
	return nil
}

// writeResults renders the batch in the requested format to the output
// path, or JSON to stdout when no output is given.
func writeResults(results []shared.ScanResult, options *RunOptionsScan) error {
	if options.Format == "sarif" {
		return sarif.WriteFile(options.OutputPath, results)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if options.OutputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(options.OutputPath, data, 0644)
}

// Initialize flags for the scan command.
func init() {
	ScanCmd.Flags().StringVarP(&scanOptions.ScanRoot, "root", "r", "", "Shared scan root. Paths resolving outside it are rejected; defaults per path to its parent directory.")
	ScanCmd.Flags().StringVarP(&scanOptions.InputFile, "input-file", "i", "", "Path to a file containing paths to scan, one per line.")
	ScanCmd.Flags().StringVarP(&scanOptions.Format, "format", "f", "json", "Output format for results: json or sarif.")
	ScanCmd.Flags().StringVarP(&scanOptions.OutputPath, "output", "o", "", "Path to the output file for results. JSON results default to stdout.")
	ScanCmd.Flags().StringVarP(&scanOptions.Signatures, "signatures", "s", "", "Path to a YAML signature database. Defaults to the built-in set.")
	ScanCmd.Flags().BoolVar(&scanOptions.EnableRegex, "enable-regex", false, "Enable regex signature patterns. Off by default; hex and string matching always runs.")
	ScanCmd.Flags().BoolP("help", "h", false, "Show help for the scan command.")
}
