package scan

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scan-io-git/filescan/pkg/shared"
	"github.com/scan-io-git/filescan/pkg/shared/config"
	"github.com/scan-io-git/filescan/pkg/shared/files"
	yaml "gopkg.in/yaml.v2"
)

// validateScanArgs validates the arguments provided to the scan command and
// returns the batch of paths to scan.
func validateScanArgs(options *RunOptionsScan, args []string) ([]string, error) {
	if len(args) > 0 && options.InputFile != "" {
		return nil, fmt.Errorf("you cannot use an 'input-file' flag and target paths at the same time")
	}
	if len(args) == 0 && options.InputFile == "" {
		return nil, fmt.Errorf("either 'input-file' flag or at least one target path must be specified")
	}

	switch options.Format {
	case "json", "sarif":
	default:
		return nil, fmt.Errorf("unsupported format %q, expected 'json' or 'sarif'", options.Format)
	}
	if options.Format == "sarif" && options.OutputPath == "" {
		return nil, fmt.Errorf("the 'output' flag must be specified for SARIF reports")
	}

	if options.ScanRoot != "" {
		info, err := os.Stat(options.ScanRoot)
		if err != nil {
			return nil, fmt.Errorf("the scan root is not accessible: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("the scan root %q is not a directory", options.ScanRoot)
		}
	}

	paths := args
	if options.InputFile != "" {
		expanded, err := files.ExpandPath(options.InputFile)
		if err != nil {
			return nil, fmt.Errorf("cannot expand input file path: %w", err)
		}
		if err := files.ValidatePath(expanded); err != nil {
			return nil, fmt.Errorf("the input file is not readable: %w", err)
		}
		paths, err = readPathsFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("error parsing the input file %s: %w", options.InputFile, err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("the input file %s contains no paths", options.InputFile)
		}
	}

	// Inputs are absolutized here; canonicalization and boundary checks
	// belong to the resolver.
	absolute := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("cannot absolutize path %q: %w", p, err)
		}
		absolute[i] = abs
	}

	return absolute, nil
}

// readPathsFile reads one path per line, skipping blanks and # comments.
func readPathsFile(inputFile string) ([]string, error) {
	file, err := os.Open(inputFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, scanner.Err()
}

// loadSignatureDatabase reads an external YAML signature database. The file
// is expected to be already key-verified by the distribution channel.
func loadSignatureDatabase(path string) (*shared.SignatureDatabase, error) {
	if err := config.ValidateConfigPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var db shared.SignatureDatabase
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse signature database: %w", err)
	}
	if len(db.Signatures) == 0 {
		return nil, fmt.Errorf("signature database %s contains no signatures", path)
	}
	return &db, nil
}
