package scan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/filescan/pkg/shared"
	"github.com/scan-io-git/filescan/pkg/shared/config"
)

func TestScanBudgetExpiryStillReportsEveryPath(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "sample.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0644))
	outPath := filepath.Join(tmpDir, "results.json")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	// An already-expired scan budget: nothing may be dispatched, yet the
	// command must succeed and report the path as incomplete rather than
	// erroring out with no results at all.
	cfg.Limits.ScanTimeout = -time.Second
	Init(cfg)

	prev := scanOptions
	t.Cleanup(func() { scanOptions = prev })
	scanOptions = RunOptionsScan{Format: "json", OutputPath: outPath}

	require.NoError(t, runScanCommand(ScanCmd, []string{target}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var results []shared.ScanResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, target, results[0].RequestPath)
	assert.Equal(t, shared.VerdictUnknown, results[0].Verdict)
	require.NotEmpty(t, results[0].Warnings)
	assert.Equal(t, shared.WarnScanIncomplete, results[0].Warnings[0].Code)
}
