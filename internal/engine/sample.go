package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/scan-io-git/filescan/pkg/shared"
)

// region is one sampled window of file content. Base is its absolute byte
// offset in the file so fixed-offset patterns and reported match offsets
// stay file-relative.
type region struct {
	kind shared.MatchRegion
	base int64
	data []byte
}

// buildRegions samples the file: full content below the threshold, head and
// tail windows above it. The covered region is recorded on every match so
// partial coverage is never conflated with a full scan.
func buildRegions(path string, fullScanThreshold, sampleSize int64) ([]region, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file for scan: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file for scan: %w", err)
	}
	size := stat.Size()

	if size <= fullScanThreshold {
		data := make([]byte, size)
		if _, err := io.ReadFull(file, data); err != nil {
			return nil, fmt.Errorf("reading file for scan: %w", err)
		}
		return []region{{kind: shared.RegionFull, base: 0, data: data}}, nil
	}

	head := make([]byte, sampleSize)
	if _, err := file.ReadAt(head, 0); err != nil {
		return nil, fmt.Errorf("reading head sample: %w", err)
	}

	tailBase := size - sampleSize
	tail := make([]byte, sampleSize)
	if _, err := file.ReadAt(tail, tailBase); err != nil {
		return nil, fmt.Errorf("reading tail sample: %w", err)
	}

	return []region{
		{kind: shared.RegionHead, base: 0, data: head},
		{kind: shared.RegionTail, base: tailBase, data: tail},
	}, nil
}
