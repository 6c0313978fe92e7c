package main

import (
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/scan-io-git/filescan/internal/matchexec"
	"github.com/scan-io-git/filescan/pkg/shared"
)

// maxWorkerInput caps the buffer accepted over the RPC boundary regardless
// of what the host sends.
const maxWorkerInput = 16 * 1024 * 1024

// MatcherReMatch executes a single regex pattern over a bounded buffer.
// The process is stateless and holds no filesystem or network entitlements;
// the host kills it outright when it overruns its budget.
type MatcherReMatch struct {
	logger hclog.Logger
}

func (m *MatcherReMatch) Match(req shared.MatchRequest) (shared.MatchResponse, error) {
	input := req.Input
	if len(input) > maxWorkerInput {
		input = input[:maxWorkerInput]
	}

	timeout := time.Duration(req.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Second
	}

	m.logger.Debug("executing pattern", "pattern_len", len(req.Pattern), "input_len", len(input))
	return matchexec.EvalPattern(req.Pattern, input, timeout), nil
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Level:      hclog.Info,
		Output:     os.Stderr,
		JSONFormat: true,
	})

	matcher := &MatcherReMatch{logger: logger}

	var pluginMap = map[string]plugin.Plugin{
		shared.PluginTypeMatcher: &shared.MatcherPlugin{Impl: matcher},
	}

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.HandshakeConfig,
		Plugins:         pluginMap,
	})
}
