package shared

import (
	"errors"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/spf13/pflag"
)

// ErrBadDispense indicates the worker served a plugin that does not
// implement the Matcher interface.
var ErrBadDispense = errors.New("dispensed plugin does not implement Matcher")

const (
	PluginTypeMatcher string = "matcher"
)

// HandshakeConfig is shared between the host and every worker binary. The
// magic cookie prevents a worker binary from being executed directly; it is
// a UX feature, not a security boundary.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FILESCAN",
	MagicCookieValue: "c7d9f1f4a0be33261841e6a8a5f20bb1f0cf55d2",
}

var PluginMap = map[string]plugin.Plugin{
	PluginTypeMatcher: &MatcherPlugin{},
}

// NewMatcherClient spawns the worker binary at workerPath and dispenses its
// Matcher interface. The returned plugin client must be killed by the caller;
// killing it terminates the worker process unconditionally.
func NewMatcherClient(workerPath string, logger hclog.Logger) (Matcher, *plugin.Client, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap,
		Cmd:             exec.Command(workerPath),
		Logger:          logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, err
	}

	raw, err := rpcClient.Dispense(PluginTypeMatcher)
	if err != nil {
		client.Kill()
		return nil, nil, err
	}

	matcher, ok := raw.(Matcher)
	if !ok {
		client.Kill()
		return nil, nil, ErrBadDispense
	}

	return matcher, client, nil
}

// HasFlags reports whether any flag in the set was explicitly changed.
func HasFlags(flags *pflag.FlagSet) bool {
	used := false
	flags.Visit(func(*pflag.Flag) { used = true })
	return used
}

// ForEveryStringWithBoundedGoroutines runs f over values with at most limit
// goroutines in flight at once.
func ForEveryStringWithBoundedGoroutines(limit int, values []interface{}, f func(i int, value interface{})) {
	guard := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, value := range values {
		guard <- struct{}{} // would block if guard channel is already filled
		wg.Add(1)
		go func(i int, value interface{}) {
			defer wg.Done()
			f(i, value)
			<-guard
		}(i, value)
	}
	wg.Wait()
}
