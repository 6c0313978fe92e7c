package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Matcher is the narrow contract served by the rematch worker process. The
// worker is stateless: one pattern, one size-bounded buffer, one answer.
type Matcher interface {
	Match(req MatchRequest) (MatchResponse, error)
}

// MatchRequest carries a single pattern execution to the worker. The input
// buffer is capped by the caller before it ever crosses the process boundary.
type MatchRequest struct {
	Pattern       string
	Input         []byte
	TimeoutMillis int64
}

// RegexMatch is one match location inside the input buffer.
type RegexMatch struct {
	Offset int
	Length int
}

// MatchResponse is the worker's answer. TimedOut and Err are distinct from
// an empty match list: "no match", "timeout" and "error" never collapse.
type MatchResponse struct {
	Matches  []RegexMatch
	TimedOut bool
	Err      string
}

type MatcherRPCClient struct{ client *rpc.Client }

func (g *MatcherRPCClient) Match(req MatchRequest) (MatchResponse, error) {
	var resp MatchResponse

	err := g.client.Call("Plugin.Match", req, &resp)
	if err != nil {
		return resp, err
	}

	return resp, nil
}

type MatcherRPCServer struct {
	Impl Matcher
}

func (s *MatcherRPCServer) Match(args MatchRequest, resp *MatchResponse) error {
	var err error
	*resp, err = s.Impl.Match(args)
	return err
}

type MatcherPlugin struct {
	Impl Matcher
}

func (p *MatcherPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &MatcherRPCServer{Impl: p.Impl}, nil
}

func (MatcherPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &MatcherRPCClient{client: c}, nil
}
