package matchexec

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/scan-io-git/filescan/pkg/shared"
)

// EvalPattern compiles and runs one pattern over input with the engine's
// own match timeout armed. It is used verbatim by the rematch worker and by
// the in-process fallback; the process-level kill in the executor is the
// outer enforcement layer, this timeout the inner one.
func EvalPattern(pattern string, input []byte, timeout time.Duration) shared.MatchResponse {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return shared.MatchResponse{Err: "compile: " + err.Error()}
	}
	re.MatchTimeout = timeout

	var matches []shared.RegexMatch
	text := string(input)

	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		matches = append(matches, shared.RegexMatch{Offset: m.Index, Length: m.Length})
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		if isTimeoutError(err) {
			return shared.MatchResponse{TimedOut: true}
		}
		return shared.MatchResponse{Err: "match: " + err.Error()}
	}

	return shared.MatchResponse{Matches: matches}
}

// regexp2 reports MatchTimeout expiry as a plain error value whose message
// starts with "match timeout" (runner.checkTimeout). Matching the prefix
// keeps an unrelated engine error that mentions a timeout from being
// classified as budget expiry.
func isTimeoutError(err error) bool {
	return strings.HasPrefix(err.Error(), "match timeout")
}
