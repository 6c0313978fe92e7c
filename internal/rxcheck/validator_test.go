package rxcheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		MaxLength:       256,
		MaxGroups:       10,
		MaxQuantifiers:  10,
		MaxAlternations: 10,
		MaxLookaheads:   3,
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		reason  RejectionReason
	}{
		{"nested quantifier plus", `(a+)+`, ReasonNestedQuantifier},
		{"nested quantifier star", `(a*)*`, ReasonNestedQuantifier},
		{"repeated wildcard runs", `.*.*`, ReasonNestedQuantifier},
		{"nested quantifier with literal suffix", `(a+)+b`, ReasonNestedQuantifier},
		{"positive lookbehind", `(?<=foo)bar`, ReasonLookbehind},
		{"negative lookbehind", `(?<!foo)bar`, ReasonLookbehind},
		{"backreference", `(a)\1`, ReasonBackreference},
		{"backreference alone", `ab\1`, ReasonBackreference},
		{"named capture", `(?<name>abc)`, ReasonNamedCapture},
		{"python named capture", `(?P<name>abc)`, ReasonNamedCapture},
		{"inline flag", `(?i)foo`, ReasonInlineFlags},
		{"inline flag group", `(?im:foo)`, ReasonInlineFlags},
		{"dangling escape", `abc\`, ReasonMalformed},
		{"unterminated class", `[abc`, ReasonMalformed},
		{"unterminated group name", `(?<name abc`, ReasonMalformed},
	}

	v := NewValidator(testLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.pattern)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.reason, res.Reason, "pattern %q", tt.pattern)
		})
	}
}

func TestValidateAccepted(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"non-capturing group quantified", `(?:abc)+`},
		{"bounded repetition", `a{2,5}`},
		{"simple alternation", `foo|bar`},
		{"character class", `[a-z0-9_]+@[a-z]+`},
		{"negated class", `[^abc]+`},
		{"leading literal bracket in class", `[]a]+`},
		{"escaped bracket in class", `[\]x]+`},
		{"anchors and dot", `^f.o$`},
		{"lookahead", `foo(?=bar)`},
		{"single wildcard run", `.*foo`},
		{"separate bounded quantifiers", `a*b*c*`},
		{"quantified group without inner quantifier", `(abc)+`},
		{"open-ended repetition", `x{3,}`},
		{"literal brace", `a{x}b`},
	}

	v := NewValidator(testLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.pattern)
			assert.True(t, res.Valid, "pattern %q rejected with %s", tt.pattern, res.Reason)
		})
	}
}

func TestValidateLengthCeiling(t *testing.T) {
	v := NewValidator(testLimits())

	res := v.Validate(strings.Repeat("a", 257))
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonTooLong, res.Reason)

	res = v.Validate(strings.Repeat("a", 256))
	assert.True(t, res.Valid)
}

func TestValidateComplexityCeilings(t *testing.T) {
	v := NewValidator(Limits{
		MaxLength:       256,
		MaxGroups:       2,
		MaxQuantifiers:  2,
		MaxAlternations: 2,
		MaxLookaheads:   1,
	})

	tests := []struct {
		name    string
		pattern string
		reason  RejectionReason
	}{
		{"too many groups", `(a)(b)(c)`, ReasonTooManyGroups},
		{"too many quantifiers", `a+b+c+`, ReasonTooManyQuantifiers},
		{"too many alternations", `a|b|c|d`, ReasonTooManyAlternations},
		{"too many lookaheads", `(?=a)(?=b)c`, ReasonTooManyLookaheads},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.pattern)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestValidateComplexityCounts(t *testing.T) {
	v := NewValidator(testLimits())

	res := v.Validate(`(foo|bar)+(?=baz)[a-z]{2,5}`)
	require.True(t, res.Valid)
	assert.Equal(t, 1, res.Complexity.Groups)
	assert.Equal(t, 2, res.Complexity.Quantifiers)
	assert.Equal(t, 1, res.Complexity.Alternations)
	assert.Equal(t, 1, res.Complexity.Lookaheads)
}

func TestTokenizeShapes(t *testing.T) {
	tokens, err := Tokenize(`a{2,5}(?:b)\d[x-z]|.`)
	require.NoError(t, err)

	kinds := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokenKind{
		TokenLiteral,
		TokenQuantifier,
		TokenGroupStart,
		TokenLiteral,
		TokenGroupEnd,
		TokenEscaped,
		TokenCharClass,
		TokenAlternation,
		TokenDot,
	}, kinds)
}

func TestTokenizeQuantifierBounds(t *testing.T) {
	tokens, err := Tokenize(`a{2,}b{2,5}c*d?`)
	require.NoError(t, err)

	var quants []Token
	for _, tok := range tokens {
		if tok.Kind == TokenQuantifier {
			quants = append(quants, tok)
		}
	}
	require.Len(t, quants, 4)
	assert.True(t, quants[0].Unbounded)  // {2,}
	assert.False(t, quants[1].Unbounded) // {2,5}
	assert.True(t, quants[2].Unbounded)  // *
	assert.False(t, quants[3].Unbounded) // ?
}

func TestTokenizeBackreferenceRef(t *testing.T) {
	tokens, err := Tokenize(`(a)\3`)
	require.NoError(t, err)

	last := tokens[len(tokens)-1]
	assert.Equal(t, TokenBackreference, last.Kind)
	assert.Equal(t, 3, last.Ref)
}

func TestTokenizeCapturingFlag(t *testing.T) {
	tokens, err := Tokenize(`(a)(?:b)`)
	require.NoError(t, err)

	assert.True(t, tokens[0].Capturing)
	assert.Equal(t, TokenGroupStart, tokens[3].Kind)
	assert.False(t, tokens[3].Capturing)
}
