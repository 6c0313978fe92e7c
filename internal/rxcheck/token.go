package rxcheck

// TokenKind discriminates the tokens produced by the pattern scanner.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenEscaped
	TokenCharClass
	TokenGroupStart
	TokenGroupEnd
	TokenQuantifier
	TokenAlternation
	TokenLookahead
	TokenLookbehind
	TokenBackreference
	TokenInlineFlag
	TokenNamedCapture
	TokenAnchor
	TokenDot
)

func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenEscaped:
		return "escaped"
	case TokenCharClass:
		return "char_class"
	case TokenGroupStart:
		return "group_start"
	case TokenGroupEnd:
		return "group_end"
	case TokenQuantifier:
		return "quantifier"
	case TokenAlternation:
		return "alternation"
	case TokenLookahead:
		return "lookahead"
	case TokenLookbehind:
		return "lookbehind"
	case TokenBackreference:
		return "backreference"
	case TokenInlineFlag:
		return "inline_flag"
	case TokenNamedCapture:
		return "named_capture"
	case TokenAnchor:
		return "anchor"
	case TokenDot:
		return "dot"
	default:
		return "unknown"
	}
}

// Token is one element of the tokenized pattern. The same token stream is
// consumed by several independent detector passes.
type Token struct {
	Kind TokenKind
	// Text is the raw pattern slice this token covers.
	Text string
	// Capturing is set on TokenGroupStart for plain "(" groups.
	Capturing bool
	// Positive distinguishes (?=…)/(?<=…) from (?!…)/(?<!…).
	Positive bool
	// Ref is the referenced group number for TokenBackreference.
	Ref int
	// Unbounded is set on quantifiers with no upper bound: *, +, {n,}.
	Unbounded bool
}
