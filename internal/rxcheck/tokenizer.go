package rxcheck

import (
	"errors"
	"strings"
)

// Tokenization errors. Any of them means the pattern is rejected outright:
// the scanner fails closed on truncated or malformed input.
var (
	ErrTruncatedEscape   = errors.New("pattern ends with a dangling escape")
	ErrUnterminatedClass = errors.New("unterminated character class")
	ErrUnterminatedName  = errors.New("unterminated group name")
	ErrMalformedGroup    = errors.New("malformed group opener")
)

const inlineFlagLetters = "imsxuU-"

// Tokenize scans pattern once into a token stream. It never expands
// character-class ranges and never interprets the pattern semantically
// beyond what the detectors need.
func Tokenize(pattern string) ([]Token, error) {
	tokens := make([]Token, 0, len(pattern))
	i := 0

	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '\\':
			if i+1 >= len(pattern) {
				return nil, ErrTruncatedEscape
			}
			next := pattern[i+1]
			if next >= '1' && next <= '9' {
				tokens = append(tokens, Token{Kind: TokenBackreference, Text: pattern[i : i+2], Ref: int(next - '0')})
			} else {
				tokens = append(tokens, Token{Kind: TokenEscaped, Text: pattern[i : i+2]})
			}
			i += 2

		case '[':
			end, err := scanClass(pattern, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: TokenCharClass, Text: pattern[i:end]})
			i = end

		case '(':
			tok, width, err := scanGroupOpener(pattern, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i += width

		case ')':
			tokens = append(tokens, Token{Kind: TokenGroupEnd, Text: ")"})
			i++

		case '*', '+', '?':
			tokens = append(tokens, Token{
				Kind:      TokenQuantifier,
				Text:      string(c),
				Unbounded: c == '*' || c == '+',
			})
			i++

		case '{':
			if end, unbounded, ok := scanBraceQuantifier(pattern, i); ok {
				tokens = append(tokens, Token{Kind: TokenQuantifier, Text: pattern[i:end], Unbounded: unbounded})
				i = end
			} else {
				// Not a quantifier shape; a lone brace is a literal.
				tokens = append(tokens, Token{Kind: TokenLiteral, Text: "{"})
				i++
			}

		case '|':
			tokens = append(tokens, Token{Kind: TokenAlternation, Text: "|"})
			i++

		case '^', '$':
			tokens = append(tokens, Token{Kind: TokenAnchor, Text: string(c)})
			i++

		case '.':
			tokens = append(tokens, Token{Kind: TokenDot, Text: "."})
			i++

		default:
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: string(c)})
			i++
		}
	}

	return tokens, nil
}

// scanClass consumes a [...] character class starting at start and returns
// the index just past the closing bracket. A leading "^" negation and a
// leading literal "]" are part of the class; internal escapes are skipped
// without interpretation.
func scanClass(pattern string, start int) (int, error) {
	i := start + 1
	if i < len(pattern) && pattern[i] == '^' {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++
	}
	for i < len(pattern) {
		switch pattern[i] {
		case '\\':
			if i+1 >= len(pattern) {
				return 0, ErrTruncatedEscape
			}
			i += 2
		case ']':
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, ErrUnterminatedClass
}

// scanGroupOpener classifies the "(" at start by inspecting what follows it
// and returns the token plus the number of bytes the opener consumes. Group
// bodies are not consumed here; they tokenize as ordinary stream content.
func scanGroupOpener(pattern string, start int) (Token, int, error) {
	rest := pattern[start+1:]

	switch {
	case strings.HasPrefix(rest, "?:"):
		return Token{Kind: TokenGroupStart, Text: "(?:"}, 3, nil
	case strings.HasPrefix(rest, "?="):
		return Token{Kind: TokenLookahead, Text: "(?=", Positive: true}, 3, nil
	case strings.HasPrefix(rest, "?!"):
		return Token{Kind: TokenLookahead, Text: "(?!"}, 3, nil
	case strings.HasPrefix(rest, "?<="):
		return Token{Kind: TokenLookbehind, Text: "(?<=", Positive: true}, 4, nil
	case strings.HasPrefix(rest, "?<!"):
		return Token{Kind: TokenLookbehind, Text: "(?<!"}, 4, nil
	case strings.HasPrefix(rest, "?P<"), strings.HasPrefix(rest, "?<"):
		nameStart := 2
		if strings.HasPrefix(rest, "?P<") {
			nameStart = 3
		}
		end := strings.IndexByte(rest[nameStart:], '>')
		if end < 0 {
			return Token{}, 0, ErrUnterminatedName
		}
		width := 1 + nameStart + end + 1
		return Token{Kind: TokenNamedCapture, Text: pattern[start : start+width]}, width, nil
	case strings.HasPrefix(rest, "?"):
		if width, ok := scanInlineFlags(rest); ok {
			return Token{Kind: TokenInlineFlag, Text: pattern[start : start+1+width]}, 1 + width, nil
		}
		return Token{}, 0, ErrMalformedGroup
	default:
		return Token{Kind: TokenGroupStart, Text: "(", Capturing: true}, 1, nil
	}
}

// scanInlineFlags matches "?" followed by one or more flag letters, closed
// by ":" or ")". Returns the width of the consumed prefix excluding the
// leading parenthesis but including a ":" terminator when present.
func scanInlineFlags(rest string) (int, bool) {
	i := 1 // past '?'
	seen := 0
	for i < len(rest) && strings.IndexByte(inlineFlagLetters, rest[i]) >= 0 {
		i++
		seen++
	}
	if seen == 0 {
		return 0, false
	}
	if i < len(rest) && rest[i] == ':' {
		return i + 1, true
	}
	if i < len(rest) && rest[i] == ')' {
		// The closing parenthesis stays in the stream as TokenGroupEnd; the
		// detector rejects the flag token before pairing ever matters.
		return i, true
	}
	return 0, false
}

// scanBraceQuantifier recognizes {n}, {n,} and {n,m} starting at start.
// Returns the end index, whether the quantifier is unbounded, and whether
// the shape matched at all.
func scanBraceQuantifier(pattern string, start int) (int, bool, bool) {
	i := start + 1
	digits := 0
	for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
		i++
		digits++
	}
	if digits == 0 {
		return 0, false, false
	}
	if i < len(pattern) && pattern[i] == '}' {
		return i + 1, false, true // {n}
	}
	if i >= len(pattern) || pattern[i] != ',' {
		return 0, false, false
	}
	i++
	if i < len(pattern) && pattern[i] == '}' {
		return i + 1, true, true // {n,}
	}
	upper := 0
	for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
		i++
		upper++
	}
	if upper == 0 || i >= len(pattern) || pattern[i] != '}' {
		return 0, false, false
	}
	return i + 1, false, true // {n,m}
}
