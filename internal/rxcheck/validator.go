// Package rxcheck statically validates regex signature patterns before they
// are ever executed. It allow-lists a small dialect: only constructs the
// tokenizer explicitly recognizes are permitted, and the constructs that
// make worst-case matching complexity unbounded in backtracking engines
// (backreferences, lookbehind) are rejected outright regardless of whether
// a particular engine could handle them.
package rxcheck

// RejectionReason is the closed set of reasons a pattern can fail
// validation. Exactly one reason is reported per rejected pattern.
type RejectionReason int

const (
	ReasonNone RejectionReason = iota
	ReasonTooLong
	ReasonMalformed
	ReasonBackreference
	ReasonLookbehind
	ReasonInlineFlags
	ReasonNamedCapture
	ReasonNestedQuantifier
	ReasonTooManyGroups
	ReasonTooManyQuantifiers
	ReasonTooManyAlternations
	ReasonTooManyLookaheads
)

func (r RejectionReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTooLong:
		return "pattern_too_long"
	case ReasonMalformed:
		return "malformed_pattern"
	case ReasonBackreference:
		return "backreference"
	case ReasonLookbehind:
		return "lookbehind"
	case ReasonInlineFlags:
		return "inline_flags"
	case ReasonNamedCapture:
		return "named_capture"
	case ReasonNestedQuantifier:
		return "nested_quantifier"
	case ReasonTooManyGroups:
		return "too_many_groups"
	case ReasonTooManyQuantifiers:
		return "too_many_quantifiers"
	case ReasonTooManyAlternations:
		return "too_many_alternations"
	case ReasonTooManyLookaheads:
		return "too_many_lookaheads"
	default:
		return "unknown"
	}
}

// Complexity holds the construct counts of a validated pattern.
type Complexity struct {
	Groups       int
	Quantifiers  int
	Alternations int
	Lookaheads   int
	Length       int
}

// ValidationResult is the outcome of validating one pattern.
type ValidationResult struct {
	Valid      bool
	Reason     RejectionReason
	Complexity Complexity
}

// Limits are the validator ceilings. Zero values are not defaulted here;
// the caller passes an already-defaulted SecurityLimits view.
type Limits struct {
	MaxLength       int
	MaxGroups       int
	MaxQuantifiers  int
	MaxAlternations int
	MaxLookaheads   int
}

// DefaultLimits mirrors the built-in SecurityLimits preset for callers
// that do not thread a configuration through.
func DefaultLimits() Limits {
	return Limits{
		MaxLength:       512,
		MaxGroups:       20,
		MaxQuantifiers:  20,
		MaxAlternations: 20,
		MaxLookaheads:   5,
	}
}

// Validator checks patterns against a fixed set of limits.
type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits}
}

func reject(reason RejectionReason, c Complexity) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason, Complexity: c}
}

// Validate runs the cheapest check first (raw length), tokenizes once, then
// runs the independent detector passes over the same token stream, and
// finally applies the complexity ceilings.
func (v *Validator) Validate(pattern string) ValidationResult {
	c := Complexity{Length: len(pattern)}

	if len(pattern) > v.limits.MaxLength {
		return reject(ReasonTooLong, c)
	}

	tokens, err := Tokenize(pattern)
	if err != nil {
		return reject(ReasonMalformed, c)
	}

	if hasTokenKind(tokens, TokenBackreference) {
		return reject(ReasonBackreference, c)
	}
	if hasTokenKind(tokens, TokenLookbehind) {
		return reject(ReasonLookbehind, c)
	}
	if hasTokenKind(tokens, TokenInlineFlag) {
		return reject(ReasonInlineFlags, c)
	}
	if hasTokenKind(tokens, TokenNamedCapture) {
		return reject(ReasonNamedCapture, c)
	}
	if hasNestedQuantifier(tokens) {
		return reject(ReasonNestedQuantifier, c)
	}

	c = countComplexity(tokens, c)
	switch {
	case c.Groups > v.limits.MaxGroups:
		return reject(ReasonTooManyGroups, c)
	case c.Quantifiers > v.limits.MaxQuantifiers:
		return reject(ReasonTooManyQuantifiers, c)
	case c.Alternations > v.limits.MaxAlternations:
		return reject(ReasonTooManyAlternations, c)
	case c.Lookaheads > v.limits.MaxLookaheads:
		return reject(ReasonTooManyLookaheads, c)
	}

	return ValidationResult{Valid: true, Reason: ReasonNone, Complexity: c}
}

func hasTokenKind(tokens []Token, kind TokenKind) bool {
	for _, tok := range tokens {
		if tok.Kind == kind {
			return true
		}
	}
	return false
}

// hasNestedQuantifier flags quantifiers applied to a just-closed group that
// already contained a quantifier (the classic (a+)+ shape), plus repeated
// unbounded wildcard runs like ".*.*". This is a conservative heuristic
// over group boundaries, not a backtracking-complexity proof: it has known
// false negatives and that scope is intentional.
func hasNestedQuantifier(tokens []Token) bool {
	// One boolean per open group or lookahead: has a quantifier been seen
	// inside it. Closing a group that contained one arms the next check.
	levelHasQuant := []bool{false}
	armed := false
	unboundedDots := 0
	prevKind := TokenKind(-1)

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenGroupStart, TokenLookahead:
			levelHasQuant = append(levelHasQuant, false)
			armed = false
		case TokenGroupEnd:
			if len(levelHasQuant) > 1 {
				armed = levelHasQuant[len(levelHasQuant)-1]
				levelHasQuant = levelHasQuant[:len(levelHasQuant)-1]
			} else {
				armed = false
			}
		case TokenQuantifier:
			if armed {
				return true
			}
			if tok.Unbounded && prevKind == TokenDot {
				unboundedDots++
				if unboundedDots > 1 {
					return true
				}
			}
			levelHasQuant[len(levelHasQuant)-1] = true
			armed = false
		default:
			armed = false
		}
		prevKind = tok.Kind
	}

	return false
}

func countComplexity(tokens []Token, c Complexity) Complexity {
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenGroupStart:
			c.Groups++
		case TokenQuantifier:
			c.Quantifiers++
		case TokenAlternation:
			c.Alternations++
		case TokenLookahead:
			c.Lookaheads++
		}
	}
	return c
}
