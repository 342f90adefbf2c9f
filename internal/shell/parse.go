package shell

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Invocation is one parsed shell line that runs an action word.
type Invocation struct {
	Keyword string
	Params  map[string]any
	Store   string
	Recover string
}

// Tokens starting with this prefix set step options instead of parameters.
const optionPrefix = "@"

// ParseInvocation parses `keyword key=value ... [@store=name] [@recover=kw]`.
// Unquoted values are decoded as YAML scalars or flow collections, so
// count=3 yields an int and tags=[a,b] a list. Quoted values stay strings.
func ParseInvocation(line string) (Invocation, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Invocation{}, err
	}
	if len(tokens) == 0 {
		return Invocation{}, fmt.Errorf("empty input")
	}

	inv := Invocation{Keyword: tokens[0].text, Params: map[string]any{}}
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok.text, "=")
		if !ok || key == "" {
			return Invocation{}, fmt.Errorf("expected key=value, got %q", tok.text)
		}

		if opt, isOpt := strings.CutPrefix(key, optionPrefix); isOpt {
			switch opt {
			case "store":
				inv.Store = value
			case "recover":
				inv.Recover = value
			default:
				return Invocation{}, fmt.Errorf("unknown option %q", key)
			}
			continue
		}

		if tok.quotedValue {
			inv.Params[key] = value
		} else {
			inv.Params[key] = decodeScalar(value)
		}
	}
	return inv, nil
}

func decodeScalar(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

type token struct {
	text        string
	quotedValue bool
}

// tokenize splits on whitespace outside quotes. Quotes are removed; a token
// whose value part was quoted is flagged so it is not YAML-decoded.
func tokenize(line string) ([]token, error) {
	var (
		tokens  []token
		current strings.Builder
		quote   rune
		quoted  bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, token{text: current.String(), quotedValue: quoted})
		}
		current.Reset()
		quoted = false
		started = false
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			quoted = true
			started = true
		case r == ' ' || r == '\t':
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	flush()
	return tokens, nil
}
