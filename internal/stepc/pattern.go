package stepc

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern is a compiled step definition text.
type pattern struct {
	re   *regexp.Regexp
	args []string
}

// compilePattern turns definition text into an anchored matcher. Each
// `{name}` placeholder matches one or more characters.
func compilePattern(text string) (*pattern, error) {
	var (
		sb   strings.Builder
		args []string
	)
	sb.WriteString("^")
	rest := text
	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			sb.WriteString(regexp.QuoteMeta(rest))
			break
		}
		if rest[open] == '}' {
			return nil, fmt.Errorf("unmatched '}' in %q", text)
		}
		sb.WriteString(regexp.QuoteMeta(rest[:open]))
		rest = rest[open+1:]
		closeIdx := strings.IndexAny(rest, "{}")
		if closeIdx < 0 || rest[closeIdx] == '{' {
			return nil, fmt.Errorf("unterminated argument in %q", text)
		}
		name := strings.TrimSpace(rest[:closeIdx])
		if name == "" {
			return nil, fmt.Errorf("empty argument name in %q", text)
		}
		args = append(args, name)
		sb.WriteString("(.+?)")
		rest = rest[closeIdx+1:]
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	return &pattern{re: re, args: args}, nil
}

func (p *pattern) match(text string) bool {
	return p != nil && p.re.MatchString(text)
}
