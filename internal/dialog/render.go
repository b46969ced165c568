package dialog

import (
	"fmt"
	"strings"
)

// Slots holds the values substituted into a user template.
type Slots struct {
	Summary string
	Query   string
	Context string
}

func (s Slots) lookup(name string) (string, bool) {
	switch name {
	case "summary":
		return s.Summary, true
	case "query":
		return s.Query, true
	case "context":
		return s.Context, true
	}
	return "", false
}

// Render substitutes {summary}, {query} and {context} in tmpl. Doubled braces
// produce literal braces. Any other placeholder or a lone brace is an error
// wrapping ErrRender.
func Render(tmpl string, slots Slots) (string, error) {
	var sb strings.Builder
	sb.Grow(len(tmpl) + len(slots.Context) + len(slots.Summary) + len(slots.Query))
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrRender, i)
			}
			name := tmpl[i+1 : i+1+end]
			val, ok := slots.lookup(name)
			if !ok {
				return "", fmt.Errorf("%w: unknown placeholder {%s}", ErrRender, name)
			}
			sb.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrRender, i)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}
