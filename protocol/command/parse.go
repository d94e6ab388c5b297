package command

import (
	"strings"

	"github.com/apilink-dev/handshake/protoerr"
)

// parsedCommand is the HTTP request a curl-style template describes.
type parsedCommand struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// tokenize splits a command template on whitespace while honoring single
// and double quotes, so header values like 'Authorization: Bearer x' stay
// one token. Backslash-newline continuations are joined first.
func tokenize(text string) ([]string, error) {
	text = strings.ReplaceAll(text, "\\\n", " ")

	var (
		tokens []string
		cur    strings.Builder
		quote  rune
		open   bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case open:
			if r == quote {
				open = false
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			open = true
			quote = r
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if open {
		return nil, protoerr.New(Protocol, "parse", protoerr.CodeParse, "unterminated quote in command template")
	}
	flush()
	return tokens, nil
}

// parseCommand interprets a curl-style template. Recognized flags are
// -X/--request, -H/--header, -d/--data/--data-raw and -u/--user; the
// first non-flag token after the curl word is the URL. Unknown flags are
// a parse error so typos fail before any network traffic.
func parseCommand(text string) (parsedCommand, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return parsedCommand{}, err
	}
	if len(tokens) == 0 {
		return parsedCommand{}, protoerr.New(Protocol, "parse", protoerr.CodeParse, "empty command template")
	}
	if tokens[0] != "curl" {
		return parsedCommand{}, protoerr.New(Protocol, "parse", protoerr.CodeParse, "command template must start with curl")
	}

	cmd := parsedCommand{Headers: map[string]string{}}
	next := func(i int, flag string) (string, error) {
		if i+1 >= len(tokens) {
			return "", protoerr.New(Protocol, "parse", protoerr.CodeParse, flag+" is missing its argument")
		}
		return tokens[i+1], nil
	}

	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "-X", "--request":
			v, err := next(i, tok)
			if err != nil {
				return parsedCommand{}, err
			}
			cmd.Method = strings.ToUpper(v)
			i++
		case "-H", "--header":
			v, err := next(i, tok)
			if err != nil {
				return parsedCommand{}, err
			}
			name, value, ok := strings.Cut(v, ":")
			if !ok {
				return parsedCommand{}, protoerr.New(Protocol, "parse", protoerr.CodeParse, "header without colon: "+name)
			}
			cmd.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
			i++
		case "-d", "--data", "--data-raw":
			v, err := next(i, tok)
			if err != nil {
				return parsedCommand{}, err
			}
			cmd.Body = v
			i++
		case "-u", "--user":
			v, err := next(i, tok)
			if err != nil {
				return parsedCommand{}, err
			}
			cmd.Headers["Authorization"] = basicAuth(v)
			i++
		case "-s", "--silent", "-k", "--insecure", "-L", "--location", "--compressed":
			// Transport niceties with no HTTP meaning here.
		default:
			if strings.HasPrefix(tok, "-") {
				return parsedCommand{}, protoerr.New(Protocol, "parse", protoerr.CodeParse, "unsupported flag "+tok)
			}
			if cmd.URL != "" {
				return parsedCommand{}, protoerr.New(Protocol, "parse", protoerr.CodeParse, "more than one URL in command template")
			}
			cmd.URL = tok
		}
	}

	if cmd.URL == "" {
		return parsedCommand{}, protoerr.New(Protocol, "parse", protoerr.CodeParse, "command template has no URL")
	}
	if cmd.Method == "" {
		if cmd.Body != "" {
			cmd.Method = "POST"
		} else {
			cmd.Method = "GET"
		}
	}
	return cmd, nil
}
