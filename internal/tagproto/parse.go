package tagproto

import (
	"strings"

	"github.com/agentic-research/loom/api"
)

// Parse extracts typed operations from one full agent response.
func Parse(text string) Result {
	var (
		out strings.Builder
		res Result
	)

	i := 0
	for i < len(text) {
		lt := strings.IndexByte(text[i:], '<')
		if lt < 0 {
			out.WriteString(text[i:])
			break
		}
		out.WriteString(text[i : i+lt])
		i += lt

		tag, ok := scanTag(text, i)
		if !ok {
			// Not a well-formed known tag: the '<' is literal text and
			// scanning resumes right after it, leaving the malformed tag
			// verbatim in the chat content.
			out.WriteByte('<')
			i++
			continue
		}

		if tag.name == "write" && !tag.hasBody {
			// Open tag matched but no closing delimiter: report instead of
			// applying an empty-file write. The raw tag stays verbatim in
			// the chat content and parsing continues after it.
			res.Problems = append(res.Problems, Problem{
				Kind:   ProblemApply,
				Tag:    tag.name,
				Detail: "missing body: no closing </write> delimiter",
			})
			out.WriteString(text[i:tag.openEnd])
			i = tag.openEnd
			continue
		}
		if !tag.hasBody {
			// think / chat-summary without a closing delimiter.
			out.WriteByte('<')
			i++
			continue
		}

		op, problem := buildOp(tag)
		if problem != nil {
			// Recognized shape, invalid content: leave the raw tag
			// verbatim so the author can see it.
			res.Problems = append(res.Problems, *problem)
			out.WriteString(text[i:tag.end])
			i = tag.end
			continue
		}
		if op != nil {
			res.Operations = append(res.Operations, op)
			if s, isSummary := op.(api.SetSummary); isSummary {
				res.ChatSummary = s.Text
			}
		}
		i = tag.end
	}

	res.ChatContent = out.String()
	return res
}

// buildOp validates a matched tag and constructs its operation.
// A nil, nil return means the tag is recognized but carries no operation
// (the thinking aside).
func buildOp(tag rawTag) (api.Operation, *Problem) {
	switch tag.name {
	case "think":
		return nil, nil

	case "write":
		path := tag.attrs["path"]
		if path == "" {
			return nil, &Problem{Kind: ProblemParse, Tag: tag.name, Detail: "missing path attribute"}
		}
		return api.Write{
			Path:        path,
			Content:     trimBody(tag.body),
			Description: tag.attrs["description"],
		}, nil

	case "rename":
		from, to := tag.attrs["from"], tag.attrs["to"]
		if from == "" || to == "" {
			return nil, &Problem{Kind: ProblemParse, Tag: tag.name, Detail: "missing from/to attribute"}
		}
		return api.Rename{From: from, To: to}, nil

	case "delete":
		path := tag.attrs["path"]
		if path == "" {
			return nil, &Problem{Kind: ProblemParse, Tag: tag.name, Detail: "missing path attribute"}
		}
		return api.Delete{Path: path}, nil

	case "add-dependency":
		pkgs := strings.Fields(tag.attrs["packages"])
		if len(pkgs) == 0 {
			return nil, &Problem{Kind: ProblemParse, Tag: tag.name, Detail: "empty packages attribute"}
		}
		return api.AddDependency{Packages: pkgs}, nil

	case "command":
		typ := tag.attrs["type"]
		if !api.ValidCommandType(typ) {
			return nil, &Problem{Kind: ProblemParse, Tag: tag.name, Detail: "unknown command type " + quoted(typ)}
		}
		return api.RunCommand{Type: api.CommandType(typ)}, nil

	case "chat-summary":
		return api.SetSummary{Text: strings.TrimSpace(tag.body)}, nil
	}

	return nil, &Problem{Kind: ProblemParse, Tag: tag.name, Detail: "unhandled tag"}
}

// trimBody strips the single framing newline agents put after the open tag
// and before the close tag. Interior whitespace is file content and is
// preserved exactly.
func trimBody(body string) string {
	body = strings.TrimPrefix(body, "\r\n")
	if strings.HasPrefix(body, "\n") {
		body = body[1:]
	}
	if strings.HasSuffix(body, "\r\n") {
		return body[:len(body)-2]
	}
	return strings.TrimSuffix(body, "\n")
}

func quoted(s string) string {
	return `"` + s + `"`
}
