package retrieval

import (
	"strings"
)

// MetaSource is the document metadata key holding the source identifier.
const MetaSource = "source"

// placeholderSources are identifiers that never name a real document.
var placeholderSources = map[string]struct{}{
	"":             {},
	"None":         {},
	"context.txt":  {},
	"filename.txt": {},
}

// NormalizeSource reduces a source identifier to its final path segment and
// reports false for empty or placeholder identifiers.
func NormalizeSource(source string) (string, bool) {
	source = strings.TrimSpace(source)
	if _, placeholder := placeholderSources[source]; placeholder {
		return "", false
	}
	if strings.ContainsAny(source, `/\`) {
		source = strings.ReplaceAll(source, `\`, "/")
		source = source[strings.LastIndexByte(source, '/')+1:]
	}
	if _, placeholder := placeholderSources[source]; placeholder {
		return "", false
	}
	return source, true
}

// Sources collects distinct identifiers in first-seen order. Each raw
// identifier is normalised with normalize, which may reject it.
func Sources(raw []string, normalize func(string) (string, bool)) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s, ok := normalize(r)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// normalizeURL trims a URL and rejects empty ones.
func normalizeURL(u string) (string, bool) {
	u = strings.TrimSpace(u)
	return u, u != ""
}

// StripModelCitation removes a trailing bracketed citation the model added
// on its own. The last "[" segment is removed when the answer ends in "]"
// and the segment mentions "[Source", or "source" in any case when
// caseInsensitive is set.
func StripModelCitation(answer string, caseInsensitive bool) string {
	trimmed := strings.TrimSpace(answer)
	if !strings.HasSuffix(trimmed, "]") {
		return answer
	}
	i := strings.LastIndexByte(trimmed, '[')
	if i < 0 {
		return answer
	}
	segment := trimmed[i:]
	var cited bool
	if caseInsensitive {
		cited = strings.Contains(strings.ToLower(segment), "source")
	} else {
		cited = strings.HasPrefix(segment, "[Source")
	}
	if !cited {
		return answer
	}
	return strings.TrimSpace(trimmed[:i])
}

// AppendCitations appends the validated citation block. No sources leaves
// the answer unchanged.
func AppendCitations(answer string, sources []string) string {
	switch len(sources) {
	case 0:
		return answer
	case 1:
		return answer + "\n\n[Source: " + sources[0] + "]"
	default:
		return answer + "\n\n[Sources: " + strings.Join(sources, ", ") + "]"
	}
}
