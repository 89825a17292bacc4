// Package tmpl compiles user-authored template strings against the run
// context. Two forms are recognised: {{path.to.value}} substitutes the
// JSON-scalar rendering of a dotted lookup, and {{json path}} injects the
// subtree as pretty-printed JSON. Templates never execute code and nothing
// is HTML-escaped; output feeds JSON bodies and prompts, not markup.
package tmpl

import (
	"regexp"
	"strings"

	"github.com/loomworks/loom/runtime/workflow/values"
)

// placeholder matches {{ ... }} with optional interior whitespace. The body
// is either a dotted path or "json" followed by a dotted path.
var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Evaluate substitutes every placeholder in s from ctx. Unknown paths
// evaluate to the empty string; the evaluator is deliberately permissive so
// a half-configured workflow still runs.
func Evaluate(s string, ctx values.Object) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		body := strings.TrimSpace(placeholder.FindStringSubmatch(match)[1])
		if rest, ok := strings.CutPrefix(body, "json "); ok {
			path := strings.TrimSpace(rest)
			v, found := ctx.Resolve(path)
			if !found {
				return ""
			}
			return values.PrettyJSON(v)
		}
		v, found := ctx.Resolve(body)
		if !found {
			return ""
		}
		return values.Stringify(v)
	})
}

// EvaluateMap applies Evaluate to every string value of a configuration map,
// leaving non-string values untouched. Executors use this to resolve all
// templated fields of a node in one pass.
func EvaluateMap(in map[string]any, ctx values.Object) map[string]any {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = Evaluate(s, ctx)
			continue
		}
		out[k] = v
	}
	return out
}
