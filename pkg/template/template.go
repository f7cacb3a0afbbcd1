// Package template provides prompt templating for workflow actions.
package template

import "strings"

// Render substitutes every `{{key}}` occurrence in the template with the
// matching context value. Substitution is flat: no nesting, no conditionals,
// no recursion into substituted values. Keys absent from the context are left
// in place as literal placeholders so the rendered prompt makes the gap
// visible instead of failing the workflow.
func Render(templateStr string, context map[string]string) string {
	if len(context) == 0 {
		return templateStr
	}

	pairs := make([]string, 0, len(context)*2)
	for key, value := range context {
		pairs = append(pairs, "{{"+key+"}}", value)
	}

	return strings.NewReplacer(pairs...).Replace(templateStr)
}
