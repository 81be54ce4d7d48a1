package explain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format prints the plan as an indented tree, one numbered entry per request.
func (p *Plan) Format() string {
	var b strings.Builder
	name := p.OperationName
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(&b, "query %s\n", name)
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. ", i+1)
		writeStep(&b, step, "   ")
	}
	return b.String()
}

func writeStep(b *strings.Builder, step *Step, indent string) {
	fmt.Fprintf(b, "%s [%s]", step.Path, step.Kind)
	if step.DataConnector != "" {
		fmt.Fprintf(b, " on %s", step.DataConnector)
	}
	if step.DependsOn != "" {
		fmt.Fprintf(b, " after %s", step.DependsOn)
	}
	b.WriteByte('\n')

	if len(step.Join) > 0 {
		pairs := make([]string, 0, len(step.Join))
		for _, m := range step.Join {
			target := m.TargetColumn
			if m.TargetArgument != "" {
				target = m.TargetArgument
			}
			pairs = append(pairs, m.SourceColumn+" -> "+target)
		}
		fmt.Fprintf(b, "%sjoin: %s\n", indent, strings.Join(pairs, ", "))
	}
	if len(step.Arguments) > 0 {
		args := make([]string, 0, len(step.Arguments))
		for _, arg := range step.Arguments {
			args = append(args, arg.Name+" = "+formatValue(arg.Value))
		}
		fmt.Fprintf(b, "%sarguments: %s\n", indent, strings.Join(args, ", "))
	}
	fmt.Fprintf(b, "%s%s\n", indent, step.SQL)
	if len(step.Args) > 0 {
		values := make([]string, 0, len(step.Args))
		for _, v := range step.Args {
			values = append(values, formatValue(v))
		}
		fmt.Fprintf(b, "%sargs: [%s]\n", indent, strings.Join(values, ", "))
	}
	for _, child := range step.Children {
		fmt.Fprintf(b, "%s- ", indent)
		writeStep(b, child, indent+"  ")
	}
}

func formatValue(v any) string {
	if row, ok := v.(RowValue); ok {
		return row.String()
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
