package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/ussdflow/internal/runtime"
	"github.com/aretw0/ussdflow/pkg/domain"
)

// Overlay marks a session's position on the graph.
type Overlay struct {
	Current domain.StateID
}

// GenerateMermaid renders a flow table as a Mermaid flowchart.
// Shapes:
// - Entry: ((Circle))
// - Terminal: ([Stadium])
// - Sensitive (PIN entry): [/Parallelogram/]
// - Default: [Rectangle]
// Backend failure edges are dotted and labelled with the operation.
func GenerateMermaid(table runtime.Table, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range table.StateIDs() {
		def := table.States[id]
		safeID := sanitizeMermaidID(string(id))

		opener, closer := "[", "]"
		switch {
		case id == table.Entry:
			opener, closer = "((", "))"
		case def.Terminal:
			opener, closer = "([", "])"
		case def.Sensitive:
			opener, closer = "[/", "/]"
		}

		label := string(id)
		if def.TTL > 0 {
			label = fmt.Sprintf("%s <br/> ttl %s", id, def.TTL)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		for _, tr := range def.Transitions {
			arrow := "-->"
			if tr.Name != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(tr.Name, "\"", "'"))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(string(tr.To)))

			if tr.Invoke != nil && tr.OnFailure != "" {
				fmt.Fprintf(&sb, "    %s -. \"%s failed\" .-> %s\n", safeID, tr.Invoke.Operation, sanitizeMermaidID(string(tr.OnFailure)))
			}
		}
	}

	if overlay != nil && overlay.Current != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.Current)))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
