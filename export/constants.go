package export

import (
	"fmt"
	"strconv"
	"strings"
)

// generatedHeader marks machine-generated artifacts. The content hash line is
// parsed back by consumers to detect staleness.
const generatedHeader = "// Code generated by paramspec. DO NOT EDIT.\n"

// renderConstants emits the JS constants module mirroring the snapshot in the
// document runtime's literal syntax. The output contains no timestamps so a
// re-export of the same snapshot is byte-identical.
func (e *Exporter) renderConstants() []byte {
	var sb strings.Builder
	sb.WriteString(generatedHeader)
	fmt.Fprintf(&sb, "// content-hash: %s\n\n", e.snap.ContentHash)
	sb.WriteString("export const PARAMETERS = {\n")

	for _, id := range e.snap.IDs() {
		entry, _ := e.snap.Get(id)
		fmt.Fprintf(&sb, "  %q: {\n", id)
		fmt.Fprintf(&sb, "    value: %s,\n", jsNumber(entry.Value))
		if entry.Uncertainty != nil {
			fmt.Fprintf(&sb, "    uncertainty: %s,\n", jsNumber(*entry.Uncertainty))
		} else {
			sb.WriteString("    uncertainty: null,\n")
		}
		fmt.Fprintf(&sb, "    unit: %q,\n", entry.Unit)
		fmt.Fprintf(&sb, "    status: %q,\n", string(entry.Status))
		fmt.Fprintf(&sb, "    category: %q,\n", entry.Category)
		if entry.Formula != "" {
			fmt.Fprintf(&sb, "    formula: %q,\n", entry.Formula)
		}
		sb.WriteString("  },\n")
	}

	sb.WriteString("};\n\n")
	fmt.Fprintf(&sb, "export const CONTENT_HASH = %q;\n", e.snap.ContentHash)
	return []byte(sb.String())
}

// jsNumber formats a float as a JS numeric literal with full round-trip
// precision.
func jsNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
