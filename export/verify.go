package export

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/c360studio/paramspec/snapshot"
)

// VerifyConstants re-reads a generated constants module, parses it with the
// JavaScript grammar, and checks every literal back against the snapshot.
// A divergence means the written artifact does not match its declared source
// and is reported as an IntegrityError.
func VerifyConstants(path string, snap *snapshot.Snapshot) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read constants module: %w", err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return fmt.Errorf("parse constants module: %w", err)
	}
	defer tree.Close()

	if tree.RootNode().HasError() {
		return &IntegrityError{Artifact: path, Detail: "generated module is not valid JavaScript"}
	}

	values, hash := extractConstants(tree.RootNode(), content)

	if hash != snap.ContentHash {
		return &IntegrityError{
			Artifact: path,
			Detail:   fmt.Sprintf("content hash %q does not match snapshot %q", hash, snap.ContentHash),
		}
	}

	for id, entry := range snap.Entries {
		got, ok := values[id]
		if !ok {
			return &IntegrityError{Artifact: path, Detail: fmt.Sprintf("parameter %q missing from module", id)}
		}
		if !floatEqual(got.value, entry.Value) {
			return &IntegrityError{
				Artifact: path,
				Detail:   fmt.Sprintf("parameter %q value %g does not match snapshot %g", id, got.value, entry.Value),
			}
		}
		switch {
		case got.uncertaintyNull != (entry.Uncertainty == nil):
			return &IntegrityError{Artifact: path, Detail: fmt.Sprintf("parameter %q uncertainty nullability mismatch", id)}
		case entry.Uncertainty != nil && !floatEqual(got.uncertainty, *entry.Uncertainty):
			return &IntegrityError{
				Artifact: path,
				Detail:   fmt.Sprintf("parameter %q uncertainty %g does not match snapshot %g", id, got.uncertainty, *entry.Uncertainty),
			}
		}
	}
	for id := range values {
		if _, ok := snap.Entries[id]; !ok {
			return &IntegrityError{Artifact: path, Detail: fmt.Sprintf("module declares unknown parameter %q", id)}
		}
	}
	return nil
}

type constantEntry struct {
	value           float64
	uncertainty     float64
	uncertaintyNull bool
}

// extractConstants walks the module AST collecting the PARAMETERS object and
// the CONTENT_HASH string.
func extractConstants(root *sitter.Node, src []byte) (map[string]constantEntry, string) {
	values := make(map[string]constantEntry)
	var hash string

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "variable_declarator" {
			name := n.ChildByFieldName("name")
			value := n.ChildByFieldName("value")
			if name != nil && value != nil {
				switch name.Content(src) {
				case "PARAMETERS":
					collectParameters(value, src, values)
				case "CONTENT_HASH":
					hash = unquote(value.Content(src))
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return values, hash
}

// collectParameters reads the top-level pairs of the PARAMETERS object.
func collectParameters(obj *sitter.Node, src []byte, out map[string]constantEntry) {
	if obj.Type() != "object" {
		return
	}
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		pair := obj.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		val := pair.ChildByFieldName("value")
		if key == nil || val == nil || val.Type() != "object" {
			continue
		}
		id := unquote(key.Content(src))

		entry := constantEntry{uncertaintyNull: true}
		for j := 0; j < int(val.NamedChildCount()); j++ {
			field := val.NamedChild(j)
			if field.Type() != "pair" {
				continue
			}
			fk := field.ChildByFieldName("key")
			fv := field.ChildByFieldName("value")
			if fk == nil || fv == nil {
				continue
			}
			switch fk.Content(src) {
			case "value":
				entry.value = parseJSNumber(fv, src)
			case "uncertainty":
				if fv.Type() != "null" {
					entry.uncertaintyNull = false
					entry.uncertainty = parseJSNumber(fv, src)
				}
			}
		}
		out[id] = entry
	}
}

// parseJSNumber handles plain and unary-negated numeric literals.
func parseJSNumber(n *sitter.Node, src []byte) float64 {
	v, err := strconv.ParseFloat(n.Content(src), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

// floatEqual compares through the same round-trip formatting the generator
// uses, so representable values compare exactly.
func floatEqual(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
