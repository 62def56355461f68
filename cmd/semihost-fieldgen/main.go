package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log"
	"os"
	"sort"
	"strconv"
	"text/template"
)

const outputPath = "pkg/metrics/opcode_labels_generated.go"

// OpcodeLabel is one entry of the generated label table: the Go constant
// name in pkg/semihosting.Opcode paired with its Prometheus label value.
// It is used by the template to generate opcode_labels_generated.go.
// The template is in template.tmpl.
type OpcodeLabel struct {
	GoName string
	Label  string
	Value  uint64
}

func main() {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, "pkg/semihosting/opcode.go", nil, parser.ParseComments)
	if err != nil {
		log.Fatal(err)
	}

	values := map[string]uint64{}
	ast.Inspect(node, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok || spec.Type == nil {
			return true
		}
		ident, ok := spec.Type.(*ast.Ident)
		if !ok || ident.Name != "Opcode" {
			return true
		}
		for i, name := range spec.Names {
			if i >= len(spec.Values) {
				continue
			}
			lit, ok := spec.Values[i].(*ast.BasicLit)
			if !ok || lit.Kind != token.INT {
				continue
			}
			v, err := strconv.ParseUint(lit.Value, 0, 32)
			if err != nil {
				continue
			}
			values[name.Name] = v
		}
		return true
	})

	labels := map[string]string{}
	ast.Inspect(node, func(n ast.Node) bool {
		kv, ok := n.(*ast.KeyValueExpr)
		if !ok {
			return true
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return true
		}
		val, ok := kv.Value.(*ast.BasicLit)
		if !ok || val.Kind != token.STRING {
			return true
		}
		label, err := strconv.Unquote(val.Value)
		if err != nil {
			return true
		}
		labels[key.Name] = label
		return true
	})

	var opcodes []OpcodeLabel
	for goName, v := range values {
		if goName == "UserCmdFirst" || goName == "UserCmdLast" {
			continue
		}
		label, ok := labels[goName]
		if !ok {
			continue
		}
		opcodes = append(opcodes, OpcodeLabel{GoName: goName, Label: label, Value: v})
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i].Value < opcodes[j].Value })

	t, err := template.ParseFiles("cmd/semihost-fieldgen/template.tmpl")
	if err != nil {
		log.Fatal(err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ Opcodes []OpcodeLabel }{Opcodes: opcodes}); err != nil {
		log.Fatal(err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Generated %s\n", outputPath)
}
