// Package rootcheck defines an analyzer that reports roots and handles
// escaping the stack.
//
// Rooted, Handle and MutableHandle from package root are only sound while
// they live in a single function's frame. The analyzer reports:
//
//   - struct fields whose type is one of them (or a pointer to one)
//   - slice, array, map and channel types with one of them as element
//   - package-level variables of one of the types
//   - functions returning a Handle or MutableHandle
//   - function literals capturing a Handle or MutableHandle, unless the
//     literal is called in place or deferred
//   - roots and handles passed to a go statement
//
// The root package itself is exempt.
package rootcheck

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// RootPackage is the import path of the root package.
const RootPackage = "github.com/wippyai/gcroot/root"

const doc = `report roots and handles that escape the stack

Values of type root.Rooted, root.Handle and root.MutableHandle must not be
stored in struct fields, containers or package variables, and handles must
not be returned from functions, captured by escaping closures or handed to
goroutines.`

var Analyzer = &analysis.Analyzer{
	Name:     "rootcheck",
	Doc:      doc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// rootType reports which root type t is, looking through pointers.
func rootType(t types.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	named, ok := t.(*types.Named)
	if !ok {
		return "", false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != RootPackage {
		return "", false
	}
	switch obj.Name() {
	case "Rooted", "Handle", "MutableHandle":
		return obj.Name(), true
	}
	return "", false
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg.Path() == RootPackage {
		return nil, nil
	}

	typeOf := func(e ast.Expr) types.Type { return pass.TypesInfo.TypeOf(e) }

	container := func(e ast.Expr) {
		if name, ok := rootType(typeOf(e)); ok {
			pass.Reportf(e.Pos(), "root.%s used as a container element; roots and handles must stay on the stack", name)
		}
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	filter := []ast.Node{
		(*ast.StructType)(nil),
		(*ast.ArrayType)(nil),
		(*ast.MapType)(nil),
		(*ast.ChanType)(nil),
		(*ast.FuncType)(nil),
	}
	insp.Preorder(filter, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.StructType:
			for _, f := range n.Fields.List {
				if name, ok := rootType(typeOf(f.Type)); ok {
					pass.Reportf(f.Pos(), "root.%s stored in a struct field; roots and handles must stay on the stack", name)
				}
			}
		case *ast.ArrayType:
			container(n.Elt)
		case *ast.MapType:
			container(n.Key)
			container(n.Value)
		case *ast.ChanType:
			container(n.Value)
		case *ast.FuncType:
			if n.Results == nil {
				return
			}
			for _, f := range n.Results.List {
				if name, ok := rootType(typeOf(f.Type)); ok && name != "Rooted" {
					pass.Reportf(f.Pos(), "function returns root.%s; handles must not outlive the caller's roots", name)
				}
			}
		}
	})

	insp.WithStack([]ast.Node{(*ast.FuncLit)(nil), (*ast.GoStmt)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		switch n := n.(type) {
		case *ast.GoStmt:
			for _, arg := range n.Call.Args {
				if name, ok := rootType(typeOf(arg)); ok {
					pass.Reportf(arg.Pos(), "root.%s passed to a goroutine; it may outlive its root", name)
				}
			}
		case *ast.FuncLit:
			by := "a closure"
			if len(stack) >= 3 {
				if call, ok := stack[len(stack)-2].(*ast.CallExpr); ok && call.Fun == n {
					if _, ok := stack[len(stack)-3].(*ast.GoStmt); !ok {
						return true
					}
					by = "a goroutine"
				}
			}
			for _, c := range captures(pass, n) {
				pass.Reportf(n.Pos(), "root.%s %s captured by %s; handles must not outlive their root", c.kind, c.name, by)
			}
		}
		return true
	})

	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				for _, id := range spec.(*ast.ValueSpec).Names {
					obj := pass.TypesInfo.Defs[id]
					if obj == nil {
						continue
					}
					if name, ok := rootType(obj.Type()); ok {
						pass.Reportf(id.Pos(), "root.%s in package variable %s", name, id.Name)
					}
				}
			}
		}
	}
	return nil, nil
}

type capture struct {
	kind string
	name string
}

// captures lists the Handle and MutableHandle variables declared outside lit
// and used inside it. Nested literals report their own captures.
func captures(pass *analysis.Pass, lit *ast.FuncLit) []capture {
	var out []capture
	seen := make(map[types.Object]bool)
	ast.Inspect(lit.Body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.Ident:
			v, ok := pass.TypesInfo.Uses[n].(*types.Var)
			if !ok || v.IsField() || seen[v] || v.Parent() == pass.Pkg.Scope() {
				return true
			}
			if v.Pos() >= lit.Pos() && v.Pos() < lit.End() {
				return true
			}
			if kind, ok := rootType(v.Type()); ok && kind != "Rooted" {
				seen[v] = true
				out = append(out, capture{kind: kind, name: v.Name()})
			}
		}
		return true
	})
	return out
}
