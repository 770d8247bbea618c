// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package main

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"log"
	"sort"
	"strconv"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

const (
	classDirective    = `//aspect:class`
	aspectPackagePath = `github.com/sqreen/go-aspect/aspect`
	aspectPackageName = `aspect`
	generatedHeader   = `// Code generated by aspectgen. DO NOT EDIT.`
)

type class struct {
	name    string
	methods []string
}

// generator collects the annotated types and the methods of the parsed files.
type generator struct {
	pkgName string
	classes []*class
	// Exported method names per receiver base type name.
	methods map[string][]string
}

// addFile parses the Go source file. `src` is passed to the parser and can
// be nil to read the file.
func (g *generator) addFile(filename string, src interface{}) error {
	file, err := decorator.ParseFile(token.NewFileSet(), filename, src, parser.ParseComments)
	if err != nil {
		return err
	}
	if g.pkgName == "" {
		g.pkgName = file.Name.Name
	} else if g.pkgName != file.Name.Name {
		return fmt.Errorf("file `%s`: unexpected package `%s` instead of `%s`", filename, file.Name.Name, g.pkgName)
	}
	if g.methods == nil {
		g.methods = make(map[string][]string)
	}

	for _, decl := range file.Decls {
		switch actual := decl.(type) {
		case *dst.GenDecl:
			if actual.Tok != token.TYPE {
				continue
			}
			// The directive of a single type declaration is attached to the
			// declaration, and to the type spec in a grouped declaration.
			declDirective := hasClassDirective(actual)
			for _, spec := range actual.Specs {
				typeSpec := spec.(*dst.TypeSpec)
				if !declDirective && !hasClassDirective(typeSpec) {
					continue
				}
				if _, isInterface := typeSpec.Type.(*dst.InterfaceType); isInterface {
					return fmt.Errorf("file `%s`: interface type `%s` cannot be a class", filename, typeSpec.Name.Name)
				}
				log.Printf("found class `%s`", typeSpec.Name.Name)
				g.classes = append(g.classes, &class{name: typeSpec.Name.Name})
			}

		case *dst.FuncDecl:
			if actual.Recv == nil || len(actual.Recv.List) == 0 || !ast.IsExported(actual.Name.Name) {
				continue
			}
			if name := receiverTypeName(actual.Recv.List[0].Type); name != "" {
				g.methods[name] = append(g.methods[name], actual.Name.Name)
			}
		}
	}
	return nil
}

func hasClassDirective(node dst.Node) bool {
	for _, c := range node.Decorations().Start.All() {
		if c == classDirective {
			return true
		}
	}
	return false
}

// receiverTypeName returns the base type name of a method receiver, such as
// `User` for `*User`.
func receiverTypeName(expr dst.Expr) string {
	for {
		switch actual := expr.(type) {
		case *dst.StarExpr:
			expr = actual.X
		case *dst.ParenExpr:
			expr = actual.X
		case *dst.Ident:
			return actual.Name
		default:
			return ""
		}
	}
}

// generate returns the generated file, nil when no class was found.
func (g *generator) generate() (*dst.File, error) {
	if len(g.classes) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(g.classes))
	for _, c := range g.classes {
		if _, exists := seen[c.name]; exists {
			return nil, fmt.Errorf("class `%s` annotated twice", c.name)
		}
		seen[c.name] = struct{}{}
		c.methods = append([]string(nil), g.methods[c.name]...)
		sort.Strings(c.methods)
	}

	file := &dst.File{
		Name: dst.NewIdent(g.pkgName),
		Decs: dst.FileDecorations{
			NodeDecs: dst.NodeDecs{
				Start: dst.Decorations{generatedHeader, "\n"},
			},
		},
	}
	addImport(file, aspectPackagePath)
	for _, c := range g.classes {
		if len(c.methods) == 0 {
			continue
		}
		file.Decls = append(file.Decls, newSelectorConstDecl(c))
	}
	file.Decls = append(file.Decls, newInitFuncDecl(g.classes))
	return file, nil
}

func addImport(file *dst.File, path string) {
	imp := &dst.ImportSpec{
		Path: &dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(path)},
	}
	file.Imports = append(file.Imports, imp)
	file.Decls = append(file.Decls, &dst.GenDecl{
		Tok:   token.IMPORT,
		Specs: []dst.Spec{imp},
	})
}

// selectorConstName returns the name of the selector constant of the method,
// such as `UserLogoutSelector`.
func selectorConstName(className, method string) string {
	return className + method + "Selector"
}

// Return the const declaration of the class selectors:
//
//	const (
//		UserLogoutSelector aspect.Selector = "Logout"
//	)
func newSelectorConstDecl(c *class) *dst.GenDecl {
	specs := make([]dst.Spec, 0, len(c.methods))
	for _, m := range c.methods {
		specs = append(specs, &dst.ValueSpec{
			Names:  []*dst.Ident{dst.NewIdent(selectorConstName(c.name, m))},
			Type:   newQualifiedIdent(aspectPackageName, "Selector"),
			Values: []dst.Expr{&dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(m)}},
		})
	}
	return &dst.GenDecl{
		Tok:    token.CONST,
		Lparen: true,
		Specs:  specs,
		Rparen: true,
		Decs: dst.GenDeclDecorations{
			NodeDecs: dst.NodeDecs{
				Before: dst.EmptyLine,
				Start:  dst.Decorations{fmt.Sprintf("// Selectors of class %s.", c.name)},
			},
		},
	}
}

// Return the init function registering the classes:
//
//	func init() {
//		if _, err := aspect.RegisterClass((*User)(nil)); err != nil {
//			panic(err)
//		}
//	}
func newInitFuncDecl(classes []*class) *dst.FuncDecl {
	samples := make([]dst.Expr, 0, len(classes))
	for _, c := range classes {
		samples = append(samples, &dst.CallExpr{
			Fun:  &dst.ParenExpr{X: &dst.StarExpr{X: dst.NewIdent(c.name)}},
			Args: []dst.Expr{dst.NewIdent("nil")},
		})
	}
	return &dst.FuncDecl{
		Name: dst.NewIdent("init"),
		Type: &dst.FuncType{Params: &dst.FieldList{}},
		Body: &dst.BlockStmt{
			List: []dst.Stmt{
				&dst.IfStmt{
					Init: &dst.AssignStmt{
						Lhs: []dst.Expr{dst.NewIdent("_"), dst.NewIdent("err")},
						Tok: token.DEFINE,
						Rhs: []dst.Expr{
							&dst.CallExpr{
								Fun:  newQualifiedIdent(aspectPackageName, "RegisterClass"),
								Args: samples,
							},
						},
					},
					Cond: &dst.BinaryExpr{X: dst.NewIdent("err"), Op: token.NEQ, Y: dst.NewIdent("nil")},
					Body: &dst.BlockStmt{
						List: []dst.Stmt{
							&dst.ExprStmt{
								X: &dst.CallExpr{Fun: dst.NewIdent("panic"), Args: []dst.Expr{dst.NewIdent("err")}},
							},
						},
					},
				},
			},
		},
		Decs: dst.FuncDeclDecorations{
			NodeDecs: dst.NodeDecs{Before: dst.EmptyLine},
		},
	}
}

// Return qualified identifier for `pkgName.ident`
func newQualifiedIdent(pkgName, ident string) dst.Expr {
	return &dst.SelectorExpr{X: dst.NewIdent(pkgName), Sel: dst.NewIdent(ident)}
}

func writeFile(file *dst.File, w io.Writer) error {
	fset, af, err := decorator.RestoreFile(file)
	if err != nil {
		return err
	}
	return format.Node(w, fset, af)
}
