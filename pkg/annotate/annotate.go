// Package annotate rewrites Go source to insert govctl control-point
// calls before atomic operations, playing the role of the
// "host-language binding macro" spec.md §1 treats as environmental
// wiring around the core controller. It is adapted from the teacher
// repository's whole-program race-detection instrumenter, trimmed to
// the single concern the core actually needs: a call immediately before
// every sync/atomic operation, not before every memory read or write.
package annotate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

var errInvalidImport = errors.New("annotate: malformed import spec")

// Config controls how control-point calls are inserted.
type Config struct {
	// BaseGovctlAddress is the import path of the govctl package.
	BaseGovctlAddress string

	// GovctlAlias is the import alias used for the govctl package. If
	// empty, a mangled alias is generated from BaseGovctlAddress so the
	// rewrite can never collide with a user import of the same name.
	GovctlAlias string

	// HandleExpr names the *govctl.Handle expression in scope at every
	// call site that should receive a control-point call — typically a
	// parameter or package-level variable the caller already threads
	// through its goroutines. Defaults to "govHandle".
	HandleExpr string
}

// DefaultConfig returns the default rewrite configuration.
func DefaultConfig() *Config {
	base := "github.com/lfguard/govctl/pkg/govctl"
	return &Config{
		BaseGovctlAddress: base,
		GovctlAlias:       mangledAlias(base),
		HandleExpr:        "govHandle",
	}
}

func mangledAlias(importPath string) string {
	hash := sha256.Sum256([]byte(importPath))
	return "__govctl_" + hex.EncodeToString(hash[:8])
}

// Annotator rewrites parsed Go source, inserting ControlPoint calls
// ahead of every expression or assignment statement in a statement list
// that calls into sync/atomic.
type Annotator struct {
	config      *Config
	atomicAlias string // the local import name bound to "sync/atomic"
	inserted    bool
}

// NewAnnotator creates an Annotator with the given config, or
// DefaultConfig if cfg is nil.
func NewAnnotator(cfg *Config) *Annotator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.GovctlAlias == "" {
		withAlias := *cfg
		withAlias.GovctlAlias = mangledAlias(withAlias.BaseGovctlAddress)
		cfg = &withAlias
	}
	return &Annotator{config: cfg}
}

// WasAnnotated reports whether the last AnnotateFile/AnnotateAST call
// inserted any control-point calls.
func (a *Annotator) WasAnnotated() bool {
	return a.inserted
}

// AnnotateFile parses and annotates a single source file. src may be
// nil (read filename from disk), a string, or a []byte, matching
// go/parser.ParseFile's src parameter.
func (a *Annotator) AnnotateFile(fset *token.FileSet, filename string, src any) (*ast.File, error) {
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	return a.AnnotateAST(fset, f)
}

// AnnotateAST annotates an already-parsed file in place.
func (a *Annotator) AnnotateAST(fset *token.FileSet, f *ast.File) (*ast.File, error) {
	a.inserted = false
	a.atomicAlias = importedAlias(f, "sync/atomic")
	if a.atomicAlias == "" {
		// Nothing to annotate: the file doesn't even import sync/atomic.
		return f, nil
	}

	// Restricted to ExprStmt and AssignStmt (atomic.Add(...) as a bare
	// call, or x := atomic.Load(...)); atomic calls inside other
	// statement kinds (return, if/for conditions, var declarations) get
	// no control point. Both are leaf statements with no nested statement
	// body, so ast.Inspect below never crosses into a sibling block.
	// astutil.Cursor can only InsertBefore a node that is itself an
	// element of a statement list, so a statement in a single-statement
	// slot (an if/for/switch init or a for post) is skipped
	// (c.Index() < 0) rather than annotated.
	astutil.Apply(f, nil, func(c *astutil.Cursor) bool {
		var touches bool
		switch n := c.Node().(type) {
		case *ast.ExprStmt:
			touches = a.statementTouchesAtomic(n)
		case *ast.AssignStmt:
			touches = a.statementTouchesAtomic(n)
		default:
			return true
		}
		if touches && c.Index() >= 0 {
			c.InsertBefore(a.controlPointStmt())
			a.inserted = true
		}
		return true
	})

	if a.inserted {
		astutil.AddNamedImport(fset, f, a.config.GovctlAlias, a.config.BaseGovctlAddress)
	}
	return f, nil
}

// statementTouchesAtomic reports whether stmt directly contains a call
// into the aliased sync/atomic package. It does not recurse into nested
// function literals, mirroring the teacher's per-statement granularity.
func (a *Annotator) statementTouchesAtomic(stmt ast.Stmt) bool {
	found := false
	ast.Inspect(stmt, func(n ast.Node) bool {
		if found {
			return false
		}
		if _, isLit := n.(*ast.FuncLit); isLit && n != stmt {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		pkgIdent, ok := sel.X.(*ast.Ident)
		if ok && pkgIdent.Name == a.atomicAlias {
			found = true
			return false
		}
		return true
	})
	return found
}

// controlPointStmt builds `<handle>.ControlPoint()` as a plain expression
// statement, discarding the returned error the way the teacher's
// instrumenter discards its hook calls' (nonexistent) return values —
// the annotate tool only inserts the call; an annotated program that
// wants the error must handle it itself.
func (a *Annotator) controlPointStmt() ast.Stmt {
	call := &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   &ast.Ident{Name: a.config.HandleExpr},
			Sel: &ast.Ident{Name: "ControlPoint"},
		},
	}
	return &ast.ExprStmt{X: call}
}

// importedAlias returns the local name bound to importPath in f, or ""
// if f does not import it.
func importedAlias(f *ast.File, importPath string) string {
	for _, imp := range f.Imports {
		path, err := parseImportPath(imp)
		if err != nil || path != importPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		// Default alias is the last path component.
		for i := len(path) - 1; i >= 0; i-- {
			if path[i] == '/' {
				return path[i+1:]
			}
		}
		return path
	}
	return ""
}

func parseImportPath(imp *ast.ImportSpec) (string, error) {
	// imp.Path.Value is a quoted string literal.
	if len(imp.Path.Value) < 2 {
		return "", errInvalidImport
	}
	return imp.Path.Value[1 : len(imp.Path.Value)-1], nil
}
