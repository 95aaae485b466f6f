// Package engineclock provides a linter for packages whose notion of "now"
// must be injectable.
//
// The lifecycle engine and the scheduler decide week boundaries from a clock
// passed in through options, so tests and catch-up runs can move time. A stray
// time.Now() call bypasses that clock. The analyzer allows time.Now() only
// inside a clock literal, a func literal with no parameters returning a single
// time.Time, and there it must be followed by .UTC() because stored week
// boundaries are UTC.
//
//	now: func() time.Time { return time.Now().UTC() } // ok
//	deadline := time.Now().Add(d)                      // reported
//
// //nolint and //nolint:engineclock comments suppress a report.
package engineclock

import (
	"go/ast"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer reports time.Now() calls that bypass an injected clock.
var Analyzer = &analysis.Analyzer{
	Name: "engineclock",
	Doc:  "checks that time.Now() is only read through a UTC clock literal",
	Run:  run,
}

const (
	msgOutsideClock = "time.Now() bypasses the injected clock; read time through a clock func"
	msgNotUTC       = "time.Now() in a clock func should be followed by .UTC()"
)

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		withUTC := make(map[*ast.CallExpr]bool)
		ast.Inspect(file, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok || sel.Sel.Name != "UTC" {
				return true
			}
			if call, ok := sel.X.(*ast.CallExpr); ok && isTimeNow(call) {
				withUTC[call] = true
			}
			return true
		})

		var clocks []*ast.FuncLit
		ast.Inspect(file, func(n ast.Node) bool {
			if n == nil {
				return true
			}
			if lit, ok := n.(*ast.FuncLit); ok && isClockLiteral(lit) {
				clocks = append(clocks, lit)
			}

			call, ok := n.(*ast.CallExpr)
			if !ok || !isTimeNow(call) {
				return true
			}
			if hasNolintComment(pass, file, call) {
				return true
			}

			switch {
			case !insideAny(call, clocks):
				pass.Reportf(call.Pos(), msgOutsideClock)
			case !withUTC[call]:
				pass.Reportf(call.Pos(), msgNotUTC)
			}
			return true
		})
	}
	return nil, nil
}

// isTimeNow reports whether call is time.Now().
func isTimeNow(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Now" {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == "time"
}

// isClockLiteral matches func() time.Time { ... }.
func isClockLiteral(lit *ast.FuncLit) bool {
	typ := lit.Type
	if typ.Params != nil && len(typ.Params.List) > 0 {
		return false
	}
	if typ.Results == nil || len(typ.Results.List) != 1 || len(typ.Results.List[0].Names) > 1 {
		return false
	}
	sel, ok := typ.Results.List[0].Type.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Time" {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == "time"
}

// insideAny relies on ast.Inspect visiting parents before children, so every
// enclosing literal is already in clocks.
func insideAny(n ast.Node, clocks []*ast.FuncLit) bool {
	for _, lit := range clocks {
		if lit.Pos() <= n.Pos() && n.End() <= lit.End() {
			return true
		}
	}
	return false
}

// hasNolintComment checks the call's line and the line before it.
func hasNolintComment(pass *analysis.Pass, file *ast.File, call *ast.CallExpr) bool {
	line := pass.Fset.Position(call.Pos()).Line

	for _, cg := range file.Comments {
		for _, comment := range cg.List {
			commentLine := pass.Fset.Position(comment.Pos()).Line
			if commentLine != line && commentLine != line-1 {
				continue
			}
			text := comment.Text
			if !strings.Contains(text, "nolint") {
				continue
			}
			if !strings.Contains(text, ":") || strings.Contains(text, "engineclock") {
				return true
			}
		}
	}
	return false
}
