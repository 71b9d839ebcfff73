package quiver

import "github.com/vegasq/quiver/expr"

// Col references the column called name.
func Col(name string) expr.Expr { return expr.Col(name) }

// Lit is a literal value. Its type is inferred from v; nil is a NULL of
// type Null.
func Lit(v any) expr.Expr { return expr.Lit(v) }
