// Package policy evaluates the small boolean/arithmetic expression language
// a policy document uses to turn query results into a pass/fail verdict.
// Grounded on original_source/hipcheck/src/policy_exprs (the Rust
// implementation's expression AST and evaluator, distinct from the
// surrounding KDL policy-file format which stays external per spec.md §1).
package policy

import "fmt"

// Expr is the policy expression AST: a literal, a reference to a query
// result, or a function call over nested expressions.
type Expr interface {
	isExpr()
}

// Lit is a literal boolean, number, or string.
type Lit struct {
	Value interface{} // bool, float64, or string
}

// Ident references a named query result by the key the caller supplied
// when evaluating the expression (see Evaluate's results map).
type Ident struct {
	Name string
}

// Call is a function application: and/or/not/gt/lt/gte/lte/eq/neq/add/sub/mul/divz.
type Call struct {
	Func string
	Args []Expr
}

func (Lit) isExpr()   {}
func (Ident) isExpr() {}
func (Call) isExpr()  {}

func (l Lit) String() string { return fmt.Sprintf("%v", l.Value) }
func (i Ident) String() string { return i.Name }
func (c Call) String() string {
	s := "(" + c.Func
	for _, a := range c.Args {
		s += " " + fmt.Sprint(a)
	}
	return s + ")"
}
