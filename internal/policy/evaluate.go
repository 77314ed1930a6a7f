package policy

import "fmt"

// Value is the result of evaluating an Expr: a bool, float64, or string.
type Value interface{}

// Verdict is the outcome of evaluating a policy expression against a set of
// query results: whether it passed, plus the sub-expressions (rendered as
// strings) that evaluated to false, for report rendering.
type Verdict struct {
	Pass   bool
	Failed []string
}

// Evaluate walks expr, resolving Ident nodes against results (keyed by the
// identifier name, typically a query target string), and returns the
// top-level pass/fail verdict plus which boolean sub-expressions failed.
func Evaluate(expr Expr, results map[string]Value) (Verdict, error) {
	v, failed, err := eval(expr, results)
	if err != nil {
		return Verdict{}, err
	}
	b, ok := v.(bool)
	if !ok {
		return Verdict{}, fmt.Errorf("policy: top-level expression did not evaluate to a boolean (got %T)", v)
	}
	return Verdict{Pass: b, Failed: failed}, nil
}

func eval(expr Expr, results map[string]Value) (Value, []string, error) {
	switch e := expr.(type) {
	case Lit:
		return e.Value, nil, nil
	case Ident:
		v, ok := results[e.Name]
		if !ok {
			return nil, nil, fmt.Errorf("policy: unresolved identifier %q", e.Name)
		}
		return v, nil, nil
	case Call:
		return evalCall(e, results)
	default:
		return nil, nil, fmt.Errorf("policy: unknown expression node %T", expr)
	}
}

func evalCall(c Call, results map[string]Value) (Value, []string, error) {
	switch c.Func {
	case "and", "or":
		return evalBoolCombinator(c, results)
	case "not":
		if len(c.Args) != 1 {
			return nil, nil, fmt.Errorf("policy: %q takes exactly one argument", c.Func)
		}
		v, failed, err := eval(c.Args[0], results)
		if err != nil {
			return nil, nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, nil, err
		}
		result := !b
		if !result {
			failed = append(failed, c.String())
		}
		return result, failed, nil
	case "gt", "lt", "gte", "lte", "eq", "neq":
		return evalComparison(c, results)
	case "add", "sub", "mul", "divz":
		v, err := evalArith(c, results)
		return v, nil, err
	default:
		return nil, nil, fmt.Errorf("policy: unknown function %q", c.Func)
	}
}

func evalBoolCombinator(c Call, results map[string]Value) (Value, []string, error) {
	if len(c.Args) == 0 {
		return nil, nil, fmt.Errorf("policy: %q takes at least one argument", c.Func)
	}
	var failed []string
	result := c.Func == "and"
	for _, arg := range c.Args {
		v, sub, err := eval(arg, results)
		if err != nil {
			return nil, nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, nil, err
		}
		failed = append(failed, sub...)
		if c.Func == "and" {
			result = result && b
		} else {
			result = result || b
		}
		if !b {
			failed = append(failed, exprString(arg))
		}
	}
	return result, failed, nil
}

func evalComparison(c Call, results map[string]Value) (Value, []string, error) {
	if len(c.Args) != 2 {
		return nil, nil, fmt.Errorf("policy: %q takes exactly two arguments", c.Func)
	}
	lv, _, err := eval(c.Args[0], results)
	if err != nil {
		return nil, nil, err
	}
	rv, _, err := eval(c.Args[1], results)
	if err != nil {
		return nil, nil, err
	}

	var result bool
	switch c.Func {
	case "eq":
		result = lv == rv
	case "neq":
		result = lv != rv
	default:
		lf, err := asNumber(lv)
		if err != nil {
			return nil, nil, err
		}
		rf, err := asNumber(rv)
		if err != nil {
			return nil, nil, err
		}
		switch c.Func {
		case "gt":
			result = lf > rf
		case "lt":
			result = lf < rf
		case "gte":
			result = lf >= rf
		case "lte":
			result = lf <= rf
		}
	}

	var failed []string
	if !result {
		failed = append(failed, c.String())
	}
	return result, failed, nil
}

func evalArith(c Call, results map[string]Value) (Value, error) {
	if len(c.Args) != 2 {
		return nil, fmt.Errorf("policy: %q takes exactly two arguments", c.Func)
	}
	lv, _, err := eval(c.Args[0], results)
	if err != nil {
		return nil, err
	}
	rv, _, err := eval(c.Args[1], results)
	if err != nil {
		return nil, err
	}
	lf, err := asNumber(lv)
	if err != nil {
		return nil, err
	}
	rf, err := asNumber(rv)
	if err != nil {
		return nil, err
	}
	switch c.Func {
	case "add":
		return lf + rf, nil
	case "sub":
		return lf - rf, nil
	case "mul":
		return lf * rf, nil
	case "divz":
		// divz: divide-or-zero, the original's safe division that returns 0
		// instead of erroring when the divisor is zero.
		if rf == 0 {
			return float64(0), nil
		}
		return lf / rf, nil
	default:
		return nil, fmt.Errorf("policy: unknown arithmetic function %q", c.Func)
	}
}

func asBool(v Value) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("policy: expected boolean, got %T", v)
	}
	return b, nil
}

func asNumber(v Value) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("policy: expected number, got %T", v)
	}
	return f, nil
}

func exprString(e Expr) string {
	type stringer interface{ String() string }
	if s, ok := e.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", e)
}
