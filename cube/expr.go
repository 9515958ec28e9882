package cube

import (
	"fmt"
	"math"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// exprFunctions are the unary/binary math functions available inside
// pixel expressions. Out-of-domain calls yield NaN through the math
// package, never an error.
var exprFunctions = map[string]goeval.ExpressionFunction{
	"sqrt":  exprFunc1(math.Sqrt),
	"abs":   exprFunc1(math.Abs),
	"exp":   exprFunc1(math.Exp),
	"log":   exprFunc1(math.Log),
	"log10": exprFunc1(math.Log10),
	"sin":   exprFunc1(math.Sin),
	"cos":   exprFunc1(math.Cos),
	"tan":   exprFunc1(math.Tan),
	"asin":  exprFunc1(math.Asin),
	"acos":  exprFunc1(math.Acos),
	"atan":  exprFunc1(math.Atan),
	"sinh":  exprFunc1(math.Sinh),
	"cosh":  exprFunc1(math.Cosh),
	"tanh":  exprFunc1(math.Tanh),
	"floor": exprFunc1(math.Floor),
	"ceil":  exprFunc1(math.Ceil),
	"round": exprFunc1(math.Round),
	"pow":   exprFunc2(math.Pow),
	"min":   exprFunc2(math.Min),
	"max":   exprFunc2(math.Max),
}

func exprFunc1(f func(float64) float64) goeval.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument is not numeric")
		}
		return f(v), nil
	}
}

func exprFunc2(f func(float64, float64) float64) goeval.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		a, ok1 := args[0].(float64)
		b, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("arguments are not numeric")
		}
		return f(a, b), nil
	}
}

// special per-pixel variables available besides the band names
var specialExprVars = map[string]bool{
	"ix": true, "iy": true, "it": true,
	"x": true, "y": true, "t": true,
	"left": true, "right": true, "top": true, "bottom": true,
}

// compiledExpr is one pixel expression compiled at construction time.
// Evaluation is per pixel on the chunk buffer, so compilation happens
// exactly once.
type compiledExpr struct {
	source string
	expr   *goeval.EvaluableExpression
	vars   []string
}

// compilePixelExpr parses a pixel expression over the given band names.
// The ^ operator is accepted as exponentiation.
func compilePixelExpr(source string, bands *BandCollection) (*compiledExpr, error) {
	translated := strings.Replace(source, "^", "**", -1)
	expr, err := goeval.NewEvaluableExpressionWithFunctions(translated, exprFunctions)
	if err != nil {
		return nil, fmt.Errorf("malformed expression %q: %v", source, err)
	}

	seen := map[string]bool{}
	var vars []string
	for _, token := range expr.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		name, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("expression %q: variable token %v is not a string", source, token.Value)
		}
		if !bands.Has(name) && !specialExprVars[name] {
			return nil, fmt.Errorf("expression %q references unknown variable %q", source, name)
		}
		if !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	}
	return &compiledExpr{source: source, expr: expr, vars: vars}, nil
}

// evalNumeric evaluates a compiled expression to a float64; errors and
// non-finite results become NaN.
func (e *compiledExpr) evalNumeric(params map[string]interface{}) float64 {
	res, err := e.expr.Evaluate(params)
	if err != nil {
		return nan
	}
	switch v := res.(type) {
	case float64:
		if math.IsInf(v, 0) {
			return nan
		}
		return v
	case float32:
		f := float64(v)
		if math.IsInf(f, 0) {
			return nan
		}
		return f
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return nan
	}
}

// evalPredicate evaluates a compiled expression as a boolean; errors and
// NaN results are false.
func (e *compiledExpr) evalPredicate(params map[string]interface{}) bool {
	res, err := e.expr.Evaluate(params)
	if err != nil {
		return false
	}
	switch v := res.(type) {
	case bool:
		return v
	case float64:
		return !math.IsNaN(v) && v != 0
	default:
		return false
	}
}

// exprContext binds the per-pixel variables of a chunk evaluation. The
// parameter map is reused across pixels; chunk reads on distinct ids
// never share a context.
type exprContext struct {
	params map[string]interface{}
	needs  map[string]bool
}

func newExprContext(exprs []*compiledExpr) *exprContext {
	ctx := &exprContext{
		params: map[string]interface{}{},
		needs:  map[string]bool{},
	}
	for _, e := range exprs {
		for _, v := range e.vars {
			ctx.needs[v] = true
		}
	}
	return ctx
}

func (ctx *exprContext) setIfNeeded(name string, v float64) {
	if ctx.needs[name] {
		ctx.params[name] = v
	}
}
