package indices

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"cmrset-tools/scene"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

var ErrBadExpression = errors.New("bad band expression")

var (
	assignmentRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)
	bandRefRe    = regexp.MustCompile(`\bb\(\s*["']([^"']+)["']\s*\)`)
)

// BandExpression is one parsed "NAME = expression" statement.
type BandExpression struct {
	Output  string
	Source  string
	refs    []string
	program *vm.Program
}

// compileEnv declares the helpers; band identifiers are resolved per image.
var compileEnv = map[string]any{
	"b":    func(string) float64 { return 0 },
	"exp":  math.Exp,
	"log":  math.Log,
	"sqrt": math.Sqrt,
}

// ParseExpression splits a statement such as `RMI = b("RMI2") - b("RMI")`.
// Inside the expression b("name") reads a band, bare band names may be used
// as identifiers, ** is power, and exp, log and sqrt are available.
func ParseExpression(statement string) (BandExpression, error) {
	m := assignmentRe.FindStringSubmatch(statement)
	if m == nil {
		return BandExpression{}, fmt.Errorf("%w: %q has no NAME = prefix", ErrBadExpression, statement)
	}
	e := BandExpression{Output: m[1], Source: strings.TrimSpace(m[2])}
	for _, ref := range bandRefRe.FindAllStringSubmatch(e.Source, -1) {
		e.refs = append(e.refs, ref[1])
	}
	if _, err := parser.Parse(e.Source); err != nil {
		return BandExpression{}, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}
	program, err := expr.Compile(e.Source, expr.Env(compileEnv), expr.AllowUndefinedVariables(), expr.AsFloat64())
	if err != nil {
		return BandExpression{}, fmt.Errorf("%w: %s: %v", ErrBadExpression, e.Output, err)
	}
	e.program = program
	return e, nil
}

func (e BandExpression) evaluate(img *scene.Image) ([]float64, error) {
	for _, ref := range e.refs {
		if !img.HasBand(ref) {
			return nil, fmt.Errorf("%s: %w: %q", e.Output, scene.ErrBandNotFound, ref)
		}
	}

	bands := img.Bands()
	var p int
	env := map[string]any{
		"b": func(name string) float64 {
			data, err := img.Band(name)
			if err != nil {
				return math.NaN()
			}
			return data[p]
		},
		"exp":  math.Exp,
		"log":  math.Log,
		"sqrt": math.Sqrt,
	}

	var machine vm.VM
	data := make([]float64, img.Len())
	for p = range data {
		for _, b := range bands {
			if b.Name == "b" || b.Name == "exp" || b.Name == "log" || b.Name == "sqrt" {
				continue
			}
			env[b.Name] = b.Data[p]
		}
		res, err := machine.Run(e.program, env)
		if err != nil {
			return nil, fmt.Errorf("%s at pixel %d: %w", e.Output, p, err)
		}
		v, ok := res.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s evaluated to %T", ErrBadExpression, e.Output, res)
		}
		data[p] = v
	}
	return data, nil
}

// Transform parses statements and returns a function producing one band per
// statement. Statements are evaluated against the input image only.
func Transform(statements []string, opts Options) (scene.MapFunc, error) {
	exprs := make([]BandExpression, len(statements))
	for i, s := range statements {
		e, err := ParseExpression(s)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}

	return func(img *scene.Image) (*scene.Image, error) {
		out := scene.NewLike(img)
		if opts.IncludeOrigin {
			out = img.Clone()
		}
		for _, e := range exprs {
			data, err := e.evaluate(img)
			if err != nil {
				return nil, err
			}
			if err := out.SetBand(e.Output, data); err != nil {
				return nil, err
			}
		}
		if opts.Func != nil {
			return opts.Func(out)
		}
		return out, nil
	}, nil
}
