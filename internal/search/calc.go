package search

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// CalcScore places a calculator result above every other result.
const CalcScore = 5000.0

var errNotNumber = errors.New("result is not a number")

var calcConsts = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
}

var calcOptions = []expr.Option{
	expr.Env(calcConsts),
	unary("sqrt", math.Sqrt),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("ln", math.Log),
	unary("log", math.Log10),
	expr.Function("pow", func(params ...any) (any, error) {
		args, err := floats("pow", params, 2)
		if err != nil {
			return nil, err
		}
		return math.Pow(args[0], args[1]), nil
	}),
}

// unary exposes f to expressions. Integer arguments are widened.
func unary(name string, f func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		args, err := floats(name, params, 1)
		if err != nil {
			return nil, err
		}
		return f(args[0]), nil
	})
}

func floats(name string, params []any, want int) ([]float64, error) {
	if len(params) != want {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", name, want, len(params))
	}
	out := make([]float64, want)
	for i, p := range params {
		f, err := toFloat(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("%v: %w", v, errNotNumber)
}

// evaluate computes an arithmetic expression. A blank expression is 0.
func evaluate(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "0", nil
	}
	prog, err := expr.Compile(src, calcOptions...)
	if err != nil {
		return "", err
	}
	out, err := expr.Run(prog, calcConsts)
	if err != nil {
		return "", err
	}

	switch v := out.(type) {
	case int:
		return strconv.Itoa(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", errNotNumber
		}
		return strconv.FormatFloat(v, 'g', 12, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", errNotNumber
}

// calculate answers an "=" query. An expression that does not evaluate
// yields no result.
func calculate(q string) []scored {
	src := strings.TrimPrefix(q, "=")
	value, err := evaluate(src)
	if err != nil {
		searchLog.Debug("calc_failed", slog.String("expr", src), slog.String("error", err.Error()))
		return nil
	}
	r := Result{
		Kind:        KindCalc,
		Identity:    "=" + strings.TrimSpace(src),
		DisplayName: value,
		Description: strings.TrimSpace(src),
		IconName:    "accessories-calculator",
		Score:       CalcScore,
	}
	return []scored{{score: r.Score, result: r}}
}
