package templates

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Mul returns value*arg. Integers multiply as int64 and anything involving
// a float yields float64. Numeric strings are parsed first. A non-numeric
// operand or an overflowing product yields "" so that a bad value never
// breaks page rendering.
func Mul(value, arg any) any {
	a, ok := toNumber(value)
	if !ok {
		return ""
	}
	b, ok := toNumber(arg)
	if !ok {
		return ""
	}

	if a.isFloat || b.isFloat {
		p := a.float() * b.float()
		if math.IsInf(p, 0) || math.IsNaN(p) {
			return ""
		}
		return p
	}

	if a.i == 0 || b.i == 0 {
		return int64(0)
	}
	p := a.i * b.i
	if p/b.i != a.i || (a.i == -1 && b.i == math.MinInt64) || (b.i == -1 && a.i == math.MinInt64) {
		return ""
	}
	return p
}

type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func toNumber(v any) (number, bool) {
	if v == nil {
		return number{}, false
	}
	if pv, ok := v.(*pongo2.Value); ok {
		return toNumber(pv.Interface())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return number{f: float64(u), isFloat: true}, true
		}
		return number{i: int64(u)}, true
	case reflect.Float32, reflect.Float64:
		return number{f: rv.Float(), isFloat: true}, true
	case reflect.Bool:
		if rv.Bool() {
			return number{i: 1}, true
		}
		return number{}, true
	case reflect.String:
		return parseNumber(rv.String())
	}
	return number{}, false
}

func parseNumber(s string) (number, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return number{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: i}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return number{}, false
	}
	return number{f: f, isFloat: true}, true
}

func filterMul(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	var arg any
	if param != nil {
		arg = param.Interface()
	}
	return pongo2.AsValue(Mul(in.Interface(), arg)), nil
}
