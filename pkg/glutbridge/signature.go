package glutbridge

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is the C type of a parameter or a result.
type Kind uint8

const (
	KindVoid = Kind(iota)
	KindInt
	KindUint
	KindString
	KindIntPtr
	KindStrings
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindUint:
		return "unsigned int"
	case KindString:
		return "const char*"
	case KindIntPtr:
		return "int*"
	case KindStrings:
		return "char**"
	case KindCallback:
		return "void (*)()"
	default:
		return fmt.Sprintf("<unknown_kind_%d>", uint8(k))
	}
}

// goKind returns the Go kind a callback parameter of this C kind must have.
func (k Kind) goKind() reflect.Kind {
	switch k {
	case KindInt:
		return reflect.Int32
	case KindUint:
		return reflect.Uint32
	case KindString, KindIntPtr, KindStrings, KindCallback:
		return reflect.Uintptr
	default:
		return reflect.Invalid
	}
}

// Signature is the C signature of a windowing entry point.
type Signature struct {
	Result Kind
	Params []Kind
}

func sig(result Kind, params ...Kind) Signature {
	return Signature{Result: result, Params: params}
}

func (s Signature) String() string {
	params := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		params = append(params, p.String())
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	return fmt.Sprintf("%s(%s)", s.Result, strings.Join(params, ", "))
}

// Check verifies that fn is a Go function which can be exported as a
// C function of this signature.
func (s Signature) Check(fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("expected a function, got %T", fn)
	}
	if t.NumIn() != len(s.Params) {
		return fmt.Errorf("expected %d parameters for '%s', got %d", len(s.Params), s, t.NumIn())
	}
	for idx, p := range s.Params {
		if got, want := t.In(idx).Kind(), p.goKind(); got != want {
			return fmt.Errorf("parameter #%d of '%s': expected Go kind %s, got %s", idx, s, want, got)
		}
	}
	switch {
	case s.Result == KindVoid && t.NumOut() != 0:
		return fmt.Errorf("expected no results for '%s', got %d", s, t.NumOut())
	case s.Result != KindVoid && t.NumOut() != 1:
		return fmt.Errorf("expected exactly one result for '%s', got %d", s, t.NumOut())
	case s.Result != KindVoid:
		if got, want := t.Out(0).Kind(), s.Result.goKind(); got != want {
			return fmt.Errorf("result of '%s': expected Go kind %s, got %s", s, want, got)
		}
	}
	return nil
}
