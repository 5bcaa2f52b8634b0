package vm

import (
	"fmt"

	"github.com/dianpeng/sortgen/tpl"
)

// Values of the interpreter:
//
//	int64, bool, string  scalars, every integer type is widened to int64
//	nil                  nil pointer or not yet initialized opaque object
//	*Cell                pointer, ie the result of '&x'
//	*Struct, *Array      aggregates, always held by reference
//	*FuncRef             function used as a value, ie a comparator
//	runtime objects      *Sorter, *SorterIter, *TableIter, *PCI, *ExecCtx ...
type Value interface{}

// Cell is an addressable slot, a variable, a field or an array element.
type Cell struct {
	V Value
}

type Struct struct {
	Decl   *tpl.StructDecl
	Fields []*Cell
}

func (self *Struct) Field(n string) (*Cell, bool) {
	_, idx := self.Decl.Field(n)
	if idx < 0 {
		return nil, false
	}
	return self.Fields[idx], true
}

type Array struct {
	Elems []*Cell
}

type FuncRef struct {
	Decl *tpl.FunDecl
}

func typeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case int64:
		return "int"
	case bool:
		return "bool"
	case string:
		return "string"
	case *Cell:
		return "pointer"
	case *Struct:
		return x.Decl.Name
	case *Array:
		return fmt.Sprintf("[%d]array", len(x.Elems))
	case *FuncRef:
		return "fun " + x.Decl.Name
	default:
		return fmt.Sprintf("%T", v)
	}
}

func asInt(v Value) (int64, error) {
	if i, ok := v.(int64); ok {
		return i, nil
	}
	return 0, fmt.Errorf("expect int, got %s", typeName(v))
}

func asBool(v Value) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	default:
		return false, fmt.Errorf("expect bool, got %s", typeName(v))
	}
}

func asPtr(v Value) (*Cell, error) {
	if c, ok := v.(*Cell); ok && c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("expect pointer, got %s", typeName(v))
}

// deref follows one level of pointer, field access and indexing see through
// pointers.
func deref(v Value) Value {
	if c, ok := v.(*Cell); ok && c != nil {
		return c.V
	}
	return v
}
