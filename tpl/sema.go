package tpl

import (
	"fmt"
)

// Semantic check of a parsed program. The generated program is handed to a
// compiler with no further validation from our side, so the check mirrors
// what that compiler requires:
//
// 1) every declaration name is unique
// 2) types and functions are declared textually before they are referenced
// 3) locals are declared before use, field access on a known struct names an
//    existing field
// 4) builtins exist and are called with the right number of arguments
// 5) the entry point is declared last with the expected signature

const EntryName = "main"

// Builtins lists the runtime intrinsics the generated code may call, with
// their arity.
var Builtins = map[string]int{
	"execCtxStartResourceTracker": 1,
	"execCtxEndResourceTracker":   2,
	"execCtxGetMem":               1,
	"stringToSql":                 1,
	"sizeOf":                      1,
	"ptrCast":                     2,
	"sorterInit":                  4,
	"sorterInsert":                1,
	"sorterSort":                  1,
	"sorterFree":                  1,
	"sorterIterInit":              2,
	"sorterIterHasNext":           1,
	"sorterIterNext":              1,
	"sorterIterGetRow":            1,
	"sorterIterClose":             1,
	"tableIterInitBind":           4,
	"tableIterAdvance":            1,
	"tableIterGetPCI":             1,
	"tableIterClose":              1,
	"pciHasNext":                  1,
	"pciAdvance":                  1,
	"pciGetInt":                   2,
}

// PrimitiveTypes are known to the compiler without a declaration.
var PrimitiveTypes = map[string]bool{
	"Integer":                  true,
	"int32":                    true,
	"uint32":                   true,
	"int64":                    true,
	"bool":                     true,
	"Sorter":                   true,
	"SorterIterator":           true,
	"TableVectorIterator":      true,
	"ProjectedColumnsIterator": true,
	"ExecutionContext":         true,
	"MemoryPool":               true,
}

type semaScope struct {
	vars   map[string]*Type
	parent *semaScope
}

func (self *semaScope) lookup(n string) (*Type, bool) {
	for s := self; s != nil; s = s.parent {
		if t, ok := s.vars[n]; ok {
			return t, true
		}
	}
	return nil, false
}

type sema struct {
	prog    *Program
	structs map[string]*StructDecl
	funs    map[string]*FunDecl
	fun     *FunDecl // function being checked
	scope   *semaScope
}

func Check(prog *Program) error {
	s := &sema{
		prog:    prog,
		structs: make(map[string]*StructDecl),
		funs:    make(map[string]*FunDecl),
	}
	return s.check()
}

func (self *sema) errf(
	d Decl,
	format string,
	args ...interface{},
) error {
	return fmt.Errorf("%s: %s", d.DeclName(), fmt.Sprintf(format, args...))
}

func (self *sema) check() error {
	seen := make(map[string]bool)

	for _, d := range self.prog.Decls {
		if seen[d.DeclName()] {
			return self.errf(d, "declared more than once")
		}
		if PrimitiveTypes[d.DeclName()] {
			return self.errf(d, "shadows a primitive type")
		}
		seen[d.DeclName()] = true

		switch x := d.(type) {
		case *StructDecl:
			if err := self.checkStruct(x); err != nil {
				return err
			}
			self.structs[x.Name] = x

		case *FunDecl:
			// functions are visible to themselves only after the body is checked,
			// recursion is not something the generator ever produces
			if err := self.checkFun(x); err != nil {
				return err
			}
			self.funs[x.Name] = x
		}
	}

	return self.checkEntry()
}

func (self *sema) checkEntry() error {
	if len(self.prog.Decls) == 0 {
		return fmt.Errorf("empty program")
	}
	last := self.prog.Decls[len(self.prog.Decls)-1]
	entry, ok := last.(*FunDecl)
	if !ok || entry.Name != EntryName {
		return fmt.Errorf("entry point %s must be the last declaration", EntryName)
	}
	if len(entry.Params) != 1 || entry.Params[0].Ty.String() != "*ExecutionContext" {
		return self.errf(entry, "entry point must take a single *ExecutionContext")
	}
	if entry.Ret == nil || entry.Ret.String() != "int32" {
		return self.errf(entry, "entry point must return int32")
	}
	return nil
}

func (self *sema) checkType(
	d Decl,
	t *Type,
) error {
	if t == nil {
		return nil
	}
	n := t.BaseName()
	if PrimitiveTypes[n] {
		return nil
	}
	if _, ok := self.structs[n]; !ok {
		return self.errf(d, "type %s is used before its declaration", n)
	}
	return nil
}

func (self *sema) checkStruct(x *StructDecl) error {
	fields := make(map[string]bool)
	for _, f := range x.Fields {
		if fields[f.Name] {
			return self.errf(x, "field %s declared more than once", f.Name)
		}
		fields[f.Name] = true
		if err := self.checkType(x, f.Ty); err != nil {
			return err
		}
	}
	return nil
}

func (self *sema) push() {
	self.scope = &semaScope{
		vars:   make(map[string]*Type),
		parent: self.scope,
	}
}

func (self *sema) pop() {
	self.scope = self.scope.parent
}

func (self *sema) define(n string, t *Type) error {
	if _, ok := self.scope.vars[n]; ok {
		return self.errf(self.fun, "%s redeclared in the same block", n)
	}
	self.scope.vars[n] = t
	return nil
}

func (self *sema) checkFun(x *FunDecl) error {
	self.fun = x
	self.scope = nil
	self.push()
	defer self.pop()

	for _, p := range x.Params {
		if err := self.checkType(x, p.Ty); err != nil {
			return err
		}
		if err := self.define(p.Name, p.Ty); err != nil {
			return err
		}
	}
	if err := self.checkType(x, x.Ret); err != nil {
		return err
	}
	return self.checkBlock(x.Body)
}

func (self *sema) checkBlock(body []Stmt) error {
	self.push()
	defer self.pop()
	for _, s := range body {
		if err := self.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (self *sema) checkStmt(s Stmt) error {
	switch x := s.(type) {
	case *VarStmt:
		if err := self.checkType(self.fun, x.Ty); err != nil {
			return err
		}
		ty := x.Ty
		if x.Init != nil {
			if err := self.checkExpr(x.Init); err != nil {
				return err
			}
			if ty == nil {
				ty = self.typeOf(x.Init)
			}
		}
		return self.define(x.Name, ty)

	case *AssignStmt:
		switch x.L.(type) {
		case *Ref, *Dot, *Index:
		default:
			return self.errf(self.fun, "cannot assign to %s", x.L.CInfo().Snippet)
		}
		if err := self.checkExpr(x.L); err != nil {
			return err
		}
		return self.checkExpr(x.R)

	case *ExprStmt:
		return self.checkExpr(x.X)

	case *IfStmt:
		if err := self.checkExpr(x.Cond); err != nil {
			return err
		}
		if err := self.checkBlock(x.Then); err != nil {
			return err
		}
		return self.checkBlock(x.Else)

	case *ForStmt:
		self.push()
		defer self.pop()
		if x.Init != nil {
			if err := self.checkStmt(x.Init); err != nil {
				return err
			}
		}
		if x.Cond != nil {
			if err := self.checkExpr(x.Cond); err != nil {
				return err
			}
		}
		if x.Post != nil {
			if err := self.checkStmt(x.Post); err != nil {
				return err
			}
		}
		return self.checkBlock(x.Body)

	case *ReturnStmt:
		if x.X == nil {
			if self.fun.Ret != nil {
				return self.errf(self.fun, "missing return value")
			}
			return nil
		}
		if self.fun.Ret == nil {
			return self.errf(self.fun, "returns a value but is declared -> nil")
		}
		return self.checkExpr(x.X)
	}
	return nil
}

func (self *sema) checkExpr(e Expr) error {
	switch x := e.(type) {
	case *Const:
		return nil

	case *Ref:
		if _, ok := self.scope.lookup(x.Name); ok {
			return nil
		}
		if _, ok := self.funs[x.Name]; ok {
			return nil
		}
		return self.errf(self.fun, "%s is used before its declaration", x.Name)

	case *Unary:
		return self.checkExpr(x.Operand)

	case *Binary:
		if err := self.checkExpr(x.L); err != nil {
			return err
		}
		return self.checkExpr(x.R)

	case *Call:
		f, ok := self.funs[x.Name]
		if !ok {
			return self.errf(self.fun, "calls %s before its declaration", x.Name)
		}
		if len(f.Params) != len(x.Args) {
			return self.errf(self.fun, "calls %s with %d arguments, expect %d", x.Name, len(x.Args), len(f.Params))
		}
		for _, a := range x.Args {
			if err := self.checkExpr(a); err != nil {
				return err
			}
		}
		return nil

	case *Builtin:
		arity, ok := Builtins[x.Name]
		if !ok {
			return self.errf(self.fun, "unknown builtin @%s", x.Name)
		}
		if arity != len(x.Args) {
			return self.errf(self.fun, "@%s takes %d arguments, got %d", x.Name, arity, len(x.Args))
		}
		for _, a := range x.Args {
			if err := self.checkExpr(a); err != nil {
				return err
			}
		}
		return nil

	case *Dot:
		if err := self.checkExpr(x.X); err != nil {
			return err
		}
		if st := self.structOf(self.typeOf(x.X)); st != nil {
			if f, _ := st.Field(x.Field); f == nil {
				return self.errf(self.fun, "struct %s has no field %s", st.Name, x.Field)
			}
		}
		return nil

	case *Index:
		if err := self.checkExpr(x.X); err != nil {
			return err
		}
		return self.checkExpr(x.Index)

	case *TypeExpr:
		return self.checkType(self.fun, x.Ty)
	}
	return nil
}

// structOf returns the struct a value of type t (or pointer to it) refers to.
func (self *sema) structOf(t *Type) *StructDecl {
	for t != nil && t.Kind == TypePtr {
		t = t.Elem
	}
	if t == nil || t.Kind != TypeName {
		return nil
	}
	return self.structs[t.Name]
}

// typeOf is a best effort static type, nil when unknown.
func (self *sema) typeOf(e Expr) *Type {
	switch x := e.(type) {
	case *Ref:
		t, _ := self.scope.lookup(x.Name)
		return t
	case *Unary:
		if x.Op == TkAddr {
			if t := self.typeOf(x.Operand); t != nil {
				return &Type{Kind: TypePtr, Elem: t}
			}
		}
		return nil
	case *Dot:
		if st := self.structOf(self.typeOf(x.X)); st != nil {
			if f, _ := st.Field(x.Field); f != nil {
				return f.Ty
			}
		}
		return nil
	case *Index:
		if t := self.typeOf(x.X); t != nil && t.Kind == TypeArray {
			return t.Elem
		}
		return nil
	case *Builtin:
		if x.Name == "ptrCast" && len(x.Args) == 2 {
			if te, ok := x.Args[0].(*TypeExpr); ok {
				return te.Ty
			}
		}
		return nil
	case *Call:
		if f, ok := self.funs[x.Name]; ok {
			return f.Ret
		}
		return nil
	}
	return nil
}
