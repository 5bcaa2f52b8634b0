package vm

import (
	"fmt"

	"github.com/dianpeng/sortgen/tpl"
)

const maxCallDepth = 256

const (
	ctrlNext = iota
	ctrlReturn
)

type scope struct {
	vars   map[string]*Cell
	parent *scope
}

func (self *scope) lookup(n string) (*Cell, bool) {
	for s := self; s != nil; s = s.parent {
		if c, ok := s.vars[n]; ok {
			return c, true
		}
	}
	return nil, false
}

// Interp executes a parsed program against a Runtime. It only understands
// the subset the generator emits, which tpl.Check accepts.
type Interp struct {
	prog    *tpl.Program
	rt      *Runtime
	structs map[string]*tpl.StructDecl
	funs    map[string]*tpl.FunDecl
	scope   *scope
	fun     *tpl.FunDecl
	depth   int
}

func New(
	prog *tpl.Program,
	rt *Runtime,
) *Interp {
	if rt == nil {
		rt = NewRuntime()
	}
	self := &Interp{
		prog:    prog,
		rt:      rt,
		structs: make(map[string]*tpl.StructDecl),
		funs:    make(map[string]*tpl.FunDecl),
	}
	for _, d := range prog.Decls {
		switch x := d.(type) {
		case *tpl.StructDecl:
			self.structs[x.Name] = x
		case *tpl.FunDecl:
			self.funs[x.Name] = x
		}
	}
	return self
}

func (self *Interp) Runtime() *Runtime {
	return self.rt
}

// Run calls the entry point with a fresh execution context and returns its
// int32 result.
func (self *Interp) Run(entry string) (int32, error) {
	ctx := self.rt.newExecCtx()
	v, err := self.Call(entry, ctx)
	if err != nil {
		return 0, err
	}
	if err := self.rt.finish(); err != nil {
		return 0, err
	}
	i, err := asInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s", entry, err)
	}
	return int32(i), nil
}

func (self *Interp) Call(
	name string,
	args ...Value,
) (Value, error) {
	f, ok := self.funs[name]
	if !ok {
		return nil, fmt.Errorf("function %s is not found", name)
	}
	return self.callFun(f, args)
}

func (self *Interp) callFun(
	f *tpl.FunDecl,
	args []Value,
) (Value, error) {
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s: expect %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	if self.depth >= maxCallDepth {
		return nil, fmt.Errorf("%s: call depth exceeds %d", f.Name, maxCallDepth)
	}

	savedScope, savedFun := self.scope, self.fun
	self.depth++
	defer func() {
		self.scope, self.fun = savedScope, savedFun
		self.depth--
	}()

	self.fun = f
	self.scope = &scope{vars: make(map[string]*Cell)}
	for idx, p := range f.Params {
		self.scope.vars[p.Name] = &Cell{V: args[idx]}
	}

	ctrl, v, err := self.execBlock(f.Body)
	if err != nil {
		return nil, err
	}
	if ctrl != ctrlReturn && f.Ret != nil {
		return nil, fmt.Errorf("%s: missing return", f.Name)
	}
	return v, nil
}

func (self *Interp) errf(
	info tpl.CodeInfo,
	format string,
	args ...interface{},
) error {
	name := "?"
	if self.fun != nil {
		name = self.fun.Name
	}
	return fmt.Errorf("%s: %q: %s", name, info.Snippet, fmt.Sprintf(format, args...))
}

func (self *Interp) zero(t *tpl.Type) Value {
	switch t.Kind {
	case tpl.TypePtr:
		return nil
	case tpl.TypeArray:
		arr := &Array{Elems: make([]*Cell, t.Len)}
		for i := range arr.Elems {
			arr.Elems[i] = &Cell{V: self.zero(t.Elem)}
		}
		return arr
	default:
		if d, ok := self.structs[t.Name]; ok {
			return self.newStruct(d)
		}
		switch t.Name {
		case "Integer", "int32", "uint32", "int64":
			return int64(0)
		case "bool":
			return false
		default:
			return nil // opaque runtime object, set up by a builtin
		}
	}
}

func (self *Interp) newStruct(d *tpl.StructDecl) *Struct {
	s := &Struct{
		Decl:   d,
		Fields: make([]*Cell, len(d.Fields)),
	}
	for idx, f := range d.Fields {
		s.Fields[idx] = &Cell{V: self.zero(f.Ty)}
	}
	return s
}

// Statement -----------------------------------------------------------------

func (self *Interp) execBlock(body []tpl.Stmt) (int, Value, error) {
	self.scope = &scope{vars: make(map[string]*Cell), parent: self.scope}
	defer func() {
		self.scope = self.scope.parent
	}()

	for _, s := range body {
		ctrl, v, err := self.execStmt(s)
		if err != nil || ctrl == ctrlReturn {
			return ctrl, v, err
		}
	}
	return ctrlNext, nil, nil
}

func (self *Interp) execStmt(s tpl.Stmt) (int, Value, error) {
	switch x := s.(type) {
	case *tpl.VarStmt:
		c := &Cell{}
		if x.Ty != nil {
			c.V = self.zero(x.Ty)
		}
		if x.Init != nil {
			v, err := self.eval(x.Init)
			if err != nil {
				return ctrlNext, nil, err
			}
			c.V = v
		}
		self.scope.vars[x.Name] = c
		return ctrlNext, nil, nil

	case *tpl.AssignStmt:
		addr, err := self.addr(x.L)
		if err != nil {
			return ctrlNext, nil, err
		}
		v, err := self.eval(x.R)
		if err != nil {
			return ctrlNext, nil, err
		}
		addr.V = v
		return ctrlNext, nil, nil

	case *tpl.ExprStmt:
		_, err := self.eval(x.X)
		return ctrlNext, nil, err

	case *tpl.IfStmt:
		cond, err := self.evalCond(x.Cond)
		if err != nil {
			return ctrlNext, nil, err
		}
		if cond {
			return self.execBlock(x.Then)
		}
		return self.execBlock(x.Else)

	case *tpl.ForStmt:
		return self.execFor(x)

	case *tpl.ReturnStmt:
		if x.X == nil {
			return ctrlReturn, nil, nil
		}
		v, err := self.eval(x.X)
		return ctrlReturn, v, err

	default:
		return ctrlNext, nil, self.errf(s.CInfo(), "unknown statement")
	}
}

func (self *Interp) execFor(x *tpl.ForStmt) (int, Value, error) {
	self.scope = &scope{vars: make(map[string]*Cell), parent: self.scope}
	defer func() {
		self.scope = self.scope.parent
	}()

	if x.Init != nil {
		if _, _, err := self.execStmt(x.Init); err != nil {
			return ctrlNext, nil, err
		}
	}
	for {
		if x.Cond != nil {
			cond, err := self.evalCond(x.Cond)
			if err != nil {
				return ctrlNext, nil, err
			}
			if !cond {
				break
			}
		}
		ctrl, v, err := self.execBlock(x.Body)
		if err != nil || ctrl == ctrlReturn {
			return ctrl, v, err
		}
		if x.Post != nil {
			if _, _, err := self.execStmt(x.Post); err != nil {
				return ctrlNext, nil, err
			}
		}
	}
	return ctrlNext, nil, nil
}

// Expression ----------------------------------------------------------------

func (self *Interp) evalCond(e tpl.Expr) (bool, error) {
	v, err := self.eval(e)
	if err != nil {
		return false, err
	}
	b, err := asBool(v)
	if err != nil {
		return false, self.errf(e.CInfo(), "%s", err)
	}
	return b, nil
}

func (self *Interp) evalInt(e tpl.Expr) (int64, error) {
	v, err := self.eval(e)
	if err != nil {
		return 0, err
	}
	i, err := asInt(v)
	if err != nil {
		return 0, self.errf(e.CInfo(), "%s", err)
	}
	return i, nil
}

func (self *Interp) eval(e tpl.Expr) (Value, error) {
	switch x := e.(type) {
	case *tpl.Const:
		switch x.Ty {
		case tpl.ConstInt:
			return x.Int, nil
		case tpl.ConstStr:
			return x.Str, nil
		default:
			return nil, nil
		}

	case *tpl.Ref:
		if c, ok := self.scope.lookup(x.Name); ok {
			return c.V, nil
		}
		if f, ok := self.funs[x.Name]; ok {
			return &FuncRef{Decl: f}, nil
		}
		return nil, self.errf(x.CodeInfo, "undefined %s", x.Name)

	case *tpl.Unary:
		return self.evalUnary(x)

	case *tpl.Binary:
		return self.evalBinary(x)

	case *tpl.Call:
		f, ok := self.funs[x.Name]
		if !ok {
			return nil, self.errf(x.CodeInfo, "undefined function %s", x.Name)
		}
		args := make([]Value, 0, len(x.Args))
		for _, a := range x.Args {
			v, err := self.eval(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return self.callFun(f, args)

	case *tpl.Builtin:
		return self.evalBuiltin(x)

	case *tpl.Dot, *tpl.Index:
		c, err := self.addr(e)
		if err != nil {
			return nil, err
		}
		return c.V, nil

	default:
		return nil, self.errf(e.CInfo(), "expression is not a value")
	}
}

func (self *Interp) evalUnary(x *tpl.Unary) (Value, error) {
	switch x.Op {
	case tpl.TkAddr:
		c, err := self.addr(x.Operand)
		if err != nil {
			return nil, err
		}
		return c, nil

	case tpl.TkMul:
		v, err := self.eval(x.Operand)
		if err != nil {
			return nil, err
		}
		p, err := asPtr(v)
		if err != nil {
			return nil, self.errf(x.CodeInfo, "%s", err)
		}
		return p.V, nil

	case tpl.TkSub:
		i, err := self.evalInt(x.Operand)
		if err != nil {
			return nil, err
		}
		return -i, nil

	case tpl.TkNot:
		b, err := self.evalCond(x.Operand)
		if err != nil {
			return nil, err
		}
		return !b, nil

	default:
		return nil, self.errf(x.CodeInfo, "unknown unary operator %s", tpl.TokenName(x.Op))
	}
}

func (self *Interp) evalBinary(x *tpl.Binary) (Value, error) {
	switch x.Op {
	case tpl.TkAnd, tpl.TkOr:
		l, err := self.evalCond(x.L)
		if err != nil {
			return nil, err
		}
		if x.Op == tpl.TkAnd && !l {
			return false, nil
		}
		if x.Op == tpl.TkOr && l {
			return true, nil
		}
		return self.evalCond(x.R)

	case tpl.TkEq, tpl.TkNe:
		l, err := self.eval(x.L)
		if err != nil {
			return nil, err
		}
		r, err := self.eval(x.R)
		if err != nil {
			return nil, err
		}
		eq := l == r
		if x.Op == tpl.TkEq {
			return eq, nil
		}
		return !eq, nil
	}

	l, err := self.evalInt(x.L)
	if err != nil {
		return nil, err
	}
	r, err := self.evalInt(x.R)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case tpl.TkAdd:
		return l + r, nil
	case tpl.TkSub:
		return l - r, nil
	case tpl.TkMul:
		return l * r, nil
	case tpl.TkDiv, tpl.TkMod:
		if r == 0 {
			return nil, self.errf(x.CodeInfo, "division by zero")
		}
		if x.Op == tpl.TkDiv {
			return l / r, nil
		}
		return l % r, nil
	case tpl.TkLt:
		return l < r, nil
	case tpl.TkLe:
		return l <= r, nil
	case tpl.TkGt:
		return l > r, nil
	case tpl.TkGe:
		return l >= r, nil
	default:
		return nil, self.errf(x.CodeInfo, "unknown binary operator %s", tpl.TokenName(x.Op))
	}
}

// addr evaluates an expression to the cell it denotes.
func (self *Interp) addr(e tpl.Expr) (*Cell, error) {
	switch x := e.(type) {
	case *tpl.Ref:
		if c, ok := self.scope.lookup(x.Name); ok {
			return c, nil
		}
		return nil, self.errf(x.CodeInfo, "undefined %s", x.Name)

	case *tpl.Dot:
		base, err := self.eval(x.X)
		if err != nil {
			return nil, err
		}
		s, ok := deref(base).(*Struct)
		if !ok {
			return nil, self.errf(x.CodeInfo, "field access on %s", typeName(deref(base)))
		}
		c, ok := s.Field(x.Field)
		if !ok {
			return nil, self.errf(x.CodeInfo, "struct %s has no field %s", s.Decl.Name, x.Field)
		}
		return c, nil

	case *tpl.Index:
		base, err := self.eval(x.X)
		if err != nil {
			return nil, err
		}
		arr, ok := deref(base).(*Array)
		if !ok {
			return nil, self.errf(x.CodeInfo, "index on %s", typeName(deref(base)))
		}
		i, err := self.evalInt(x.Index)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(len(arr.Elems)) {
			return nil, self.errf(x.CodeInfo, "index %d out of range [0, %d)", i, len(arr.Elems))
		}
		return arr.Elems[i], nil

	case *tpl.Unary:
		if x.Op == tpl.TkMul {
			v, err := self.eval(x.Operand)
			if err != nil {
				return nil, err
			}
			p, err := asPtr(v)
			if err != nil {
				return nil, self.errf(x.CodeInfo, "%s", err)
			}
			return p, nil
		}
	}
	return nil, self.errf(e.CInfo(), "expression is not addressable")
}
