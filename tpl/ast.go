package tpl

import (
	"fmt"
	"strings"
)

const (
	TypeName = iota
	TypePtr
	TypeArray
)

const (
	DeclStruct = iota
	DeclFun
)

const (
	ExprConst = iota
	ExprRef
	ExprUnary
	ExprBinary
	ExprCall
	ExprBuiltin
	ExprDot
	ExprIndex
	ExprType
)

const (
	StmtVar = iota
	StmtAssign
	StmtExpr
	StmtIf
	StmtFor
	StmtReturn
)

const (
	ConstNil = iota
	ConstInt
	ConstStr
)

type CodeInfo struct {
	Start   int
	End     int
	Snippet string
}

// Type ----------------------------------------------------------------------

type Type struct {
	Kind int
	Name string // TypeName
	Elem *Type  // TypePtr, TypeArray
	Len  int64  // TypeArray
}

func (self *Type) String() string {
	switch self.Kind {
	case TypePtr:
		return "*" + self.Elem.String()
	case TypeArray:
		return fmt.Sprintf("[%d]%s", self.Len, self.Elem.String())
	default:
		return self.Name
	}
}

// BaseName strips pointers and arrays.
func (self *Type) BaseName() string {
	if self.Kind == TypeName {
		return self.Name
	}
	return self.Elem.BaseName()
}

// Declarations --------------------------------------------------------------

type Decl interface {
	Type() int
	DeclName() string
	CInfo() CodeInfo
}

type Field struct {
	Name string
	Ty   *Type
}

type StructDecl struct {
	CodeInfo CodeInfo
	Name     string
	Fields   []Field
}

type Param struct {
	Name string
	Ty   *Type
}

type FunDecl struct {
	CodeInfo CodeInfo
	Name     string
	Params   []Param
	Ret      *Type // nil when declared as '-> nil'
	Body     []Stmt
}

func (self *StructDecl) Type() int        { return DeclStruct }
func (self *StructDecl) DeclName() string { return self.Name }
func (self *StructDecl) CInfo() CodeInfo  { return self.CodeInfo }

func (self *FunDecl) Type() int        { return DeclFun }
func (self *FunDecl) DeclName() string { return self.Name }
func (self *FunDecl) CInfo() CodeInfo  { return self.CodeInfo }

func (self *StructDecl) Field(n string) (*Field, int) {
	for idx := range self.Fields {
		if self.Fields[idx].Name == n {
			return &self.Fields[idx], idx
		}
	}
	return nil, -1
}

type Program struct {
	Decls []Decl
}

func (self *Program) Struct(n string) *StructDecl {
	for _, d := range self.Decls {
		if s, ok := d.(*StructDecl); ok && s.Name == n {
			return s
		}
	}
	return nil
}

func (self *Program) Fun(n string) *FunDecl {
	for _, d := range self.Decls {
		if f, ok := d.(*FunDecl); ok && f.Name == n {
			return f
		}
	}
	return nil
}

func (self *Program) Funs() []*FunDecl {
	out := []*FunDecl{}
	for _, d := range self.Decls {
		if f, ok := d.(*FunDecl); ok {
			out = append(out, f)
		}
	}
	return out
}

// Expressions ---------------------------------------------------------------

type Expr interface {
	Type() int
	CInfo() CodeInfo
}

type Const struct {
	CodeInfo CodeInfo
	Ty       int
	Int      int64
	Str      string
}

type Ref struct {
	CodeInfo CodeInfo
	Name     string
}

type Unary struct {
	CodeInfo CodeInfo
	Op       int // TkSub, TkNot, TkAddr, TkMul
	Operand  Expr
}

type Binary struct {
	CodeInfo CodeInfo
	Op       int
	L        Expr
	R        Expr
}

// Call of a function declared in the program.
type Call struct {
	CodeInfo CodeInfo
	Name     string
	Args     []Expr
}

// Builtin is a call into the runtime, ie @sorterInsert(...)
type Builtin struct {
	CodeInfo CodeInfo
	Name     string
	Args     []Expr
}

type Dot struct {
	CodeInfo CodeInfo
	X        Expr
	Field    string
}

type Index struct {
	CodeInfo CodeInfo
	X        Expr
	Index    Expr
}

// TypeExpr is a type used as a builtin argument, ie @sizeOf(SortRow1)
type TypeExpr struct {
	CodeInfo CodeInfo
	Ty       *Type
}

func (self *Const) Type() int    { return ExprConst }
func (self *Ref) Type() int      { return ExprRef }
func (self *Unary) Type() int    { return ExprUnary }
func (self *Binary) Type() int   { return ExprBinary }
func (self *Call) Type() int     { return ExprCall }
func (self *Builtin) Type() int  { return ExprBuiltin }
func (self *Dot) Type() int      { return ExprDot }
func (self *Index) Type() int    { return ExprIndex }
func (self *TypeExpr) Type() int { return ExprType }

func (self *Const) CInfo() CodeInfo    { return self.CodeInfo }
func (self *Ref) CInfo() CodeInfo      { return self.CodeInfo }
func (self *Unary) CInfo() CodeInfo    { return self.CodeInfo }
func (self *Binary) CInfo() CodeInfo   { return self.CodeInfo }
func (self *Call) CInfo() CodeInfo     { return self.CodeInfo }
func (self *Builtin) CInfo() CodeInfo  { return self.CodeInfo }
func (self *Dot) CInfo() CodeInfo      { return self.CodeInfo }
func (self *Index) CInfo() CodeInfo    { return self.CodeInfo }
func (self *TypeExpr) CInfo() CodeInfo { return self.CodeInfo }

// Statements ----------------------------------------------------------------

type Stmt interface {
	Type() int
	CInfo() CodeInfo
}

type VarStmt struct {
	CodeInfo CodeInfo
	Name     string
	Ty       *Type // optional
	Init     Expr  // optional
}

type AssignStmt struct {
	CodeInfo CodeInfo
	L        Expr
	R        Expr
}

type ExprStmt struct {
	CodeInfo CodeInfo
	X        Expr
}

type IfStmt struct {
	CodeInfo CodeInfo
	Cond     Expr
	Then     []Stmt
	Else     []Stmt
}

// ForStmt covers both 'for (cond) {}' and 'for (init; cond; post) {}', any
// of the three may be nil.
type ForStmt struct {
	CodeInfo CodeInfo
	Init     Stmt
	Cond     Expr
	Post     Stmt
	Body     []Stmt
}

type ReturnStmt struct {
	CodeInfo CodeInfo
	X        Expr // optional
}

func (self *VarStmt) Type() int    { return StmtVar }
func (self *AssignStmt) Type() int { return StmtAssign }
func (self *ExprStmt) Type() int   { return StmtExpr }
func (self *IfStmt) Type() int     { return StmtIf }
func (self *ForStmt) Type() int    { return StmtFor }
func (self *ReturnStmt) Type() int { return StmtReturn }

func (self *VarStmt) CInfo() CodeInfo    { return self.CodeInfo }
func (self *AssignStmt) CInfo() CodeInfo { return self.CodeInfo }
func (self *ExprStmt) CInfo() CodeInfo   { return self.CodeInfo }
func (self *IfStmt) CInfo() CodeInfo     { return self.CodeInfo }
func (self *ForStmt) CInfo() CodeInfo    { return self.CodeInfo }
func (self *ReturnStmt) CInfo() CodeInfo { return self.CodeInfo }

// Walk visits every statement of a block, nested blocks included, in textual
// order.
func Walk(
	body []Stmt,
	fn func(Stmt),
) {
	for _, s := range body {
		fn(s)
		switch x := s.(type) {
		case *IfStmt:
			Walk(x.Then, fn)
			Walk(x.Else, fn)
		case *ForStmt:
			if x.Init != nil {
				Walk([]Stmt{x.Init}, fn)
			}
			if x.Post != nil {
				Walk([]Stmt{x.Post}, fn)
			}
			Walk(x.Body, fn)
		}
	}
}

// CallsOf lists the names of the program functions called by statements of
// body, in textual order.
func CallsOf(body []Stmt) []string {
	out := []string{}
	var visit func(e Expr)
	visit = func(e Expr) {
		switch x := e.(type) {
		case *Call:
			out = append(out, x.Name)
			for _, a := range x.Args {
				visit(a)
			}
		case *Builtin:
			for _, a := range x.Args {
				visit(a)
			}
		case *Unary:
			visit(x.Operand)
		case *Binary:
			visit(x.L)
			visit(x.R)
		case *Dot:
			visit(x.X)
		case *Index:
			visit(x.X)
			visit(x.Index)
		}
	}
	Walk(body, func(s Stmt) {
		for _, e := range StmtExprs(s) {
			visit(e)
		}
	})
	return out
}

// StmtExprs returns the expressions directly owned by s, not the ones of
// nested statements.
func StmtExprs(s Stmt) []Expr {
	out := []Expr{}
	switch x := s.(type) {
	case *VarStmt:
		if x.Init != nil {
			out = append(out, x.Init)
		}
	case *AssignStmt:
		out = append(out, x.L, x.R)
	case *ExprStmt:
		out = append(out, x.X)
	case *IfStmt:
		out = append(out, x.Cond)
	case *ForStmt:
		if x.Cond != nil {
			out = append(out, x.Cond)
		}
	case *ReturnStmt:
		if x.X != nil {
			out = append(out, x.X)
		}
	}
	return out
}

func PrintType(t *Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

func printParams(p []Param) string {
	out := []string{}
	for _, x := range p {
		out = append(out, fmt.Sprintf("%s: %s", x.Name, x.Ty))
	}
	return strings.Join(out, ", ")
}

// Signature renders a function header, used in diagnostics.
func (self *FunDecl) Signature() string {
	return fmt.Sprintf("fun %s(%s) -> %s", self.Name, printParams(self.Params), PrintType(self.Ret))
}
