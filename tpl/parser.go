package tpl

// parser of the intermediate language emitted by the cg package. Only the
// subset the generator produces is understood, briefly described as following
// EBNF
//
// ### declaration -----------------------------------------------------------
//
// program := decl*
// decl := struct | fun
// struct := STRUCT ID '{' field* '}'
// field := ID ':' type
// fun := FUN ID '(' param-list? ')' '->' (type | NIL) block
// param-list := ID ':' type (',' ID ':' type)*
// type := '*' type | '[' INT ']' type | ID
//
// ### statement -------------------------------------------------------------
//
// block := '{' stmt* '}'
// stmt := var | if | for | return | simple
// var := VAR ID (':' type)? ('=' expr)?
// if := IF '(' expr ')' block (ELSE (if | block))?
// for := FOR '(' (expr | simple? ';' expr? ';' simple?) ')' block
// return := RETURN expr?
// simple := expr ('=' expr)?
//
// ### expression ------------------------------------------------------------
//
// expr := binary
// binary := unary (binary-op unary)*
// unary := ('-' | '!' | '&' | '*')* suffix
// suffix := primary ('.' ID | '[' expr ']')*
// primary := INT | STR | NIL | ID | ID call | BUILTIN call | '(' expr ')'
// call := '(' (expr (',' expr)*)? ')'
//
// Statements are not terminated, newlines are plain whitespace.
// ----------------------------------------------------------------------------

import (
	"fmt"
)

// builtins whose first argument is a type rather than a value
var typeArgBuiltin = map[string]bool{
	"ptrCast": true,
	"sizeOf":  true,
}

type Parser struct {
	L *Lexer
}

func newParser(xx string) *Parser {
	return &Parser{
		L: newLexer(xx),
	}
}

func NewParser(xx string) *Parser {
	return newParser(xx)
}

// Parse is a shortcut of NewParser(xx).Parse()
func Parse(xx string) (*Program, error) {
	return newParser(xx).Parse()
}

func (self *Parser) posStart() int {
	return self.L.Start
}

func (self *Parser) snippet(start, end int) string {
	if start >= end {
		start = end
	}
	return self.L.Source[start:end]
}

func (self *Parser) codeInfo(start int) CodeInfo {
	end := self.L.PrevEnd
	return CodeInfo{
		Start:   start,
		End:     end,
		Snippet: self.snippet(start, end),
	}
}

func (self *Parser) err(msg string) error {
	if self.L.Token == TkError {
		return fmt.Errorf("%s", self.L.Lexeme.Text)
	} else {
		return fmt.Errorf("%s: %s", self.L.dinfo(), msg)
	}
}

func (self *Parser) expect(tk int) error {
	if self.L.Token == tk {
		self.L.Next()
		return nil
	} else {
		return self.err(fmt.Sprintf("expect %s but got %s", TokenName(tk), TokenName(self.L.Token)))
	}
}

func (self *Parser) expectId() (string, error) {
	if self.L.Token != TkId {
		return "", self.err(fmt.Sprintf("expect identifier but got %s", TokenName(self.L.Token)))
	}
	n := self.L.Lexeme.Text
	self.L.Next()
	return n, nil
}

func (self *Parser) Parse() (*Program, error) {
	prog := &Program{}
	self.L.Next()

	for self.L.Token != TkEof {
		switch self.L.Token {
		case TkStruct:
			if d, err := self.parseStruct(); err != nil {
				return nil, err
			} else {
				prog.Decls = append(prog.Decls, d)
			}

		case TkFun:
			if d, err := self.parseFun(); err != nil {
				return nil, err
			} else {
				prog.Decls = append(prog.Decls, d)
			}

		default:
			return nil, self.err("expect *struct* or *fun* at top level")
		}
	}
	return prog, nil
}

func (self *Parser) parseType() (*Type, error) {
	switch self.L.Token {
	case TkMul:
		self.L.Next()
		if elem, err := self.parseType(); err != nil {
			return nil, err
		} else {
			return &Type{Kind: TypePtr, Elem: elem}, nil
		}

	case TkLSqr:
		self.L.Next()
		if self.L.Token != TkInt {
			return nil, self.err("expect array length")
		}
		n := self.L.Lexeme.Int
		self.L.Next()
		if err := self.expect(TkRSqr); err != nil {
			return nil, err
		}
		if elem, err := self.parseType(); err != nil {
			return nil, err
		} else {
			return &Type{Kind: TypeArray, Elem: elem, Len: n}, nil
		}

	case TkId:
		n := self.L.Lexeme.Text
		self.L.Next()
		return &Type{Kind: TypeName, Name: n}, nil

	default:
		return nil, self.err("expect a type")
	}
}

func (self *Parser) parseStruct() (*StructDecl, error) {
	start := self.posStart()
	self.L.Next()

	name, err := self.expectId()
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkLBra); err != nil {
		return nil, err
	}

	fields := []Field{}
	for self.L.Token != TkRBra {
		fname, err := self.expectId()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkColon); err != nil {
			return nil, err
		}
		ty, err := self.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: fname, Ty: ty})
	}
	self.L.Next()

	return &StructDecl{
		CodeInfo: self.codeInfo(start),
		Name:     name,
		Fields:   fields,
	}, nil
}

func (self *Parser) parseFun() (*FunDecl, error) {
	start := self.posStart()
	self.L.Next()

	name, err := self.expectId()
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}

	params := []Param{}
	for self.L.Token != TkRPar {
		pname, err := self.expectId()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkColon); err != nil {
			return nil, err
		}
		ty, err := self.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: pname, Ty: ty})

		if self.L.Token == TkComma {
			self.L.Next()
		} else if self.L.Token != TkRPar {
			return nil, self.err("expect ',' or ')' in parameter list")
		}
	}
	self.L.Next()

	if err := self.expect(TkArrow); err != nil {
		return nil, err
	}

	var ret *Type
	if self.L.Token == TkNil {
		self.L.Next()
	} else if ty, err := self.parseType(); err != nil {
		return nil, err
	} else {
		ret = ty
	}

	body, err := self.parseBlock()
	if err != nil {
		return nil, err
	}

	return &FunDecl{
		CodeInfo: self.codeInfo(start),
		Name:     name,
		Params:   params,
		Ret:      ret,
		Body:     body,
	}, nil
}

func (self *Parser) parseBlock() ([]Stmt, error) {
	if err := self.expect(TkLBra); err != nil {
		return nil, err
	}
	out := []Stmt{}
	for self.L.Token != TkRBra {
		if self.L.Token == TkEof {
			return nil, self.err("block is not closed by '}'")
		}
		if s, err := self.parseStmt(); err != nil {
			return nil, err
		} else {
			out = append(out, s)
		}
	}
	self.L.Next()
	return out, nil
}

func (self *Parser) parseStmt() (Stmt, error) {
	switch self.L.Token {
	case TkVar:
		return self.parseVar()
	case TkIf:
		return self.parseIf()
	case TkFor:
		return self.parseFor()
	case TkReturn:
		return self.parseReturn()
	case TkError:
		return nil, self.err("")
	default:
		return self.parseSimple()
	}
}

func (self *Parser) parseVar() (Stmt, error) {
	start := self.posStart()
	self.L.Next()

	name, err := self.expectId()
	if err != nil {
		return nil, err
	}

	s := &VarStmt{
		Name: name,
	}
	if self.L.Token == TkColon {
		self.L.Next()
		if ty, err := self.parseType(); err != nil {
			return nil, err
		} else {
			s.Ty = ty
		}
	}
	if self.L.Token == TkAssign {
		self.L.Next()
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			s.Init = e
		}
	}
	if s.Ty == nil && s.Init == nil {
		return nil, self.err(fmt.Sprintf("var %s needs a type or an initializer", name))
	}
	s.CodeInfo = self.codeInfo(start)
	return s, nil
}

func (self *Parser) parseSimple() (Stmt, error) {
	start := self.posStart()
	lhs, err := self.parseExpr()
	if err != nil {
		return nil, err
	}

	if self.L.Token == TkAssign {
		self.L.Next()
		rhs, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{
			CodeInfo: self.codeInfo(start),
			L:        lhs,
			R:        rhs,
		}, nil
	}

	return &ExprStmt{
		CodeInfo: self.codeInfo(start),
		X:        lhs,
	}, nil
}

func (self *Parser) parseCond() (Expr, error) {
	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}
	cond, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}
	return cond, nil
}

func (self *Parser) parseIf() (Stmt, error) {
	start := self.posStart()
	self.L.Next()

	cond, err := self.parseCond()
	if err != nil {
		return nil, err
	}
	then, err := self.parseBlock()
	if err != nil {
		return nil, err
	}

	s := &IfStmt{
		Cond: cond,
		Then: then,
	}

	if self.L.Token == TkElse {
		self.L.Next()
		if self.L.Token == TkIf {
			if elif, err := self.parseIf(); err != nil {
				return nil, err
			} else {
				s.Else = []Stmt{elif}
			}
		} else if blk, err := self.parseBlock(); err != nil {
			return nil, err
		} else {
			s.Else = blk
		}
	}

	s.CodeInfo = self.codeInfo(start)
	return s, nil
}

func (self *Parser) parseFor() (Stmt, error) {
	start := self.posStart()
	self.L.Next()

	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}

	s := &ForStmt{}

	var first Stmt
	if self.L.Token != TkSemicolon {
		if x, err := self.parseSimple(); err != nil {
			return nil, err
		} else {
			first = x
		}
	}

	if self.L.Token == TkRPar {
		// for (cond) {}
		es, ok := first.(*ExprStmt)
		if !ok {
			return nil, self.err("expect a condition expression in for")
		}
		s.Cond = es.X
		self.L.Next()
	} else {
		// for (init; cond; post) {}
		s.Init = first
		if err := self.expect(TkSemicolon); err != nil {
			return nil, err
		}
		if self.L.Token != TkSemicolon {
			if e, err := self.parseExpr(); err != nil {
				return nil, err
			} else {
				s.Cond = e
			}
		}
		if err := self.expect(TkSemicolon); err != nil {
			return nil, err
		}
		if self.L.Token != TkRPar {
			if x, err := self.parseSimple(); err != nil {
				return nil, err
			} else {
				s.Post = x
			}
		}
		if err := self.expect(TkRPar); err != nil {
			return nil, err
		}
	}

	body, err := self.parseBlock()
	if err != nil {
		return nil, err
	}
	s.Body = body
	s.CodeInfo = self.codeInfo(start)
	return s, nil
}

func (self *Parser) parseReturn() (Stmt, error) {
	start := self.posStart()
	self.L.Next()

	s := &ReturnStmt{}
	if self.L.Token != TkRBra {
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			s.X = e
		}
	}
	s.CodeInfo = self.codeInfo(start)
	return s, nil
}

// Expression -----------------------------------------------------------------

const invalidOpPrec = -1

func (self *Parser) binPrec(tk int) int {
	switch tk {
	case TkOr:
		return 0
	case TkAnd:
		return 1
	case TkEq, TkNe:
		return 2
	case TkLt, TkLe, TkGt, TkGe:
		return 3
	case TkAdd, TkSub:
		return 4
	case TkMul, TkDiv, TkMod:
		return 5
	default:
		return invalidOpPrec
	}
}

func (self *Parser) parseExpr() (Expr, error) {
	return self.doParseBin(0)
}

// Binary parsing, precedence climbing
func (self *Parser) doParseBin(prec int) (Expr, error) {
	start := self.posStart()

	lhs, err := self.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tk := self.L.Token
		nextPrec := self.binPrec(tk)
		if nextPrec == invalidOpPrec || nextPrec < prec {
			break
		}
		self.L.Next()

		rhs, err := self.doParseBin(nextPrec + 1)
		if err != nil {
			return nil, err
		}
		lhs = &Binary{
			CodeInfo: self.codeInfo(start),
			Op:       tk,
			L:        lhs,
			R:        rhs,
		}
	}
	return lhs, nil
}

func (self *Parser) parseUnary() (Expr, error) {
	start := self.posStart()
	switch tk := self.L.Token; tk {
	case TkSub, TkNot, TkAddr, TkMul:
		self.L.Next()
		operand, err := self.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{
			CodeInfo: self.codeInfo(start),
			Op:       tk,
			Operand:  operand,
		}, nil
	default:
		return self.parseSuffix()
	}
}

func (self *Parser) parseSuffix() (Expr, error) {
	start := self.posStart()
	x, err := self.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch self.L.Token {
		case TkDot:
			self.L.Next()
			name, err := self.expectId()
			if err != nil {
				return nil, err
			}
			x = &Dot{
				CodeInfo: self.codeInfo(start),
				X:        x,
				Field:    name,
			}

		case TkLSqr:
			self.L.Next()
			idx, err := self.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := self.expect(TkRSqr); err != nil {
				return nil, err
			}
			x = &Index{
				CodeInfo: self.codeInfo(start),
				X:        x,
				Index:    idx,
			}

		default:
			return x, nil
		}
	}
}

func (self *Parser) parseArgs(typeFirst bool) ([]Expr, error) {
	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}
	out := []Expr{}
	for self.L.Token != TkRPar {
		start := self.posStart()
		if typeFirst && len(out) == 0 {
			if ty, err := self.parseType(); err != nil {
				return nil, err
			} else {
				out = append(out, &TypeExpr{
					CodeInfo: self.codeInfo(start),
					Ty:       ty,
				})
			}
		} else if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			out = append(out, e)
		}

		if self.L.Token == TkComma {
			self.L.Next()
		} else if self.L.Token != TkRPar {
			return nil, self.err("expect ',' or ')' in argument list")
		}
	}
	self.L.Next()
	return out, nil
}

func (self *Parser) parsePrimary() (Expr, error) {
	start := self.posStart()

	switch self.L.Token {
	case TkInt:
		v := self.L.Lexeme.Int
		self.L.Next()
		return &Const{CodeInfo: self.codeInfo(start), Ty: ConstInt, Int: v}, nil

	case TkStr:
		v := self.L.Lexeme.Text
		self.L.Next()
		return &Const{CodeInfo: self.codeInfo(start), Ty: ConstStr, Str: v}, nil

	case TkNil:
		self.L.Next()
		return &Const{CodeInfo: self.codeInfo(start), Ty: ConstNil}, nil

	case TkId:
		name := self.L.Lexeme.Text
		self.L.Next()
		if self.L.Token == TkLPar {
			args, err := self.parseArgs(false)
			if err != nil {
				return nil, err
			}
			return &Call{CodeInfo: self.codeInfo(start), Name: name, Args: args}, nil
		}
		return &Ref{CodeInfo: self.codeInfo(start), Name: name}, nil

	case TkBuiltin:
		name := self.L.Lexeme.Text
		self.L.Next()
		args, err := self.parseArgs(typeArgBuiltin[name])
		if err != nil {
			return nil, err
		}
		return &Builtin{CodeInfo: self.codeInfo(start), Name: name, Args: args}, nil

	case TkLPar:
		self.L.Next()
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, self.err(fmt.Sprintf("unexpected %s in expression", TokenName(self.L.Token)))
	}
}
