package tpl

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

const (
	// Literal
	TkInt = iota
	TkStr
	TkNil
	TkId
	TkBuiltin // @name, Lexeme.Text holds the name without '@'

	// Keywords
	TkFun
	TkStruct
	TkVar
	TkFor
	TkIf
	TkElse
	TkReturn

	// Punctuation
	TkComma
	TkSemicolon
	TkColon
	TkAssign
	TkArrow

	TkLSqr
	TkRSqr
	TkLBra
	TkRBra
	TkLPar
	TkRPar

	TkAdd
	TkSub
	TkMul
	TkDiv
	TkMod

	TkLt
	TkLe
	TkGt
	TkGe
	TkEq
	TkNe

	TkAnd
	TkOr
	TkNot
	TkAddr

	TkDot

	TkError
	TkEof
)

var tokenName = map[int]string{
	TkInt:       "int",
	TkStr:       "string",
	TkNil:       "nil",
	TkId:        "identifier",
	TkBuiltin:   "builtin",
	TkFun:       "fun",
	TkStruct:    "struct",
	TkVar:       "var",
	TkFor:       "for",
	TkIf:        "if",
	TkElse:      "else",
	TkReturn:    "return",
	TkComma:     "','",
	TkSemicolon: "';'",
	TkColon:     "':'",
	TkAssign:    "'='",
	TkArrow:     "'->'",
	TkLSqr:      "'['",
	TkRSqr:      "']'",
	TkLBra:      "'{'",
	TkRBra:      "'}'",
	TkLPar:      "'('",
	TkRPar:      "')'",
	TkAdd:       "'+'",
	TkSub:       "'-'",
	TkMul:       "'*'",
	TkDiv:       "'/'",
	TkMod:       "'%'",
	TkLt:        "'<'",
	TkLe:        "'<='",
	TkGt:        "'>'",
	TkGe:        "'>='",
	TkEq:        "'=='",
	TkNe:        "'!='",
	TkAnd:       "'&&'",
	TkOr:        "'||'",
	TkNot:       "'!'",
	TkAddr:      "'&'",
	TkDot:       "'.'",
	TkError:     "error",
	TkEof:       "eof",
}

func TokenName(tk int) string {
	if n, ok := tokenName[tk]; ok {
		return n
	}
	return fmt.Sprintf("token(%d)", tk)
}

type Lexeme struct {
	Text string
	Int  int64
}

type Lexer struct {
	Source  string
	Cursor  int
	Start   int // start of the current token
	PrevEnd int // end of the previous token
	Token   int
	Lexeme  Lexeme
}

func (self *Lexer) nextRune() (rune, int) {
	if self.Cursor == len(self.Source) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(self.Source[self.Cursor:])
}

func (self *Lexer) nextRune2() rune {
	if self.Cursor+1 >= len(self.Source) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(self.Source[self.Cursor+1:])
	return r
}

func (self *Lexer) yield(tk int, sz int) int {
	self.Token = tk
	self.Cursor += sz
	return tk
}

func (self *Lexer) eof() int {
	self.Token = TkEof
	return TkEof
}

// generate a debug position for diagnostic information output
func (self *Lexer) pos(where int) (int, int) {
	line := 1
	col := 1
	idx := 0

	for idx < where && idx < len(self.Source) {
		r, sz := utf8.DecodeRuneInString(self.Source[idx:])
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		idx += sz
	}

	return line, col
}

func (self *Lexer) dinfo() string {
	line, col := self.pos(self.Cursor)
	return fmt.Sprintf("around position(%d: %d)", line, col)
}

func (self *Lexer) err(msg string) int {
	self.Lexeme.Text = fmt.Sprintf("%s: %s", self.dinfo(), msg)
	self.Token = TkError
	return TkError
}

func (self *Lexer) errE(err error) int {
	return self.err(err.Error())
}

func (self *Lexer) errUtf8() int {
	return self.err("invalid utf8 character")
}

func (self *Lexer) lexLineComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				return true // reaching end of the file
			} else {
				self.errUtf8()
				return false
			}
		}

		self.Cursor += sz

		if r == '\n' {
			break
		}
	}

	return true
}

func (self *Lexer) lexBlockComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				self.err("block comment is not closed properly")
			} else {
				self.errUtf8()
			}
			return false
		}

		if r == '*' && self.nextRune2() == '/' {
			self.Cursor += 2
			break
		}

		self.Cursor += sz
	}

	return true
}

// only decimal integers show up in the generated programs
func (self *Lexer) lexNum() int {
	start := self.Cursor
	for {
		r, sz := self.nextRune()
		if r < '0' || r > '9' {
			break
		}
		self.Cursor += sz
	}

	i, err := strconv.ParseInt(self.Source[start:self.Cursor], 10, 64)
	if err != nil {
		return self.errE(err)
	}
	self.Lexeme.Int = i
	self.Token = TkInt
	return TkInt
}

func (self *Lexer) lexStr() int {
	buf := &bytes.Buffer{}

	self.Cursor++
	self.Lexeme.Text = ""

	for {
		c, sz := self.nextRune()

		if c == utf8.RuneError {
			if sz == 0 {
				return self.err("string literal is not closed by quote properly")
			} else {
				return self.errUtf8()
			}
		}

		if c == '"' {
			self.Cursor += sz
			break
		}

		if c == '\n' {
			return self.err("new line inside of string literal")
		}

		if c == '\\' {
			cc := self.nextRune2()
			switch cc {
			case 't':
				buf.WriteRune('\t')
			case 'n':
				buf.WriteRune('\n')
			case 'r':
				buf.WriteRune('\r')
			case '"':
				buf.WriteRune('"')
			case '\\':
				buf.WriteRune('\\')
			default:
				return self.err("unknown escape sequences inside of string literal")
			}
			self.Cursor++
		} else {
			buf.WriteRune(c)
		}

		self.Cursor += sz
	}

	self.Lexeme.Text = buf.String()
	self.Token = TkStr
	return self.Token
}

func (self *Lexer) isIdChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (self *Lexer) isIdLeadingChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

var keywords = map[string]int{
	"fun":    TkFun,
	"struct": TkStruct,
	"var":    TkVar,
	"for":    TkFor,
	"if":     TkIf,
	"else":   TkElse,
	"return": TkReturn,
	"nil":    TkNil,
}

func (self *Lexer) scanId() string {
	start := self.Cursor
	for {
		c, sz := self.nextRune()
		if c == utf8.RuneError || !self.isIdChar(c) {
			break
		}
		self.Cursor += sz
	}
	return self.Source[start:self.Cursor]
}

func (self *Lexer) lexKeywordOrId(c rune) int {
	if !self.isIdLeadingChar(c) {
		return self.err(fmt.Sprintf("unexpected character %q", c))
	}

	id := self.scanId()
	self.Lexeme.Text = id
	if tk, ok := keywords[id]; ok {
		self.Token = tk
		return tk
	}
	self.Token = TkId
	return TkId
}

func (self *Lexer) lexBuiltin() int {
	self.Cursor++ // skip '@'
	c, _ := self.nextRune()
	if !self.isIdLeadingChar(c) {
		return self.err("expect builtin name after '@'")
	}
	self.Lexeme.Text = self.scanId()
	self.Token = TkBuiltin
	return TkBuiltin
}

func (self *Lexer) Next() int {
	if self.Token == TkEof || (self.Token == TkError && self.Cursor > 0) {
		return self.Token
	}
	self.PrevEnd = self.Cursor
	return self.next()
}

func (self *Lexer) next() int {
	for {
		self.Start = self.Cursor
		c, sz := self.nextRune()
		if c == utf8.RuneError {
			if sz == 0 {
				return self.eof()
			} else {
				return self.errUtf8()
			}
		}

		switch c {
		case ',':
			return self.yield(TkComma, 1)
		case ':':
			return self.yield(TkColon, 1)
		case ';':
			return self.yield(TkSemicolon, 1)
		case '.':
			return self.yield(TkDot, 1)

		case '[':
			return self.yield(TkLSqr, 1)
		case ']':
			return self.yield(TkRSqr, 1)
		case '{':
			return self.yield(TkLBra, 1)
		case '}':
			return self.yield(TkRBra, 1)
		case '(':
			return self.yield(TkLPar, 1)
		case ')':
			return self.yield(TkRPar, 1)

		case '+':
			return self.yield(TkAdd, 1)
		case '-':
			if self.nextRune2() == '>' {
				return self.yield(TkArrow, 2)
			}
			return self.yield(TkSub, 1)
		case '*':
			return self.yield(TkMul, 1)
		case '%':
			return self.yield(TkMod, 1)
		case '/':
			cc := self.nextRune2()
			if cc == '/' {
				self.Cursor += 2
				if !self.lexLineComment() {
					return self.Token
				}
			} else if cc == '*' {
				self.Cursor += 2
				if !self.lexBlockComment() {
					return self.Token
				}
			} else {
				return self.yield(TkDiv, 1)
			}

		case '&':
			if self.nextRune2() == '&' {
				return self.yield(TkAnd, 2)
			}
			return self.yield(TkAddr, 1)

		case '|':
			if self.nextRune2() == '|' {
				return self.yield(TkOr, 2)
			}
			return self.err("are you missing '|' for or operator?")

		case '=':
			if self.nextRune2() == '=' {
				return self.yield(TkEq, 2)
			}
			return self.yield(TkAssign, 1)

		case '>':
			if self.nextRune2() == '=' {
				return self.yield(TkGe, 2)
			}
			return self.yield(TkGt, 1)

		case '<':
			if self.nextRune2() == '=' {
				return self.yield(TkLe, 2)
			}
			return self.yield(TkLt, 1)

		case '!':
			if self.nextRune2() == '=' {
				return self.yield(TkNe, 2)
			}
			return self.yield(TkNot, 1)

		case ' ', '\r', '\t', '\n', '\v':
			self.Cursor++

		case '"':
			return self.lexStr()

		case '@':
			return self.lexBuiltin()

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return self.lexNum()

		default:
			return self.lexKeywordOrId(c)
		}
	}
}

func newLexer(source string) *Lexer {
	return &Lexer{
		Source: source,
		Cursor: 0,
		Token:  TkError,
	}
}
