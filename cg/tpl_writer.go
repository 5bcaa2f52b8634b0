package cg

import (
	"fmt"
	"strings"
	"text/template"
)

// A small template writer used for dumping the generated program. Every
// emitter owns one writer, nothing is printed to a process wide stream.
//
// Lines and chunks may carry a substitution of the form %[name], which is
// replaced by the value registered under name in the writer context. A
// missing name is a generation error, the writer refuses to guess.

type tplWriterCtx map[string]interface{}

type tplWriter struct {
	indent int              // current indent level for formatting
	buf    *strings.Builder // output buffer
	err    error            // first error seen, sticky
}

const tplIndent = "  "

func newTplWriter() *tplWriter {
	return &tplWriter{
		buf: &strings.Builder{},
	}
}

func (self *tplWriter) Err() error {
	return self.err
}

func (self *tplWriter) fail(err error) {
	if self.err == nil {
		self.err = err
	}
}

func (self *tplWriter) Indent() {
	self.indent++
}

func (self *tplWriter) Dedent() {
	if self.indent == 0 {
		self.fail(fmt.Errorf("unbalanced dedent"))
		return
	}
	self.indent--
}

func (self *tplWriter) sub(
	l string,
	ctx tplWriterCtx,
) string {
	out := &strings.Builder{}
	for {
		pos := strings.Index(l, "%[")
		if pos == -1 {
			out.WriteString(l)
			break
		}
		end := strings.Index(l[pos:], "]")
		if end == -1 {
			self.fail(fmt.Errorf("substitution %q is not closed by ]", l[pos:]))
			out.WriteString(l)
			break
		}
		name := strings.TrimSpace(l[pos+2 : pos+end])
		out.WriteString(l[:pos])
		if v, ok := ctx[name]; ok {
			out.WriteString(fmt.Sprint(v))
		} else {
			self.fail(fmt.Errorf("variable(%s) is not found", name))
		}
		l = l[pos+end+1:]
	}
	return out.String()
}

func (self *tplWriter) Line(
	l string,
	ctx tplWriterCtx,
) {
	self.buf.WriteString(strings.Repeat(tplIndent, self.indent))
	self.buf.WriteString(self.sub(l, ctx))
	self.buf.WriteString("\n")
}

func (self *tplWriter) Blank() {
	self.buf.WriteString("\n")
}

// Chunk writes a multi line snippet, the leading and trailing empty line of
// the snippet are dropped so it can be written as a raw string literal.
func (self *tplWriter) Chunk(
	c string,
	ctx tplWriterCtx,
) {
	c = strings.TrimPrefix(c, "\n")
	c = strings.TrimSuffix(c, "\n")
	for _, l := range strings.Split(c, "\n") {
		if l == "" {
			self.Blank()
		} else {
			self.Line(l, ctx)
		}
	}
}

func (self *tplWriter) Template(
	t *template.Template,
	data interface{},
) {
	out := &strings.Builder{}
	if err := t.Execute(out, data); err != nil {
		self.fail(err)
		return
	}
	self.Chunk(out.String(), nil)
}

func (self *tplWriter) Flush() string {
	return self.buf.String()
}
