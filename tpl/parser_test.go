package tpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleProgram = `
struct SortRow2 {
  c1 : Integer
  c2 : Integer
}

fun compareFn2(lhs: *SortRow2, rhs: *SortRow2) -> int32 {
  if (lhs.c1 < rhs.c1) {
    return -1
  }
  if (lhs.c1 > rhs.c1) {
    return 1
  }
  if (lhs.c2 < rhs.c2) {
    return -1
  }
  if (lhs.c2 > rhs.c2) {
    return 1
  }
  return 0
}

struct State {
  sorter2: Sorter
  ret_val : int32
}

fun setUpState(execCtx: *ExecutionContext, state: *State) -> nil {
  @sorterInit(&state.sorter2, @execCtxGetMem(execCtx), compareFn2, @sizeOf(SortRow2))
  state.ret_val = 0
}

fun tearDownState(execCtx: *ExecutionContext, state: *State) -> nil {
  @sorterFree(&state.sorter2)
}

fun buildCol2Row5Car2(execCtx: *ExecutionContext, state: *State) -> nil {
  @execCtxStartResourceTracker(execCtx)
  var sorter = &state.sorter2
  var tvi: TableVectorIterator
  var col_oids : [2]uint32
  col_oids[0] = 5
  col_oids[1] = 4
  @tableIterInitBind(&tvi, execCtx, "IntegerCol5Row5Car2", col_oids)
  for (@tableIterAdvance(&tvi)) {
    var vec = @tableIterGetPCI(&tvi)
    for (; @pciHasNext(vec); @pciAdvance(vec)) {
      var row = @ptrCast(*SortRow2, @sorterInsert(sorter))
      row.c1 = @pciGetInt(vec, 0)
      row.c2 = @pciGetInt(vec, 1)
    }
  }
  @tableIterClose(&tvi)
  @sorterSort(sorter)
  @execCtxEndResourceTracker(execCtx, @stringToSql("sortbuild, 5, 8, 2"))
}

fun probeCol2Row5Car2(execCtx: *ExecutionContext, state: *State) -> nil {
  @execCtxStartResourceTracker(execCtx)
  var sort_iter: SorterIterator
  for (@sorterIterInit(&sort_iter, &state.sorter2);
    @sorterIterHasNext(&sort_iter);
    @sorterIterNext(&sort_iter)) {
    var row = @ptrCast(*SortRow2, @sorterIterGetRow(&sort_iter))
    state.ret_val = state.ret_val + 1
  }
  @sorterIterClose(&sort_iter)
  @execCtxEndResourceTracker(execCtx, @stringToSql("sortprobe, 5, 8, 2"))
}

fun main(execCtx: *ExecutionContext) -> int32 {
  var state: State

  setUpState(execCtx, &state)
  buildCol2Row5Car2(execCtx, &state)
  probeCol2Row5Car2(execCtx, &state)
  tearDownState(execCtx, &state)

  return state.ret_val
}
`

func TestParseProgram(t *testing.T) {
	assert := assert.New(t)
	prog, err := Parse(sampleProgram)
	assert.Nil(err)
	if !assert.NotNil(prog) {
		return
	}

	assert.Equal(8, len(prog.Decls))
	assert.Equal(DeclStruct, prog.Decls[0].Type())
	assert.Equal("SortRow2", prog.Decls[0].DeclName())
	assert.Equal("main", prog.Decls[7].DeclName())

	row := prog.Struct("SortRow2")
	assert.Equal(2, len(row.Fields))
	assert.Equal("c2", row.Fields[1].Name)
	assert.Equal("Integer", row.Fields[1].Ty.String())

	cmp := prog.Fun("compareFn2")
	assert.Equal("fun compareFn2(lhs: *SortRow2, rhs: *SortRow2) -> int32", cmp.Signature())
	assert.Equal(5, len(cmp.Body))
	{
		s, ok := cmp.Body[0].(*IfStmt)
		assert.True(ok)
		b, ok := s.Cond.(*Binary)
		assert.True(ok)
		assert.Equal(TkLt, b.Op)
		assert.Equal("lhs.c1", b.L.CInfo().Snippet)
		r, ok := s.Then[0].(*ReturnStmt)
		assert.True(ok)
		u, ok := r.X.(*Unary)
		assert.True(ok)
		assert.Equal(TkSub, u.Op)
	}

	build := prog.Fun("buildCol2Row5Car2")
	assert.Nil(build.Ret)
	{
		v := build.Body[3].(*VarStmt)
		assert.Equal("col_oids", v.Name)
		assert.Equal("[2]uint32", v.Ty.String())

		f := build.Body[7].(*ForStmt)
		assert.NotNil(f.Cond)
		assert.Nil(f.Init)
		inner := f.Body[1].(*ForStmt)
		assert.Nil(inner.Init)
		assert.NotNil(inner.Cond)
		assert.NotNil(inner.Post)

		rowVar := inner.Body[0].(*VarStmt)
		cast := rowVar.Init.(*Builtin)
		assert.Equal("ptrCast", cast.Name)
		assert.Equal("*SortRow2", cast.Args[0].(*TypeExpr).Ty.String())
	}

	probe := prog.Fun("probeCol2Row5Car2")
	{
		f := probe.Body[2].(*ForStmt)
		assert.NotNil(f.Init)
		assert.NotNil(f.Cond)
		assert.NotNil(f.Post)
		as := f.Body[1].(*AssignStmt)
		assert.Equal("state.ret_val", as.L.CInfo().Snippet)
		assert.Equal("state.ret_val + 1", as.R.CInfo().Snippet)
	}

	assert.Equal(
		[]string{"setUpState", "buildCol2Row5Car2", "probeCol2Row5Car2", "tearDownState"},
		CallsOf(prog.Fun("main").Body),
	)
}

func TestParsePrecedence(t *testing.T) {
	assert := assert.New(t)
	prog, err := Parse(`fun f(a: int32) -> int32 { return a + 2 * 3 < 7 && !(a == 1) }`)
	assert.Nil(err)
	r := prog.Fun("f").Body[0].(*ReturnStmt)
	and := r.X.(*Binary)
	assert.Equal(TkAnd, and.Op)
	lt := and.L.(*Binary)
	assert.Equal(TkLt, lt.Op)
	add := lt.L.(*Binary)
	assert.Equal(TkAdd, add.Op)
	mul := add.R.(*Binary)
	assert.Equal(TkMul, mul.Op)
	not := and.R.(*Unary)
	assert.Equal(TkNot, not.Op)
}

func TestParseElse(t *testing.T) {
	assert := assert.New(t)
	prog, err := Parse(`
fun f(a: int32) -> int32 {
  if (a < 0) {
    return -1
  } else if (a > 0) {
    return 1
  } else {
    return 0
  }
}`)
	assert.Nil(err)
	s := prog.Fun("f").Body[0].(*IfStmt)
	elif := s.Else[0].(*IfStmt)
	assert.Equal(1, len(elif.Else))
}

func TestParseError(t *testing.T) {
	assert := assert.New(t)
	bad := func(src string) {
		_, err := Parse(src)
		assert.Error(err, src)
	}
	bad(`var x: int32`)
	bad(`struct S { a Integer }`)
	bad(`struct S { a : }`)
	bad(`fun f() { }`)
	bad(`fun f(a int32) -> nil { }`)
	bad(`fun f() -> nil { var x }`)
	bad(`fun f() -> nil { x = }`)
	bad(`fun f() -> nil { for (x = 1) {} }`)
	bad(`fun f() -> nil { @g(1 2) }`)
	bad(`fun f() -> nil { `)
	bad(`fun f() -> nil { "abc }`)
}
