package cg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"text/template"

	gawki "github.com/benhoyt/goawk/interp"
	gawkp "github.com/benhoyt/goawk/parser"
	"github.com/dianpeng/sortgen/plan"
	"github.com/dianpeng/sortgen/tpl"
	"github.com/stretchr/testify/assert"
)

// runAwk feeds the generated program to an awk script and returns what the
// script printed. The scripts below are the quick greps one would do by hand
// on the emitted file.
func runAwk(
	script string,
	input string,
) (string, error) {
	prog, err := gawkp.ParseProgram(
		[]byte(script),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("[awk]: %s", err)
	}

	buf := strings.Builder{}
	interp, err := gawki.New(prog)
	if err != nil {
		return "", err
	}
	config := &gawki.Config{
		Output: &buf,
		Stdin:  strings.NewReader(input),
	}
	if _, err := interp.Execute(config); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func awkLines(
	t *testing.T,
	script string,
	input string,
) []string {
	out, err := runAwk(script, input)
	if err != nil {
		t.Fatalf("awk: %s", err)
	}
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func genMatrix(
	t *testing.T,
	m plan.Matrix,
	config *Config,
) string {
	p, err := plan.New(m)
	if err != nil {
		t.Fatalf("plan: %s", err)
	}
	code, err := Generate(p, config)
	if err != nil {
		t.Fatalf("generate: %s", err)
	}
	return code
}

func genDefault(t *testing.T) string {
	return genMatrix(t, plan.DefaultMatrix(), nil)
}

const singleTripleProgram = `struct SortRow1 {
  c1 : Integer
}

fun compareFn1(lhs: *SortRow1, rhs: *SortRow1) -> int32 {
  if (lhs.c1 < rhs.c1) {
    return -1
  }
  if (lhs.c1 > rhs.c1) {
    return 1
  }
  return 0
}

struct State {
  sorter1: Sorter
  ret_val : int32
}

fun setUpState(execCtx: *ExecutionContext, state: *State) -> nil {
  @sorterInit(&state.sorter1, @execCtxGetMem(execCtx), compareFn1, @sizeOf(SortRow1))
  state.ret_val = 0
}

fun tearDownState(execCtx: *ExecutionContext, state: *State) -> nil {
  @sorterFree(&state.sorter1)
}

fun buildCol1Row1Car1(execCtx: *ExecutionContext, state: *State) -> nil {
  @execCtxStartResourceTracker(execCtx)
  var sorter = &state.sorter1
  var tvi: TableVectorIterator
  var col_oids : [1]uint32
  col_oids[0] = 5
  @tableIterInitBind(&tvi, execCtx, "IntegerCol5Row1Car1", col_oids)
  for (@tableIterAdvance(&tvi)) {
    var vec = @tableIterGetPCI(&tvi)
    for (; @pciHasNext(vec); @pciAdvance(vec)) {
      var row = @ptrCast(*SortRow1, @sorterInsert(sorter))
      row.c1 = @pciGetInt(vec, 0)
    }
  }
  @tableIterClose(&tvi)
  @sorterSort(sorter)
  @execCtxEndResourceTracker(execCtx, @stringToSql("sortbuild, 1, 4, 1"))
}

fun probeCol1Row1Car1(execCtx: *ExecutionContext, state: *State) -> nil {
  @execCtxStartResourceTracker(execCtx)
  var sort_iter: SorterIterator
  for (@sorterIterInit(&sort_iter, &state.sorter1);
    @sorterIterHasNext(&sort_iter);
    @sorterIterNext(&sort_iter)) {
    var row = @ptrCast(*SortRow1, @sorterIterGetRow(&sort_iter))
    state.ret_val = state.ret_val + 1
  }
  @sorterIterClose(&sort_iter)
  @execCtxEndResourceTracker(execCtx, @stringToSql("sortprobe, 1, 4, 1"))
}

fun main(execCtx: *ExecutionContext) -> int32 {
  var state: State

  setUpState(execCtx, &state)
  buildCol1Row1Car1(execCtx, &state)
  probeCol1Row1Car1(execCtx, &state)
  tearDownState(execCtx, &state)

  return state.ret_val
}

`

func TestSingleTriple(t *testing.T) {
	assert := assert.New(t)
	code := genMatrix(t, plan.Matrix{
		Columns:       []int{1},
		Rows:          []int{1},
		Cardinalities: []int{1},
	}, nil)
	assert.Equal(singleTripleProgram, code)

	prog, err := tpl.Parse(code)
	assert.Nil(err)
	assert.Nil(tpl.Check(prog))
}

func TestBanner(t *testing.T) {
	assert := assert.New(t)
	m := plan.Matrix{
		Columns:       []int{2},
		Rows:          []int{10},
		Cardinalities: []int{2},
	}
	plain := genMatrix(t, m, &Config{})
	commented := genMatrix(t, m, &Config{Comment: true})

	assert.NotContains(plain, "//")
	assert.Contains(commented, "// row shapes\n")
	assert.Contains(commented, "// driver\n")

	// banners are comments, the program itself is unchanged
	p1, err := tpl.Parse(plain)
	assert.Nil(err)
	p2, err := tpl.Parse(commented)
	assert.Nil(err)
	assert.Equal(len(p1.Decls), len(p2.Decls))
}

func TestDefaultProgram(t *testing.T) {
	assert := assert.New(t)
	code := genDefault(t)

	prog, err := tpl.Parse(code)
	assert.Nil(err)
	assert.Nil(tpl.Check(prog))

	// 5 row shapes, State, 5 comparators, setup, teardown, 960 build/probe
	// functions and main
	assert.Equal(5+1+5+2+960+1, len(prog.Decls))
	last, ok := prog.Decls[len(prog.Decls)-1].(*tpl.FunDecl)
	assert.True(ok)
	assert.Equal("main", last.Name)

	{
		lines := awkLines(t, `
/^fun build/ { b++ }
/^fun probe/ { p++ }
/^struct SortRow/ { s++ }
/^fun compareFn/ { c++ }
END { print b, p, s, c }
`, code)
		assert.Equal([]string{"480 480 5 5"}, lines)
	}

	// every function name is declared exactly once
	{
		dup := awkLines(t, `
/^fun / { split($2, a, "("); n[a[1]]++ }
END { for (k in n) if (n[k] != 1) print k }
`, code)
		assert.Nil(dup)
	}
}

func TestSchemaAndComparator(t *testing.T) {
	assert := assert.New(t)
	code := genDefault(t)

	// number of fields of every row shape
	{
		lines := awkLines(t, `
/^struct SortRow/ { name = $2; next }
name != "" && /^}/ { print name, n; name = ""; n = 0; next }
name != "" { n++ }
`, code)
		assert.Equal([]string{
			"SortRow1 1",
			"SortRow2 2",
			"SortRow3 3",
			"SortRow4 4",
			"SortRow5 5",
		}, lines)
	}

	// comparator fields, in the order they are compared
	{
		lines := awkLines(t, `
/^fun compareFn/ { split($2, a, "("); name = a[1]; order = ""; next }
name != "" && /lhs\.c[0-9]+ </ { f = $2; sub(/^\(lhs\./, "", f); order = order " " f }
name != "" && /^}/ { print name order; name = "" }
`, code)
		assert.Equal([]string{
			"compareFn1 c1",
			"compareFn2 c1 c2",
			"compareFn3 c1 c2 c3",
			"compareFn4 c1 c2 c3 c4",
			"compareFn5 c1 c2 c3 c4 c5",
		}, lines)
	}
}

func TestBuildProjection(t *testing.T) {
	assert := assert.New(t)
	code := genMatrix(t, plan.Matrix{
		Columns:       []int{3},
		Rows:          []int{1000},
		Cardinalities: []int{10},
	}, nil)

	assert.Contains(code, "fun buildCol3Row1000Car10(execCtx: *ExecutionContext, state: *State) -> nil {")
	assert.Contains(code, "fun probeCol3Row1000Car10(execCtx: *ExecutionContext, state: *State) -> nil {")
	assert.Contains(code, "  var col_oids : [3]uint32\n  col_oids[0] = 5\n  col_oids[1] = 4\n  col_oids[2] = 3\n")
	assert.Contains(code, `@tableIterInitBind(&tvi, execCtx, "IntegerCol5Row1000Car10", col_oids)`)
	assert.Contains(code, "      row.c1 = @pciGetInt(vec, 0)\n      row.c2 = @pciGetInt(vec, 1)\n      row.c3 = @pciGetInt(vec, 2)\n")
	assert.Contains(code, `@stringToSql("sortbuild, 1000, 12, 10")`)
	assert.Contains(code, `@stringToSql("sortprobe, 1000, 12, 10")`)
}

func TestResourceTags(t *testing.T) {
	assert := assert.New(t)
	code := genDefault(t)

	tags := awkLines(t, `
/@stringToSql/ { split($0, a, "\""); print a[2] }
`, code)
	assert.Equal(960, len(tags))

	p, err := plan.Default()
	assert.Nil(err)

	seen := map[string]bool{}
	for idx, tag := range tags {
		assert.False(seen[tag], tag)
		seen[tag] = true

		role, tr, err := plan.ParseResourceTag(tag)
		assert.Nil(err)
		if idx%2 == 0 {
			assert.Equal(plan.RoleBuild, role)
		} else {
			assert.Equal(plan.RoleProbe, role)
		}
		assert.Equal(p.Funcs[idx].Triple, tr)
	}
	assert.Equal("sortbuild, 1, 4, 1", tags[0])
	assert.Equal("sortprobe, 1, 4, 1", tags[1])
	assert.Equal("sortprobe, 1000000, 20, 100", tags[959])
}

func TestDriverOrder(t *testing.T) {
	assert := assert.New(t)
	code := genDefault(t)

	calls := awkLines(t, `
/^fun main\(/ { in_main = 1; next }
in_main && /^  [A-Za-z][A-Za-z0-9]*\(/ { split($1, a, "("); print a[1] }
`, code)
	assert.Equal(4*480, len(calls))

	p, err := plan.Default()
	assert.Nil(err)

	// setup < build < probe < teardown for every triple, pairs never overlap
	for i := 0; i < 480; i++ {
		b := p.Funcs[2*i]
		pr := p.Funcs[2*i+1]
		assert.Equal([]string{
			plan.SetupName,
			b.Name,
			pr.Name,
			plan.TeardownName,
		}, calls[4*i:4*i+4])
	}

	assert.True(strings.HasSuffix(code, "  return state.ret_val\n}\n\n"))
	assert.Contains(code, "fun main(execCtx: *ExecutionContext) -> int32 {\n  var state: State\n")
}

func TestStateSection(t *testing.T) {
	assert := assert.New(t)
	code := genDefault(t)

	assert.Contains(code, "struct State {\n  sorter1: Sorter\n  sorter2: Sorter\n  sorter3: Sorter\n  sorter4: Sorter\n  sorter5: Sorter\n  ret_val : int32\n}\n")

	lines := awkLines(t, `
/^fun setUpState/ { in_setup = 1; next }
in_setup && /@sorterInit/ { n++ }
in_setup && /^}/ { in_setup = 0 }
/^fun tearDownState/ { in_td = 1; next }
in_td && /@sorterFree/ { m++ }
in_td && /^}/ { in_td = 0 }
END { print n, m }
`, code)
	assert.Equal([]string{"5 5"}, lines)

	for c := 1; c <= 5; c++ {
		assert.Contains(code, fmt.Sprintf(
			"@sorterInit(&state.sorter%d, @execCtxGetMem(execCtx), compareFn%d, @sizeOf(SortRow%d))",
			c, c, c,
		))
	}
}

func TestNarrowedMatrix(t *testing.T) {
	assert := assert.New(t)
	code := genMatrix(t, plan.Matrix{
		Columns:       []int{2, 4},
		Rows:          []int{1, 5},
		Cardinalities: []int{1},
	}, nil)

	prog, err := tpl.Parse(code)
	assert.Nil(err)
	assert.Nil(tpl.Check(prog))

	assert.NotNil(prog.Struct("SortRow2"))
	assert.NotNil(prog.Struct("SortRow4"))
	assert.Nil(prog.Struct("SortRow1"))
	assert.Equal(2+2+1+2+8+1, len(prog.Decls))

	n, err := runAwk(`/^fun (build|probe)/ { n++ } END { print n }`, code)
	assert.Nil(err)
	v, err := strconv.Atoi(strings.TrimSpace(n))
	assert.Nil(err)
	assert.Equal(8, v)
}

func TestGenerateErrors(t *testing.T) {
	assert := assert.New(t)

	{
		_, err := Generate(nil, nil)
		assert.Error(err)
	}

	// invalid matrix
	{
		p := &plan.Plan{
			Matrix: plan.Matrix{
				Columns:       []int{6},
				Rows:          []int{1},
				Cardinalities: []int{1},
			},
		}
		_, err := Generate(p, nil)
		assert.Error(err)
		assert.True(errors.Is(err, plan.ErrInvalidMatrix))
		assert.True(strings.HasPrefix(err.Error(), "[plan]: "))
	}

	// name collision
	{
		p, err := plan.New(plan.Matrix{
			Columns:       []int{1},
			Rows:          []int{1},
			Cardinalities: []int{1},
		})
		assert.Nil(err)
		p.Funcs[1].Name = p.Funcs[0].Name
		_, err = Generate(p, nil)
		assert.True(errors.Is(err, plan.ErrDuplicateName))

		p.Funcs[1].Name = "main"
		_, err = Generate(p, nil)
		assert.True(errors.Is(err, plan.ErrDuplicateName))
	}

	// probe without build
	{
		p, err := plan.New(plan.Matrix{
			Columns:       []int{1},
			Rows:          []int{1},
			Cardinalities: []int{1},
		})
		assert.Nil(err)
		p.Funcs = p.Funcs[1:]
		_, err = Generate(p, nil)
		assert.Error(err)
		assert.True(strings.HasPrefix(err.Error(), "[build/probe]: ") ||
			strings.HasPrefix(err.Error(), "[driver]: "))
	}
}

func TestEmitterErrors(t *testing.T) {
	assert := assert.New(t)

	assert.Error(genSchema(newTplWriter(), 0))
	assert.Error(genSchema(newTplWriter(), 6))
	assert.Error(genComparator(newTplWriter(), 7))
	assert.Error(genState(newTplWriter(), nil))
	assert.Error(genSetup(newTplWriter(), []int{1, 9}))
	assert.Error(genTeardown(newTplWriter(), []int{}))
	assert.Error(genDriver(newTplWriter(), nil))

	tr := plan.Triple{Columns: 2, Rows: 10, Cardinality: 2}
	build := plan.Func{Role: plan.RoleBuild, Triple: tr, Name: plan.FuncName(plan.RoleBuild, tr)}
	probe := plan.Func{Role: plan.RoleProbe, Triple: tr, Name: plan.FuncName(plan.RoleProbe, tr)}

	assert.Error(genBuild(newTplWriter(), &probe))
	assert.Error(genProbe(newTplWriter(), &build))
	assert.Error(genFunc(newTplWriter(), &plan.Func{Role: plan.Role(9), Triple: tr, Name: "x"}))
	assert.Error(genFunc(newTplWriter(), &plan.Func{
		Role:   plan.RoleBuild,
		Triple: plan.Triple{Columns: 2, Rows: 0, Cardinality: 2},
		Name:   "x",
	}))

	// build never probed, two builds in a row
	assert.Error(genDriver(newTplWriter(), []plan.Func{build}))
	assert.Error(genDriver(newTplWriter(), []plan.Func{build, build, probe}))
	assert.Nil(genDriver(newTplWriter(), []plan.Func{build, probe}))
}

func TestTplWriter(t *testing.T) {
	assert := assert.New(t)

	{
		w := newTplWriter()
		w.Line("fun %[a](%[ b ]) -> nil {", tplWriterCtx{"a": "f", "b": 1})
		w.Indent()
		w.Chunk(`
x = 1

y = %[a]
`, tplWriterCtx{"a": 2})
		w.Dedent()
		w.Line("}", nil)
		assert.Nil(w.Err())
		assert.Equal("fun f(1) -> nil {\n  x = 1\n\n  y = 2\n}\n", w.Flush())
	}

	{
		w := newTplWriter()
		w.Line("%[missing]", tplWriterCtx{})
		w.Line("%[other]", nil)
		assert.Error(w.Err())
		assert.Equal("variable(missing) is not found", w.Err().Error())
	}

	{
		w := newTplWriter()
		w.Line("%[open", nil)
		assert.Error(w.Err())
	}

	{
		w := newTplWriter()
		w.Dedent()
		assert.Error(w.Err())
	}

	{
		w := newTplWriter()
		bad := template.Must(template.New("bad").Parse("{{.Nope}}"))
		w.Template(bad, struct{}{})
		assert.Error(w.Err())
	}
}
