package vm

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dianpeng/sortgen/cg"
	"github.com/dianpeng/sortgen/plan"
	"github.com/dianpeng/sortgen/tpl"
	"github.com/stretchr/testify/assert"
)

func genSource(
	t *testing.T,
	m plan.Matrix,
) string {
	p, err := plan.New(m)
	if err != nil {
		t.Fatalf("plan: %s", err)
	}
	code, err := cg.Generate(p, &cg.Config{})
	if err != nil {
		t.Fatalf("generate: %s", err)
	}
	return code
}

func compile(
	t *testing.T,
	src string,
) *tpl.Program {
	prog, err := tpl.Parse(src)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if err := tpl.Check(prog); err != nil {
		t.Fatalf("check: %s", err)
	}
	return prog
}

func strictRuntime() *Runtime {
	rt := NewRuntime()
	rt.Strict = true
	return rt
}

// fakeClock advances by step on every read.
func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestRunSingleTriple(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{1},
		Rows:          []int{5},
		Cardinalities: []int{2},
	})
	rt := strictRuntime()
	rt.clock = fakeClock(10 * time.Microsecond)

	v, err := New(compile(t, src), rt).Run("main")
	assert.Nil(err)
	assert.Equal(int32(5), v)

	assert.Equal(2, len(rt.Records))
	assert.Equal("sortbuild, 5, 4, 2", rt.Records[0].Tag)
	assert.Equal("sortprobe, 5, 4, 2", rt.Records[1].Tag)
	assert.Equal(10*time.Microsecond, rt.Records[0].Elapsed)
}

func TestRunSmallVectors(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{3},
		Rows:          []int{50},
		Cardinalities: []int{5},
	})
	rt := strictRuntime()
	rt.VectorSize = 7

	v, err := New(compile(t, src), rt).Run("main")
	assert.Nil(err)
	assert.Equal(int32(50), v)
}

func TestRunMatrix(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{1, 2, 3, 4, 5},
		Rows:          []int{1, 5, 10},
		Cardinalities: []int{1, 100},
	})
	rt := strictRuntime()

	// setup resets the result, main reports the last probe
	v, err := New(compile(t, src), rt).Run("main")
	assert.Nil(err)
	assert.Equal(int32(10), v)
	assert.Equal(2*5*3*2, len(rt.Records))

	for idx, r := range rt.Records {
		role, _, err := plan.ParseResourceTag(r.Tag)
		assert.Nil(err)
		if idx%2 == 0 {
			assert.Equal(plan.RoleBuild, role)
		} else {
			assert.Equal(plan.RoleProbe, role)
		}
	}
}

// the build side leaves the sorter ordered by the generated comparator
func TestBuildSortsRows(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{3},
		Rows:          []int{500},
		Cardinalities: []int{5},
	})
	prog := compile(t, src)
	rt := strictRuntime()
	it := New(prog, rt)

	ctx := rt.newExecCtx()
	state := &Cell{V: it.newStruct(prog.Struct("State"))}

	_, err := it.Call("setUpState", ctx, state)
	assert.Nil(err)
	_, err = it.Call("buildCol3Row500Car5", ctx, state)
	assert.Nil(err)

	slot, ok := state.V.(*Struct).Field("sorter3")
	assert.True(ok)
	s := slot.V.(*Sorter)
	assert.Equal(500, s.Len())
	assert.True(s.sorted)

	key := func(c *Cell) []int64 {
		row := c.V.(*Struct)
		out := []int64{}
		for _, f := range row.Fields {
			out = append(out, f.V.(int64))
		}
		return out
	}
	less := func(a, b []int64) bool {
		for i := range a {
			if a[i] != b[i] {
				return a[i] < b[i]
			}
		}
		return false
	}
	for i := 1; i < s.Len(); i++ {
		assert.False(less(key(s.rows[i]), key(s.rows[i-1])), "row %d out of order", i)
	}

	// c1 comes from the last source column, c3 from the third one
	rel, err := rt.Relations.Relation("IntegerCol5Row500Car5")
	assert.Nil(err)
	count := map[[3]int64]int{}
	for _, r := range rel.Rows {
		count[[3]int64{r[4], r[3], r[2]}]++
	}
	for _, c := range s.rows {
		k := key(c)
		count[[3]int64{k[0], k[1], k[2]}]--
	}
	for k, n := range count {
		assert.Equal(0, n, "%v", k)
	}

	_, err = it.Call("probeCol3Row500Car5", ctx, state)
	assert.Nil(err)
	ret, _ := state.V.(*Struct).Field("ret_val")
	assert.Equal(int64(500), ret.V)

	_, err = it.Call("tearDownState", ctx, state)
	assert.Nil(err)
	assert.Nil(rt.finish())
}

func TestComparatorOrdering(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{3},
		Rows:          []int{1},
		Cardinalities: []int{1},
	})
	prog := compile(t, src)
	it := New(prog, nil)
	shape := prog.Struct("SortRow3")

	mk := func(v [3]int64) *Cell {
		s := it.newStruct(shape)
		for i := range v {
			s.Fields[i].V = v[i]
		}
		return &Cell{V: s}
	}

	all := [][3]int64{}
	for a := int64(0); a < 3; a++ {
		for b := int64(0); b < 3; b++ {
			for c := int64(0); c < 3; c++ {
				all = append(all, [3]int64{a, b, c})
			}
		}
	}

	expect := func(l, r [3]int64) int64 {
		for i := range l {
			if l[i] < r[i] {
				return -1
			}
			if l[i] > r[i] {
				return 1
			}
		}
		return 0
	}

	for _, l := range all {
		for _, r := range all {
			v, err := it.Call("compareFn3", mk(l), mk(r))
			assert.Nil(err)
			swapped, err := it.Call("compareFn3", mk(r), mk(l))
			assert.Nil(err)

			assert.Equal(expect(l, r), v, "%v %v", l, r)
			assert.Equal(-v.(int64), swapped.(int64), "%v %v", l, r)
			assert.Equal(l == r, v.(int64) == 0)
		}
	}
}

func TestStrictLifecycle(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{1},
		Rows:          []int{5},
		Cardinalities: []int{1, 2},
	})

	// a driver that sets up once but tears down after every probe
	{
		once := strings.Replace(
			src,
			"  setUpState(execCtx, &state)\n  buildCol1Row5Car2",
			"  buildCol1Row5Car2",
			1,
		)
		assert.NotEqual(src, once)

		_, err := New(compile(t, once), strictRuntime()).Run("main")
		assert.Error(err)
		assert.Contains(err.Error(), "sorter is already freed")

		// the lenient runtime reuses the released sorter, and the result is
		// not reset in between
		v, err := New(compile(t, once), NewRuntime()).Run("main")
		assert.Nil(err)
		assert.Equal(int32(10), v)
	}

	// missing final teardown
	{
		leak := strings.Replace(
			src,
			"  probeCol1Row5Car2(execCtx, &state)\n  tearDownState(execCtx, &state)\n",
			"  probeCol1Row5Car2(execCtx, &state)\n",
			1,
		)
		assert.NotEqual(src, leak)
		_, err := New(compile(t, leak), strictRuntime()).Run("main")
		assert.Error(err)
		assert.Contains(err.Error(), "never freed")
	}

	// setup twice in a row
	{
		twice := strings.Replace(
			src,
			"  setUpState(execCtx, &state)\n",
			"  setUpState(execCtx, &state)\n  setUpState(execCtx, &state)\n",
			1,
		)
		_, err := New(compile(t, twice), strictRuntime()).Run("main")
		assert.Error(err)
		assert.Contains(err.Error(), "initialized twice")
	}
}

func TestRunErrors(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{2},
		Rows:          []int{5},
		Cardinalities: []int{2},
	})

	{
		rt := NewRuntime()
		rt.Relations = StaticRelations{}
		_, err := New(compile(t, src), rt).Run("main")
		assert.Error(err)
		assert.Contains(err.Error(), "relation IntegerCol5Row5Car2 does not exist")
	}

	{
		rt := NewRuntime()
		rt.Relations = StaticRelations{
			"IntegerCol5Row5Car2": &Relation{
				Name:    "IntegerCol5Row5Car2",
				Columns: 3,
				Rows:    [][]int64{{1, 2, 3}},
			},
		}
		_, err := New(compile(t, src), rt).Run("main")
		assert.Error(err)
		assert.Contains(err.Error(), "column oid 5 out of range")
	}

	{
		_, err := New(compile(t, src), nil).Run("nope")
		assert.Error(err)
	}
}

func TestStaticRelation(t *testing.T) {
	assert := assert.New(t)
	src := genSource(t, plan.Matrix{
		Columns:       []int{2},
		Rows:          []int{5},
		Cardinalities: []int{2},
	})
	rows := [][]int64{}
	for i := int64(0); i < 7; i++ {
		rows = append(rows, []int64{0, 0, 0, i % 2, 6 - i})
	}
	rt := strictRuntime()
	rt.Relations = StaticRelations{
		"IntegerCol5Row5Car2": &Relation{Name: "IntegerCol5Row5Car2", Columns: 5, Rows: rows},
	}
	// whatever the name promises, the probe counts what the scan produced
	v, err := New(compile(t, src), rt).Run("main")
	assert.Nil(err)
	assert.Equal(int32(7), v)
}

func TestSyntheticRelations(t *testing.T) {
	assert := assert.New(t)
	a := NewSyntheticRelations(7)
	b := NewSyntheticRelations(7)

	r1, err := a.Relation("IntegerCol5Row100Car10")
	assert.Nil(err)
	r2, err := b.Relation("IntegerCol5Row100Car10")
	assert.Nil(err)
	assert.Equal(r1.Rows, r2.Rows)
	assert.Equal(100, len(r1.Rows))
	assert.Equal(5, r1.Columns)

	groups := map[int64]bool{}
	for _, r := range r1.Rows {
		for _, v := range r {
			assert.True(v >= 0 && v < 10)
			groups[v] = true
		}
	}
	assert.True(len(groups) > 1)

	again, _ := a.Relation("IntegerCol5Row100Car10")
	assert.True(again == r1)

	_, err = a.Relation("Orders")
	assert.Error(err)
	_, err = a.Relation("IntegerCol5Row1Car0")
	assert.Error(err)
}

func TestReport(t *testing.T) {
	assert := assert.New(t)
	records := []Record{
		{Tag: "sortbuild, 5, 4, 2", Elapsed: 100 * time.Microsecond},
		{Tag: "sortprobe, 5, 4, 2", Elapsed: 20 * time.Microsecond},
		{Tag: "sortbuild, 10, 4, 2", Elapsed: 300 * time.Microsecond},
		{Tag: "sortprobe, 10, 4, 2", Elapsed: 0},
	}
	s, err := Summarize(records)
	assert.Nil(err)
	assert.Equal(2, len(s))
	assert.Equal("sortbuild", s[0].Phase)
	assert.Equal(int64(2), s[0].Count)
	assert.InDelta(200.0, s[0].Mean, 1.0)
	assert.Equal("sortprobe", s[1].Phase)
	assert.Equal(int64(2), s[1].Count)

	buf := &bytes.Buffer{}
	assert.Nil(WriteReport(buf, 10, records))
	out := buf.String()
	assert.True(strings.HasPrefix(out, "result: 10\n"))
	assert.Contains(out, "sortbuild, 10, 4, 2")
	assert.Contains(out, "phase")

	_, err = Summarize([]Record{{Tag: "bogus"}})
	assert.Error(err)
}
