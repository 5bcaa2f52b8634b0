package cg

import (
	"fmt"
	"text/template"

	"github.com/dianpeng/sortgen/plan"
)

// ----------------------------------------------------------------------------
// Build and probe side of one (columns, rows, cardinality) triple.
//
// The build side scans the input relation, restricted to the first *columns*
// integer columns taken from the last source column downwards, inserts every
// row into the sorter of its column count and sorts it. The probe side walks
// the sorted buffer and bumps the shared result once per row. Both bodies are
// bracketed by the resource tracker whose tag carries the triple.
// ----------------------------------------------------------------------------

const buildTemplate = `
fun {{.Name}}(execCtx: *ExecutionContext, state: *{{.State}}) -> nil {
  @execCtxStartResourceTracker(execCtx)
  var sorter = &state.{{.Sorter}}
  var tvi: TableVectorIterator
  var col_oids : [{{.Columns}}]uint32
{{- range .Cols}}
  col_oids[{{.Index}}] = {{.Oid}}
{{- end}}
  @tableIterInitBind(&tvi, execCtx, "{{.Relation}}", col_oids)
  for (@tableIterAdvance(&tvi)) {
    var vec = @tableIterGetPCI(&tvi)
    for (; @pciHasNext(vec); @pciAdvance(vec)) {
      var row = @ptrCast(*{{.Row}}, @sorterInsert(sorter))
{{- range .Cols}}
      row.{{.Field}} = @pciGetInt(vec, {{.Index}})
{{- end}}
    }
  }
  @tableIterClose(&tvi)
  @sorterSort(sorter)
  @execCtxEndResourceTracker(execCtx, @stringToSql("{{.Tag}}"))
}
`

const probeTemplate = `
fun {{.Name}}(execCtx: *ExecutionContext, state: *{{.State}}) -> nil {
  @execCtxStartResourceTracker(execCtx)
  var sort_iter: SorterIterator
  for (@sorterIterInit(&sort_iter, &state.{{.Sorter}});
    @sorterIterHasNext(&sort_iter);
    @sorterIterNext(&sort_iter)) {
    var row = @ptrCast(*{{.Row}}, @sorterIterGetRow(&sort_iter))
    state.{{.Result}} = state.{{.Result}} + 1
  }
  @sorterIterClose(&sort_iter)
  @execCtxEndResourceTracker(execCtx, @stringToSql("{{.Tag}}"))
}
`

var (
	buildTmpl = template.Must(template.New("[build]").Parse(buildTemplate))
	probeTmpl = template.Must(template.New("[probe]").Parse(probeTemplate))
)

type pairCol struct {
	Index int    // projected column, 0 based
	Oid   int    // source column of the relation
	Field string // row shape field populated from it
}

type pairData struct {
	Name     string
	State    string
	Sorter   string
	Row      string
	Result   string
	Relation string
	Tag      string
	Columns  int
	Cols     []pairCol
}

func newPairData(f *plan.Func) (*pairData, error) {
	if !f.Role.Valid() {
		return nil, fmt.Errorf("%s: unknown role %s", f.Name, f.Role)
	}
	c := f.Triple.Columns
	if err := checkColumns(c); err != nil {
		return nil, fmt.Errorf("%s: %s", f.Name, err)
	}
	if f.Triple.Rows <= 0 || f.Triple.Cardinality <= 0 {
		return nil, fmt.Errorf("%s: invalid triple %s", f.Name, f.Triple)
	}

	d := &pairData{
		Name:     f.Name,
		State:    plan.StateType,
		Sorter:   plan.SorterField(c),
		Row:      plan.RowShapeName(c),
		Result:   plan.ResultField,
		Relation: plan.RelationName(f.Triple),
		Tag:      f.Tag(),
		Columns:  c,
	}
	for i := 0; i < c; i++ {
		d.Cols = append(d.Cols, pairCol{
			Index: i,
			Oid:   plan.SourceColumn(i),
			Field: plan.FieldName(i + 1),
		})
	}
	return d, nil
}

func genBuild(
	w *tplWriter,
	f *plan.Func,
) error {
	if f.Role != plan.RoleBuild {
		return fmt.Errorf("%s: expect a build function, got %s", f.Name, f.Role)
	}
	d, err := newPairData(f)
	if err != nil {
		return err
	}
	w.Template(buildTmpl, d)
	w.Blank()
	return w.Err()
}

func genProbe(
	w *tplWriter,
	f *plan.Func,
) error {
	if f.Role != plan.RoleProbe {
		return fmt.Errorf("%s: expect a probe function, got %s", f.Name, f.Role)
	}
	d, err := newPairData(f)
	if err != nil {
		return err
	}
	w.Template(probeTmpl, d)
	w.Blank()
	return w.Err()
}

func genFunc(
	w *tplWriter,
	f *plan.Func,
) error {
	switch f.Role {
	case plan.RoleBuild:
		return genBuild(w, f)
	case plan.RoleProbe:
		return genProbe(w, f)
	default:
		return fmt.Errorf("%s: unknown role %s", f.Name, f.Role)
	}
}
