package cg

import (
	"fmt"

	"github.com/dianpeng/sortgen/plan"
)

// The aggregate state holds one sorter per column count and the running
// result. Setup binds every sorter to its comparator and row size and resets
// the result, teardown frees every sorter.

var stateCtx = tplWriterCtx{
	"state":    plan.StateType,
	"ret":      plan.ResultField,
	"setup":    plan.SetupName,
	"teardown": plan.TeardownName,
}

func checkColumnList(cols []int) error {
	if len(cols) == 0 {
		return fmt.Errorf("empty column list")
	}
	for _, c := range cols {
		if err := checkColumns(c); err != nil {
			return err
		}
	}
	return nil
}

func genState(
	w *tplWriter,
	cols []int,
) error {
	if err := checkColumnList(cols); err != nil {
		return err
	}
	w.Line("struct %[state] {", stateCtx)
	w.Indent()
	for _, c := range cols {
		w.Line("%[sorter]: Sorter", tplWriterCtx{"sorter": plan.SorterField(c)})
	}
	w.Line("%[ret] : int32", stateCtx)
	w.Dedent()
	w.Line("}", nil)
	w.Blank()
	return w.Err()
}

func genSetup(
	w *tplWriter,
	cols []int,
) error {
	if err := checkColumnList(cols); err != nil {
		return err
	}
	w.Line("fun %[setup](execCtx: *ExecutionContext, state: *%[state]) -> nil {", stateCtx)
	w.Indent()
	for _, c := range cols {
		w.Line(
			"@sorterInit(&state.%[sorter], @execCtxGetMem(execCtx), %[cmp], @sizeOf(%[row]))",
			tplWriterCtx{
				"sorter": plan.SorterField(c),
				"cmp":    plan.ComparatorName(c),
				"row":    plan.RowShapeName(c),
			},
		)
	}
	w.Line("state.%[ret] = 0", stateCtx)
	w.Dedent()
	w.Line("}", nil)
	w.Blank()
	return w.Err()
}

func genTeardown(
	w *tplWriter,
	cols []int,
) error {
	if err := checkColumnList(cols); err != nil {
		return err
	}
	w.Line("fun %[teardown](execCtx: *ExecutionContext, state: *%[state]) -> nil {", stateCtx)
	w.Indent()
	for _, c := range cols {
		w.Line("@sorterFree(&state.%[sorter])", tplWriterCtx{"sorter": plan.SorterField(c)})
	}
	w.Dedent()
	w.Line("}", nil)
	w.Blank()
	return w.Err()
}
