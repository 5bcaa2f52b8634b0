package cg

import (
	"fmt"

	"github.com/dianpeng/sortgen/plan"
)

func checkColumns(c int) error {
	if c < 1 || c > plan.MaxColumns {
		return fmt.Errorf("column count %d is out of range [1, %d]", c, plan.MaxColumns)
	}
	return nil
}

// Row shape of a column count, one Integer field per sort key column.
//
// struct SortRow2 {
//   c1 : Integer
//   c2 : Integer
// }
func genSchema(
	w *tplWriter,
	c int,
) error {
	if err := checkColumns(c); err != nil {
		return err
	}
	w.Line("struct %[row] {", tplWriterCtx{"row": plan.RowShapeName(c)})
	w.Indent()
	for i := 1; i <= c; i++ {
		w.Line("%[field] : Integer", tplWriterCtx{"field": plan.FieldName(i)})
	}
	w.Dedent()
	w.Line("}", nil)
	w.Blank()
	return w.Err()
}
