package cg

import (
	"github.com/dianpeng/sortgen/plan"
)

// Three way comparator of a row shape. Fields are compared in ascending
// order, the first strict difference decides, and only when every field is
// equal the comparator reports 0.
func genComparator(
	w *tplWriter,
	c int,
) error {
	if err := checkColumns(c); err != nil {
		return err
	}
	w.Line(
		"fun %[cmp](lhs: *%[row], rhs: *%[row]) -> int32 {",
		tplWriterCtx{
			"cmp": plan.ComparatorName(c),
			"row": plan.RowShapeName(c),
		},
	)
	w.Indent()
	for i := 1; i <= c; i++ {
		w.Chunk(
			`
if (lhs.%[f] < rhs.%[f]) {
  return -1
}
if (lhs.%[f] > rhs.%[f]) {
  return 1
}
`,
			tplWriterCtx{
				"f": plan.FieldName(i),
			},
		)
	}
	w.Line("return 0", nil)
	w.Dedent()
	w.Line("}", nil)
	w.Blank()
	return w.Err()
}
