package plan

import (
	"fmt"
	"strings"
)

// Printing the plan out, for testing, debugging, visualization purpose etc ...

func (self *Plan) Print() string {
	buf := &strings.Builder{}
	self.printMatrix(buf)
	self.printShapes(buf)
	self.printFuncs(buf)
	return buf.String()
}

func (self *Plan) printMatrix(
	buf *strings.Builder,
) {
	buf.WriteString("##> Matrix\n")
	buf.WriteString(fmt.Sprintf("Columns: %v\n", self.Matrix.Columns))
	buf.WriteString(fmt.Sprintf("Rows: %v\n", self.Matrix.Rows))
	buf.WriteString(fmt.Sprintf("Cardinalities: %v\n", self.Matrix.Cardinalities))
	buf.WriteString(fmt.Sprintf("Triples: %d\n", self.Matrix.Size()))
}

func (self *Plan) printShapes(
	buf *strings.Builder,
) {
	for _, c := range self.Matrix.Columns {
		buf.WriteString("##> Shape\n")
		buf.WriteString(fmt.Sprintf("Row: %s\n", RowShapeName(c)))
		buf.WriteString(fmt.Sprintf("Comparator: %s\n", ComparatorName(c)))
		buf.WriteString(fmt.Sprintf("Sorter: %s.%s\n", StateType, SorterField(c)))
		buf.WriteString(fmt.Sprintf("Width: %d\n", c*IntegerWidth))
	}
}

func (self *Plan) printFuncs(
	buf *strings.Builder,
) {
	for _, f := range self.Funcs {
		buf.WriteString(fmt.Sprintf("##> %s\n", f.Role))
		buf.WriteString(fmt.Sprintf("Name: %s\n", f.Name))
		if f.Role == RoleBuild {
			buf.WriteString(fmt.Sprintf("Relation: %s\n", RelationName(f.Triple)))
		}
		buf.WriteString(fmt.Sprintf("Tag: %s\n", f.Tag()))
	}
}
