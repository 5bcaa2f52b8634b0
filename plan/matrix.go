package plan

import (
	"errors"
	"fmt"
)

const (
	// widest row shape, also the number of integer columns of every input
	// relation
	MaxColumns    = 5
	SourceColumns = 5

	// size in bytes of one Integer field, used for the resource tag's width
	IntegerWidth = 4
)

var (
	ErrInvalidMatrix = errors.New("invalid matrix")
	ErrDuplicateName = errors.New("duplicate function name")
)

var defaultRows = []int{
	1, 5, 10, 50, 100, 500, 1000, 2000, 5000, 10000, 20000, 50000, 100000,
	200000, 500000, 1000000,
}

var defaultCardinalities = []int{1, 2, 5, 10, 50, 100}

// Matrix is the set of axes the benchmark is generated over. Each list must
// be strictly ascending.
type Matrix struct {
	Columns       []int `yaml:"columns"`
	Rows          []int `yaml:"rows"`
	Cardinalities []int `yaml:"cardinalities"`
}

func DefaultMatrix() Matrix {
	cols := make([]int, MaxColumns)
	for i := range cols {
		cols[i] = i + 1
	}
	return Matrix{
		Columns:       cols,
		Rows:          append([]int{}, defaultRows...),
		Cardinalities: append([]int{}, defaultCardinalities...),
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidMatrix, fmt.Sprintf(format, args...))
}

func checkAxis(
	name string,
	axis []int,
	min int,
	max int,
) error {
	if len(axis) == 0 {
		return invalid("%s is empty", name)
	}
	for idx, v := range axis {
		if v < min || (max > 0 && v > max) {
			if max > 0 {
				return invalid("%s[%d] = %d is out of range [%d, %d]", name, idx, v, min, max)
			} else {
				return invalid("%s[%d] = %d must be at least %d", name, idx, v, min)
			}
		}
		if idx > 0 && axis[idx-1] >= v {
			return invalid("%s must be strictly ascending, %d follows %d", name, v, axis[idx-1])
		}
	}
	return nil
}

func (self *Matrix) Validate() error {
	if err := checkAxis("columns", self.Columns, 1, MaxColumns); err != nil {
		return err
	}
	if err := checkAxis("rows", self.Rows, 1, 0); err != nil {
		return err
	}
	if err := checkAxis("cardinalities", self.Cardinalities, 1, 0); err != nil {
		return err
	}
	return nil
}

// Size is the number of triples in the matrix.
func (self *Matrix) Size() int {
	return len(self.Columns) * len(self.Rows) * len(self.Cardinalities)
}

func (self *Matrix) Triples() *TripleIter {
	return &TripleIter{
		m:   self,
		pos: -1,
	}
}

// Triple is one point of the matrix.
type Triple struct {
	Columns     int
	Rows        int
	Cardinality int
}

// RowWidth is the byte width of the row shape the triple sorts.
func (self Triple) RowWidth() int {
	return self.Columns * IntegerWidth
}

func (self Triple) String() string {
	return fmt.Sprintf("(%d, %d, %d)", self.Columns, self.Rows, self.Cardinality)
}

// TripleIter walks the Cartesian product of a matrix, columns being the
// slowest axis and cardinality the fastest.
//
//	it := m.Triples()
//	for it.Next() {
//	  t := it.Triple()
//	}
type TripleIter struct {
	m   *Matrix
	pos int
}

func (self *TripleIter) Next() bool {
	if self.pos+1 >= self.m.Size() {
		self.pos = self.m.Size()
		return false
	}
	self.pos++
	return true
}

func (self *TripleIter) Triple() Triple {
	if self.pos < 0 || self.pos >= self.m.Size() {
		panic("TripleIter.Triple called out of iteration")
	}
	nr := len(self.m.Rows)
	nc := len(self.m.Cardinalities)
	return Triple{
		Columns:     self.m.Columns[self.pos/(nr*nc)],
		Rows:        self.m.Rows[(self.pos/nc)%nr],
		Cardinality: self.m.Cardinalities[self.pos%nc],
	}
}

func (self *TripleIter) Collect() []Triple {
	out := []Triple{}
	for self.Next() {
		out = append(out, self.Triple())
	}
	return out
}
