package vm

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"regexp"
	"strconv"
)

// Relation is an in memory integer table, columns are numbered from 1.
type Relation struct {
	Name    string
	Columns int
	Rows    [][]int64
}

type RelationSource interface {
	Relation(name string) (*Relation, error)
}

// StaticRelations serves a fixed set of relations.
type StaticRelations map[string]*Relation

func (self StaticRelations) Relation(name string) (*Relation, error) {
	if r, ok := self[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("relation %s does not exist", name)
}

var syntheticName = regexp.MustCompile(`^IntegerCol(\d+)Row(\d+)Car(\d+)$`)

// SyntheticRelations fabricates the benchmark input relations from their
// name: IntegerCol<cols>Row<rows>Car<card> holds rows rows of cols integer
// columns, every value drawn from [0, card). The content only depends on the
// seed and the name.
type SyntheticRelations struct {
	Seed  int64
	cache map[string]*Relation
}

func NewSyntheticRelations(seed int64) *SyntheticRelations {
	return &SyntheticRelations{
		Seed:  seed,
		cache: make(map[string]*Relation),
	}
}

func (self *SyntheticRelations) Relation(name string) (*Relation, error) {
	if r, ok := self.cache[name]; ok {
		return r, nil
	}

	m := syntheticName.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("relation %s does not exist", name)
	}
	cols, _ := strconv.Atoi(m[1])
	rows, _ := strconv.Atoi(m[2])
	card, _ := strconv.Atoi(m[3])
	if cols <= 0 || card <= 0 {
		return nil, fmt.Errorf("relation %s has no column or no group", name)
	}

	h := fnv.New64a()
	h.Write([]byte(name))
	rnd := rand.New(rand.NewSource(self.Seed ^ int64(h.Sum64())))

	r := &Relation{
		Name:    name,
		Columns: cols,
		Rows:    make([][]int64, rows),
	}
	for i := range r.Rows {
		row := make([]int64, cols)
		for j := range row {
			row[j] = rnd.Int63n(int64(card))
		}
		r.Rows[i] = row
	}
	self.cache[name] = r
	return r, nil
}
