package vm

import (
	"fmt"
	"time"
)

const DefaultVectorSize = 2048

// Record is one closed resource tracker bracket.
type Record struct {
	Tag     string
	Elapsed time.Duration
}

// Runtime is the stub execution engine the generated program runs against.
// It provides the sorters, the table iterators and the resource tracker.
type Runtime struct {
	// Strict turns misuse of the sort buffer life cycle into errors: using a
	// sorter that is not initialized or already freed, initializing a live
	// sorter, iterating an unsorted one, nesting trackers, leaking a sorter.
	Strict bool

	// rows handed out per @tableIterAdvance
	VectorSize int

	Relations RelationSource

	// closed tracker brackets, in execution order
	Records []Record

	clock    func() time.Time
	tracking bool
	start    time.Time
	sorters  []*Sorter
}

func NewRuntime() *Runtime {
	return &Runtime{
		VectorSize: DefaultVectorSize,
		Relations:  NewSyntheticRelations(1),
		clock:      time.Now,
	}
}

// ExecCtx is the handle passed as execCtx to every generated function.
type ExecCtx struct {
	rt  *Runtime
	mem *MemPool
}

// MemPool only records how much the sorters bound to it allocated.
type MemPool struct {
	Allocated int64
}

func (self *Runtime) newExecCtx() *ExecCtx {
	return &ExecCtx{
		rt:  self,
		mem: &MemPool{},
	}
}

func (self *Runtime) now() time.Time {
	if self.clock == nil {
		return time.Now()
	}
	return self.clock()
}

func (self *Runtime) startTracker() error {
	if self.tracking && self.Strict {
		return fmt.Errorf("resource tracker started twice")
	}
	self.tracking = true
	self.start = self.now()
	return nil
}

func (self *Runtime) endTracker(tag string) error {
	if !self.tracking {
		return fmt.Errorf("resource tracker %q ended without start", tag)
	}
	self.tracking = false
	self.Records = append(self.Records, Record{
		Tag:     tag,
		Elapsed: self.now().Sub(self.start),
	})
	return nil
}

func (self *Runtime) finish() error {
	if !self.Strict {
		return nil
	}
	if self.tracking {
		return fmt.Errorf("resource tracker is never ended")
	}
	for _, s := range self.sorters {
		if s.state == sorterLive {
			return fmt.Errorf("sorter bound to %s is never freed", s.cmp.Decl.Name)
		}
	}
	return nil
}

const (
	sorterLive = iota
	sorterFreed
)

// Sorter is the append then sort buffer behind @sorterInit.
type Sorter struct {
	cmp    *FuncRef
	size   int64
	mem    *MemPool
	rows   []*Cell
	sorted bool
	state  int
}

func (self *Sorter) Len() int {
	return len(self.rows)
}

type SorterIter struct {
	s      *Sorter
	pos    int
	closed bool
}

type TableIter struct {
	rel    *Relation
	oids   []int
	next   int // first row of the next vector
	cur    *PCI
	closed bool
}

// PCI iterates the rows of the current vector of a table iterator, only the
// projected columns are visible.
type PCI struct {
	it  *TableIter
	pos int
	end int
}
