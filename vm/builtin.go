package vm

import (
	"fmt"
	"sort"

	"github.com/dianpeng/sortgen/tpl"
)

type builtinFunc func(self *Interp, x *tpl.Builtin, args []Value) (Value, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"execCtxStartResourceTracker": biStartTracker,
		"execCtxEndResourceTracker":   biEndTracker,
		"execCtxGetMem":               biGetMem,
		"stringToSql":                 biStringToSql,
		"sizeOf":                      biSizeOf,
		"ptrCast":                     biPtrCast,
		"sorterInit":                  biSorterInit,
		"sorterInsert":                biSorterInsert,
		"sorterSort":                  biSorterSort,
		"sorterFree":                  biSorterFree,
		"sorterIterInit":              biSorterIterInit,
		"sorterIterHasNext":           biSorterIterHasNext,
		"sorterIterNext":              biSorterIterNext,
		"sorterIterGetRow":            biSorterIterGetRow,
		"sorterIterClose":             biSorterIterClose,
		"tableIterInitBind":           biTableIterInitBind,
		"tableIterAdvance":            biTableIterAdvance,
		"tableIterGetPCI":             biTableIterGetPCI,
		"tableIterClose":              biTableIterClose,
		"pciHasNext":                  biPciHasNext,
		"pciAdvance":                  biPciAdvance,
		"pciGetInt":                   biPciGetInt,
	}
}

func (self *Interp) evalBuiltin(x *tpl.Builtin) (Value, error) {
	fn, ok := builtins[x.Name]
	if !ok {
		return nil, self.errf(x.CodeInfo, "unknown builtin @%s", x.Name)
	}
	if arity := tpl.Builtins[x.Name]; arity != len(x.Args) {
		return nil, self.errf(x.CodeInfo, "@%s takes %d arguments, got %d", x.Name, arity, len(x.Args))
	}

	args := make([]Value, len(x.Args))
	for idx, a := range x.Args {
		if te, ok := a.(*tpl.TypeExpr); ok {
			args[idx] = te.Ty
			continue
		}
		v, err := self.eval(a)
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}

	v, err := fn(self, x, args)
	if err != nil {
		return nil, self.errf(x.CodeInfo, "%s", err)
	}
	return v, nil
}

// typed argument helpers ----------------------------------------------------

func argCtx(v Value) (*ExecCtx, error) {
	if c, ok := v.(*ExecCtx); ok && c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("expect execution context, got %s", typeName(v))
}

func argType(v Value) (*tpl.Type, error) {
	if t, ok := v.(*tpl.Type); ok {
		return t, nil
	}
	return nil, fmt.Errorf("expect a type, got %s", typeName(v))
}

// argSorter accepts a pointer to a sorter slot.
func (self *Interp) argSorter(v Value) (*Sorter, error) {
	p, err := asPtr(v)
	if err != nil {
		return nil, err
	}
	s, ok := p.V.(*Sorter)
	if !ok || s == nil {
		return nil, fmt.Errorf("sorter is not initialized")
	}
	if s.state == sorterFreed && self.rt.Strict {
		return nil, fmt.Errorf("sorter is already freed")
	}
	return s, nil
}

func argSorterIter(v Value) (*SorterIter, error) {
	p, err := asPtr(v)
	if err != nil {
		return nil, err
	}
	it, ok := p.V.(*SorterIter)
	if !ok || it == nil {
		return nil, fmt.Errorf("sorter iterator is not initialized")
	}
	if it.closed {
		return nil, fmt.Errorf("sorter iterator is closed")
	}
	return it, nil
}

func argTableIter(v Value) (*TableIter, error) {
	p, err := asPtr(v)
	if err != nil {
		return nil, err
	}
	it, ok := p.V.(*TableIter)
	if !ok || it == nil {
		return nil, fmt.Errorf("table iterator is not initialized")
	}
	if it.closed {
		return nil, fmt.Errorf("table iterator is closed")
	}
	return it, nil
}

func argPCI(v Value) (*PCI, error) {
	pci, ok := v.(*PCI)
	if !ok || pci == nil {
		return nil, fmt.Errorf("expect projected column iterator, got %s", typeName(v))
	}
	if pci.it.cur != pci {
		return nil, fmt.Errorf("projected column iterator is stale")
	}
	return pci, nil
}

// execution context ---------------------------------------------------------

func biStartTracker(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	if _, err := argCtx(args[0]); err != nil {
		return nil, err
	}
	return nil, self.rt.startTracker()
}

func biEndTracker(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	if _, err := argCtx(args[0]); err != nil {
		return nil, err
	}
	tag, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("expect a tag string, got %s", typeName(args[1]))
	}
	return nil, self.rt.endTracker(tag)
}

func biGetMem(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	ctx, err := argCtx(args[0])
	if err != nil {
		return nil, err
	}
	return ctx.mem, nil
}

func biStringToSql(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("expect string, got %s", typeName(args[0]))
	}
	return s, nil
}

func (self *Interp) sizeOf(t *tpl.Type) (int64, error) {
	switch t.Kind {
	case tpl.TypePtr:
		return 8, nil
	case tpl.TypeArray:
		n, err := self.sizeOf(t.Elem)
		return n * t.Len, err
	}
	if d, ok := self.structs[t.Name]; ok {
		total := int64(0)
		for _, f := range d.Fields {
			n, err := self.sizeOf(f.Ty)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}
	switch t.Name {
	case "Integer", "int32", "uint32":
		return 4, nil
	case "int64":
		return 8, nil
	case "bool":
		return 1, nil
	default:
		return 0, fmt.Errorf("size of %s is unknown", t.Name)
	}
}

func biSizeOf(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	t, err := argType(args[0])
	if err != nil {
		return nil, err
	}
	return self.sizeOf(t)
}

// ptrCast gives the raw slot handed out by the sorter a row shape, the slot is
// materialized on first cast.
func biPtrCast(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	t, err := argType(args[0])
	if err != nil {
		return nil, err
	}
	if t.Kind != tpl.TypePtr || t.Elem.Kind != tpl.TypeName {
		return nil, fmt.Errorf("cannot cast to %s", t)
	}
	d, ok := self.structs[t.Elem.Name]
	if !ok {
		return nil, fmt.Errorf("cannot cast to %s", t)
	}
	p, err := asPtr(args[1])
	if err != nil {
		return nil, err
	}
	switch v := p.V.(type) {
	case nil:
		p.V = self.newStruct(d)
	case *Struct:
		if v.Decl != d {
			return nil, fmt.Errorf("cannot cast %s to %s", v.Decl.Name, t)
		}
	default:
		return nil, fmt.Errorf("cannot cast %s to %s", typeName(v), t)
	}
	return p, nil
}

// sorter --------------------------------------------------------------------

func biSorterInit(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	p, err := asPtr(args[0])
	if err != nil {
		return nil, err
	}
	mem, ok := args[1].(*MemPool)
	if !ok {
		return nil, fmt.Errorf("expect memory pool, got %s", typeName(args[1]))
	}
	cmp, ok := args[2].(*FuncRef)
	if !ok {
		return nil, fmt.Errorf("expect comparator, got %s", typeName(args[2]))
	}
	if len(cmp.Decl.Params) != 2 || cmp.Decl.Ret == nil {
		return nil, fmt.Errorf("%s is not a comparator", cmp.Decl.Name)
	}
	size, err := asInt(args[3])
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid element size %d", size)
	}

	if old, ok := p.V.(*Sorter); ok && old != nil && old.state == sorterLive && self.rt.Strict {
		return nil, fmt.Errorf("sorter bound to %s is initialized twice", old.cmp.Decl.Name)
	}

	s := &Sorter{
		cmp:  cmp,
		size: size,
		mem:  mem,
	}
	p.V = s
	self.rt.sorters = append(self.rt.sorters, s)
	return nil, nil
}

func biSorterInsert(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	s, err := self.argSorter(args[0])
	if err != nil {
		return nil, err
	}
	c := &Cell{}
	s.rows = append(s.rows, c)
	s.sorted = false
	s.mem.Allocated += s.size
	return c, nil
}

func biSorterSort(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	s, err := self.argSorter(args[0])
	if err != nil {
		return nil, err
	}

	var cmpErr error
	sort.SliceStable(s.rows, func(i, j int) bool {
		if cmpErr != nil {
			return false
		}
		v, err := self.callFun(s.cmp.Decl, []Value{s.rows[i], s.rows[j]})
		if err != nil {
			cmpErr = err
			return false
		}
		r, err := asInt(v)
		if err != nil {
			cmpErr = fmt.Errorf("%s: %s", s.cmp.Decl.Name, err)
			return false
		}
		return r < 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	s.sorted = true
	return nil, nil
}

func biSorterFree(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	s, err := self.argSorter(args[0])
	if err != nil {
		return nil, err
	}
	s.mem.Allocated -= s.size * int64(len(s.rows))
	s.rows = nil
	s.state = sorterFreed
	return nil, nil
}

func biSorterIterInit(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	p, err := asPtr(args[0])
	if err != nil {
		return nil, err
	}
	s, err := self.argSorter(args[1])
	if err != nil {
		return nil, err
	}
	if !s.sorted && len(s.rows) > 0 && self.rt.Strict {
		return nil, fmt.Errorf("iterating a sorter that is not sorted")
	}
	p.V = &SorterIter{s: s}
	return nil, nil
}

func biSorterIterHasNext(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argSorterIter(args[0])
	if err != nil {
		return nil, err
	}
	return it.pos < len(it.s.rows), nil
}

func biSorterIterNext(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argSorterIter(args[0])
	if err != nil {
		return nil, err
	}
	if it.pos >= len(it.s.rows) {
		return nil, fmt.Errorf("sorter iterator is exhausted")
	}
	it.pos++
	return nil, nil
}

func biSorterIterGetRow(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argSorterIter(args[0])
	if err != nil {
		return nil, err
	}
	if it.pos >= len(it.s.rows) {
		return nil, fmt.Errorf("sorter iterator is exhausted")
	}
	return it.s.rows[it.pos], nil
}

func biSorterIterClose(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argSorterIter(args[0])
	if err != nil {
		return nil, err
	}
	it.closed = true
	return nil, nil
}

// table ---------------------------------------------------------------------

func biTableIterInitBind(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	p, err := asPtr(args[0])
	if err != nil {
		return nil, err
	}
	if _, err := argCtx(args[1]); err != nil {
		return nil, err
	}
	name, ok := args[2].(string)
	if !ok {
		return nil, fmt.Errorf("expect relation name, got %s", typeName(args[2]))
	}
	arr, ok := args[3].(*Array)
	if !ok {
		return nil, fmt.Errorf("expect column oid array, got %s", typeName(args[3]))
	}

	rel, err := self.rt.Relations.Relation(name)
	if err != nil {
		return nil, err
	}
	oids := make([]int, len(arr.Elems))
	for idx, c := range arr.Elems {
		oid, err := asInt(c.V)
		if err != nil {
			return nil, err
		}
		if oid < 1 || oid > int64(rel.Columns) {
			return nil, fmt.Errorf("column oid %d out of range for %s", oid, name)
		}
		oids[idx] = int(oid)
	}

	p.V = &TableIter{
		rel:  rel,
		oids: oids,
	}
	return nil, nil
}

func biTableIterAdvance(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argTableIter(args[0])
	if err != nil {
		return nil, err
	}
	if it.next >= len(it.rel.Rows) {
		it.cur = nil
		return false, nil
	}
	size := self.rt.VectorSize
	if size <= 0 {
		size = DefaultVectorSize
	}
	end := it.next + size
	if end > len(it.rel.Rows) {
		end = len(it.rel.Rows)
	}
	it.cur = &PCI{
		it:  it,
		pos: it.next,
		end: end,
	}
	it.next = end
	return true, nil
}

func biTableIterGetPCI(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argTableIter(args[0])
	if err != nil {
		return nil, err
	}
	if it.cur == nil {
		return nil, fmt.Errorf("table iterator is not advanced")
	}
	return it.cur, nil
}

func biTableIterClose(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	it, err := argTableIter(args[0])
	if err != nil {
		return nil, err
	}
	it.closed = true
	it.cur = nil
	return nil, nil
}

func biPciHasNext(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	pci, err := argPCI(args[0])
	if err != nil {
		return nil, err
	}
	return pci.pos < pci.end, nil
}

func biPciAdvance(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	pci, err := argPCI(args[0])
	if err != nil {
		return nil, err
	}
	if pci.pos >= pci.end {
		return nil, fmt.Errorf("projected column iterator is exhausted")
	}
	pci.pos++
	return nil, nil
}

func biPciGetInt(self *Interp, x *tpl.Builtin, args []Value) (Value, error) {
	pci, err := argPCI(args[0])
	if err != nil {
		return nil, err
	}
	idx, err := asInt(args[1])
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= int64(len(pci.it.oids)) {
		return nil, fmt.Errorf("column %d is not projected", idx)
	}
	if pci.pos >= pci.end {
		return nil, fmt.Errorf("projected column iterator is exhausted")
	}
	return pci.it.rel.Rows[pci.pos][pci.it.oids[idx]-1], nil
}
