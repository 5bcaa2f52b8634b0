package plan

// The following documentation describes how the benchmark matrix is mapped
// to the generated program.
//
// The plan is the ordered list of build and probe functions, one pair per
// (columns, rows, cardinality) triple. Triples are walked columns first,
// then rows, then cardinality, the last axis varying fastest. The code
// generator turns the plan into 5 sections, emitted sequentially:
//
// 1) Row shapes
//    One struct SortRow<c> per column count, holding c Integer fields named
//    c1 .. c<c>.
//
// 2) Comparators
//    One compareFn<c> per row shape. Fields are compared in ascending order,
//    the first strict difference returns -1 or 1, otherwise 0.
//
// 3) State
//    struct State holds one Sorter per column count plus ret_val. setUpState
//    binds every sorter to its comparator and row size and zeroes ret_val,
//    tearDownState frees every sorter.
//
// 4) Build and probe
//    build<...> scans IntegerCol5Row<r>Car<card>, projecting the last c
//    source columns in reverse order, inserts each row into sorter<c> and
//    sorts it. probe<...> iterates the sorted buffer and increments ret_val
//    once per row. Both are bracketed by the resource tracker, the tag is
//    "<phase>, <rows>, <4*c>, <card>" with phase sortbuild or sortprobe.
//
//    Example as following, for the triple (1, 5, 2):
//
//    fun buildCol1Row5Car2(execCtx: *ExecutionContext, state: *State) -> nil {
//      @execCtxStartResourceTracker(execCtx)
//      ...
//      @execCtxEndResourceTracker(execCtx, @stringToSql("sortbuild, 5, 4, 2"))
//    }
//
// 5) Driver
//    main declares the state and, for every pair, calls setUpState, the
//    build, the probe and tearDownState, in plan order. It returns ret_val,
//    which after the last teardown holds the row count of the last probe.
