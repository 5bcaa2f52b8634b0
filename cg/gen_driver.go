package cg

import (
	"fmt"

	"github.com/dianpeng/sortgen/plan"
)

// The driver walks the functions in emission order. Every build is preceded
// by a setup of the whole state and every probe is followed by a teardown of
// the whole state, so each pair runs against freshly initialized sorters.
// Since setup resets the result, main returns the count of the last probe.
//
// fun main(execCtx: *ExecutionContext) -> int32 {
//   var state: State
//
//   setUpState(execCtx, &state)
//   buildCol1Row1Car1(execCtx, &state)
//   probeCol1Row1Car1(execCtx, &state)
//   tearDownState(execCtx, &state)
//   ...
//   return state.ret_val
// }

func genDriver(
	w *tplWriter,
	funcs []plan.Func,
) error {
	if len(funcs) == 0 {
		return fmt.Errorf("driver has no function to call")
	}

	w.Line("fun %[entry](execCtx: *ExecutionContext) -> int32 {", tplWriterCtx{"entry": plan.EntryName})
	w.Indent()
	w.Line("var state: %[state]", stateCtx)

	var open *plan.Func // build whose probe has not been called yet
	for idx := range funcs {
		f := &funcs[idx]
		call := tplWriterCtx{"fn": f.Name}

		switch f.Role {
		case plan.RoleBuild:
			if open != nil {
				return fmt.Errorf("%s starts before %s is probed", f.Name, open.Name)
			}
			w.Blank()
			w.Line("%[setup](execCtx, &state)", stateCtx)
			w.Line("%[fn](execCtx, &state)", call)
			open = f

		case plan.RoleProbe:
			if open == nil || open.Triple != f.Triple {
				return fmt.Errorf("%s has no matching build before it", f.Name)
			}
			w.Line("%[fn](execCtx, &state)", call)
			w.Line("%[teardown](execCtx, &state)", stateCtx)
			open = nil

		default:
			return fmt.Errorf("%s: unknown role %s", f.Name, f.Role)
		}
	}
	if open != nil {
		return fmt.Errorf("%s is never probed", open.Name)
	}

	w.Blank()
	w.Line("return state.%[ret]", stateCtx)
	w.Dedent()
	w.Line("}", nil)
	return w.Err()
}
