package engine

// undoList accumulates the reverse actions of a statement's already-applied
// row mutations (spec §5: "statements keep an undo list of applied row
// operations and run it in reverse on abort"). Each entry must itself be
// side-effect-safe to run unconditionally, since a failure partway through
// the undo list still has to unwind whatever came before it as best-effort.
type undoList []func() error

func (u *undoList) add(fn func() error) { *u = append(*u, fn) }

// rollback runs every accumulated undo action in reverse order, passing
// each error to log (when log is non-nil) without stopping, so every
// entry still gets a chance to run.
func (u undoList) rollback(log func(error)) {
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](); err != nil && log != nil {
			log(err)
		}
	}
}
