// Package hooking lets observers attach to the simulation kernel without the
// kernel knowing about them.
package hooking

// HookPos names a point in the driver loop where hooks fire. Positions are
// compared by identity, so each one is declared once as a package variable.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	if p == nil {
		return "<nil>"
	}

	return p.Name
}

// HookCtx describes one firing of a hook.
type HookCtx struct {
	// Domain raised the hook.
	Domain Hookable

	// Pos is where in the driver loop the hook fired.
	Pos *HookPos

	// Item is what happened there: a step, a transition, a conflict, a
	// process activation or the termination. Each position documents its
	// item type.
	Item any
}

// Hookable is implemented by anything that raises hooks.
type Hookable interface {
	// AcceptHook attaches a hook. Hooks are attached while the kernel is
	// being built and stay attached for its lifetime.
	AcceptHook(hook Hook)

	// NumHooks returns the number of attached hooks.
	NumHooks() int

	// Hooks returns the attached hooks in attachment order.
	Hooks() []Hook

	// InvokeHook calls every attached hook with ctx.
	InvokeHook(ctx HookCtx)
}

// Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts an ordinary function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// OnlyAt wraps hook so that it only sees the given positions.
func OnlyAt(hook Hook, positions ...*HookPos) Hook {
	f := &posFilter{hook: hook, positions: make(map[*HookPos]bool)}
	for _, p := range positions {
		f.positions[p] = true
	}

	return f
}

type posFilter struct {
	hook      Hook
	positions map[*HookPos]bool
}

func (f *posFilter) Func(ctx HookCtx) {
	if f.positions[ctx.Pos] {
		f.hook.Func(ctx)
	}
}

// HookableBase keeps a list of hooks. Types embed it to become Hookable.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates an empty HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks returns the number of attached hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns a copy of the attached hooks.
func (h *HookableBase) Hooks() []Hook {
	return append([]Hook(nil), h.hookList...)
}

// AcceptHook attaches a hook. Attaching the same hook value twice panics,
// except for HookFuncs, which cannot be compared.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, existing := range h.hookList {
			if existing == hook {
				panic("hooking: hook attached twice")
			}
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook calls the attached hooks in attachment order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
