package sim

import (
	"sync"

	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/idgen"
)

// KernelBuilder configures and creates Kernels.
type KernelBuilder struct {
	maxDelta   int
	endTime    VTime
	hasEndTime bool
}

// MakeKernelBuilder creates a KernelBuilder with default parameters.
func MakeKernelBuilder() KernelBuilder {
	return KernelBuilder{
		maxDelta: DefaultMaxDeltaCycles,
	}
}

// WithMaxDeltaCycles sets how many delta cycles a single time step may use
// before the kernel reports an oscillation.
func (b KernelBuilder) WithMaxDeltaCycles(n int) KernelBuilder {
	if n <= 0 {
		panic("max delta cycles must be positive")
	}

	b.maxDelta = n

	return b
}

// WithEndTime makes the kernel terminate once simulated time reaches t.
func (b KernelBuilder) WithEndTime(t VTime) KernelBuilder {
	b.endTime = t
	b.hasEndTime = true

	return b
}

// Build creates a new Kernel.
func (b KernelBuilder) Build() *Kernel {
	k := &Kernel{
		HookableBase: hooking.NewHookableBase(),
		store:        NewStore(),
		procs:        NewProcessTable(),
		queue:        newEventQueue(),
		seq:          idgen.New(),
		maxDelta:     b.maxDelta,
		endTime:      b.endTime,
		hasEndTime:   b.hasEndTime,
		delta:        -1,
		status:       StatusReady,
	}
	k.pauseCond = sync.NewCond(&k.pauseMu)

	return k
}
