package runtime

import (
	"github.com/filecoin-project/go-state-types/rt"
)

// Concrete types associated with the runtime interface.

// An actor as seen by a VM: its code, its exported methods and a prototype of its state.
type VMActor = rt.VMActor
