package bench

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Namer builds destination names that cannot collide across workers,
// processes or runs.
type Namer struct {
	clock *Clock
	pid   int
}

func NewNamer(clock *Clock) *Namer {
	return &Namer{clock: clock, pid: os.Getpid()}
}

// Name returns {prefix}_{ns}_{pid}_{counter}_{8 hex}{ext}. ext includes its dot.
func (n *Namer) Name(prefix string, counter int, ext string) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%d_%d_%06d_%s%s", prefix, n.clock.Nanos(), n.pid, counter, suffix, ext)
}
