package channels

import (
	"sync"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
)

// Factory builds a channel from the application config.
type Factory func(cfg *config.Config, b *bus.MessageBus) (Channel, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterFactory makes a channel constructor available to the manager
// under name.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func getFactory(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}
