package commands

type Registry struct {
	defs []Definition
}

func NewRegistry(defs []Definition) *Registry {
	return &Registry{defs: defs}
}

func (r *Registry) ForChannel(channel string) []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if availableOn(d, channel) {
			out = append(out, d)
		}
	}
	return out
}

// Lookup finds the definition registered under name or one of its aliases.
func (r *Registry) Lookup(name string) (Definition, bool) {
	for _, d := range r.defs {
		if matchesCommand(d, name) {
			return d, true
		}
	}
	return Definition{}, false
}

func availableOn(d Definition, channel string) bool {
	if len(d.Channels) == 0 {
		return true
	}
	return contains(d.Channels, channel)
}

func matchesCommand(def Definition, cmdName string) bool {
	if def.Name == cmdName {
		return true
	}
	return contains(def.Aliases, cmdName)
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
