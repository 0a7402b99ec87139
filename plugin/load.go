package plugin

import (
	"sort"

	"github.com/writewhisker/whisker-core/rterr"
)

// topoSort orders manifests by Dependencies so every plugin loads after
// everything it depends on (spec §4.10: "loaded in topological order by
// dependencies"). Iteration order among manifests with no remaining
// dependency is their name, sorted, for deterministic output. Circular
// dependencies produce PluginLoadError naming the unresolved set.
func topoSort(byName map[string]*Manifest) ([]string, error) {
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string)
	for name, m := range byName {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for dep := range m.Dependencies {
			if _, ok := byName[dep]; !ok {
				// An undeclared dependency is not itself a cycle; the
				// plugin simply loads as if it had none, and its later
				// on_init can fail if it truly needed that dependency.
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(byName) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		msg := "circular plugin dependency among: "
		for i, s := range stuck {
			if i > 0 {
				msg += ", "
			}
			msg += s
		}
		return nil, rterr.New(rterr.PluginLoadError, msg)
	}
	return order, nil
}
