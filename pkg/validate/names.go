package validate

import (
	"fmt"
	"strings"

	"github.com/netcfg-io/netcfg/pkg/intent"
)

// nameIndex records where each name occurs, preserving first-seen order so
// duplicate reports are deterministic.
type nameIndex struct {
	order []string
	paths map[string][]string
}

func newNameIndex() *nameIndex {
	return &nameIndex{paths: make(map[string][]string)}
}

func (n *nameIndex) add(name, path string) {
	if _, seen := n.paths[name]; !seen {
		n.order = append(n.order, name)
	}
	n.paths[name] = append(n.paths[name], path)
}

// report emits exactly one DUPLICATE_NAME per name used more than once,
// listing every occurrence.
func (n *nameIndex) report(c *checker, kind string) {
	for _, name := range n.order {
		paths := n.paths[name]
		if len(paths) < 2 {
			continue
		}
		c.errorf(intent.CodeDuplicateName, paths[0]+".name",
			"%s name %q is used %d times: %s", kind, name, len(paths), strings.Join(paths, ", "))
	}
}

// DuplicateHostnames flags intents that share a hostname within one batch.
// The result maps batch index to its diagnostic; every occurrence is flagged.
func DuplicateHostnames(intents []*intent.DeviceIntent) map[int]intent.Diagnostic {
	seen := make(map[string][]int)
	var order []string
	for i, doc := range intents {
		if doc.Hostname == "" {
			continue
		}
		if _, ok := seen[doc.Hostname]; !ok {
			order = append(order, doc.Hostname)
		}
		seen[doc.Hostname] = append(seen[doc.Hostname], i)
	}

	out := make(map[int]intent.Diagnostic)
	for _, host := range order {
		idx := seen[host]
		if len(idx) < 2 {
			continue
		}
		sources := make([]string, len(idx))
		for k, i := range idx {
			sources[k] = describe(intents[i], i)
		}
		for _, i := range idx {
			out[i] = intent.Errorf(intent.CodeDuplicateName, "hostname",
				"hostname %q is declared by %d intents in this run: %s", host, len(idx), strings.Join(sources, ", "))
		}
	}
	return out
}

func describe(doc *intent.DeviceIntent, i int) string {
	if doc.Source != "" {
		return doc.Source
	}
	return fmt.Sprintf("intent #%d", i+1)
}
