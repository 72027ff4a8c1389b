package main

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/gilchrisn/graph-bundling-service/pkg/aggregation"
	"github.com/gilchrisn/graph-bundling-service/pkg/layout"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// reorder moves flags ahead of positional arguments so that
// "bundle graph.yaml -o out.png" parses like "bundle -o out.png graph.yaml"
func reorder(args []string, fs *flag.FlagSet) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			continue
		}
		if i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, positional...)
}

// parseReduction accepts a reduction name in any case
func parseReduction(name string) (aggregation.Reduction, error) {
	r := aggregation.Reduction(strings.ToLower(name))
	switch r {
	case aggregation.Count, aggregation.Sum, aggregation.Mean, aggregation.Max, aggregation.Min:
		return r, nil
	}
	return "", fmt.Errorf("unknown reduction %q", name)
}

func sortedCategories(ps *models.PointSet) []string {
	categories := ps.Categories()
	sort.Strings(categories)
	return categories
}

// layoutFor falls back to a circular layout when no layout was asked for
// and every node sits on the same spot, as edge lists load.
func layoutFor(g *models.Graph, method string) string {
	if method != "" && method != layout.MethodNone {
		return method
	}
	if len(g.Nodes) < 2 {
		return method
	}
	first := g.Nodes[0].Position()
	for _, n := range g.Nodes[1:] {
		if n.Position() != first {
			return method
		}
	}
	return layout.MethodCircular
}
