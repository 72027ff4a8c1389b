package layout

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/graph/community"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// AttrCommunity is the node attribute holding the Louvain community label
const AttrCommunity = "community"

// Communities runs Louvain modularity optimization and returns one label per
// node, indexed like g.Nodes. Labels are renumbered so that community 0
// contains the lowest node index, 1 the next lowest, and so on.
func Communities(g *models.Graph, resolution float64) []int {
	labels := make([]int, len(g.Nodes))
	if len(g.Nodes) == 0 {
		return labels
	}

	reduced := community.Modularize(toUndirected(g), resolution, nil)

	groups := make([][]int, 0)
	for _, members := range reduced.Communities() {
		ids := make([]int, 0, len(members))
		for _, n := range members {
			ids = append(ids, int(n.ID()))
		}
		sort.Ints(ids)
		if len(ids) > 0 {
			groups = append(groups, ids)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	for label, ids := range groups {
		for _, id := range ids {
			labels[id] = label
		}
	}
	return labels
}

// AnnotateCommunities returns a copy of g with AttrCommunity set on every node
func AnnotateCommunities(g *models.Graph, resolution float64) *models.Graph {
	out := g.Clone()
	for i, label := range Communities(g, resolution) {
		out.SetAttribute(i, AttrCommunity, strconv.Itoa(label))
	}
	return out
}
