package parser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

func TestReadNodesCSV(t *testing.T) {
	src := "id,x,y,institution\n" +
		"a,0,1,MIT\n" +
		"# comment\n" +
		"b, 2.5 ,-3,Stanford\n"
	nodes, err := ReadNodesCSV(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, 1.0, nodes[0].Y)
	assert.Equal(t, "MIT", nodes[0].Attributes["institution"])
	assert.Equal(t, 2.5, nodes[1].X)
	assert.Equal(t, -3.0, nodes[1].Y)
}

func TestReadNodesCSVMalformed(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
	}{
		{"bad x", "id,x,y\na,1,2\nb,oops,2\n", 3},
		{"nan", "id,x,y\na,NaN,2\n", 2},
		{"short row", "id,x,y\na,1\n", 2},
		{"empty id", "id,x,y\n,1,2\n", 2},
		{"missing column", "id,x\na,1\n", 1},
		{"empty input", "", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadNodesCSV(strings.NewReader(tc.src))
			require.ErrorIs(t, err, ErrMalformedRow)
			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, tc.line, rowErr.Line)
		})
	}
}

func TestReadEdgesCSV(t *testing.T) {
	edges, err := ReadEdgesCSV(strings.NewReader("from,to,weight\na,b,2\nb,c,\n"))
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, models.Edge{Source: "a", Target: "b", Weight: 2}, edges[0])
	assert.Equal(t, 1.0, edges[1].EffectiveWeight())

	_, err = ReadEdgesCSV(strings.NewReader("source,target,weight\na,b,-1\n"))
	assert.ErrorIs(t, err, ErrMalformedRow)
	_, err = ReadEdgesCSV(strings.NewReader("source,target\na,\n"))
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestReadPointsCSV(t *testing.T) {
	src := "easting,northing,pop,race\n1,2,10,w\n3,4,5,b\n"
	ps, err := ReadPointsCSV(strings.NewReader(src), "easting", "northing", "pop", "race")
	require.NoError(t, err)
	require.Len(t, ps.Points, 2)
	assert.Equal(t, models.Point{X: 1, Y: 2, Value: 10, Category: "w"}, ps.Points[0])

	ps, err = ReadPointsCSV(strings.NewReader(src), "easting", "northing", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.Point{X: 3, Y: 4, Value: 1}, ps.Points[1])

	_, err = ReadPointsCSV(strings.NewReader(src), "x", "y", "", "")
	assert.ErrorIs(t, err, ErrMalformedRow)
	_, err = ReadPointsCSV(strings.NewReader(src), "easting", "northing", "income", "")
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestYAMLCodec(t *testing.T) {
	src := `
nodes:
  - id: a
    x: 0
    y: 1
    attributes:
      institution: MIT
  - id: b
    x: 2
    y: 3
edges:
  - source: a
    target: b
    weight: 2
`
	g, err := NewYAMLCodec().Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "MIT", g.Nodes[0].Attributes["institution"])
	assert.Equal(t, 3.0, g.Nodes[1].Y)
	assert.Equal(t, 2.0, g.Edges[0].Weight)

	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(g, &buf))
	assert.Contains(t, buf.String(), "institution: MIT")

	empty, err := NewYAMLCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Nodes)

	_, err = NewYAMLCodec().Parse(strings.NewReader("nodes: [unclosed"))
	assert.Error(t, err)
}

func TestEdgeListCodecRejectsBadWeights(t *testing.T) {
	for _, w := range []string{"NaN", "-1", "+Inf", "heavy"} {
		_, err := NewEdgeListCodec().Parse(strings.NewReader("a b " + w + "\n"))
		assert.ErrorIs(t, err, ErrMalformedRow, w)
	}
}

func TestLoadGraphFileRejectsNegativeWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	src := `{"nodes":[{"id":"a","x":0,"y":0},{"id":"b","x":1,"y":1}],"edges":[{"source":"a","target":"b","weight":-1}]}`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := LoadGraphFile(path)
	assert.ErrorIs(t, err, models.ErrInvalidWeight)
}

func TestJSONCodec(t *testing.T) {
	src := `{"nodes":[{"id":"a","x":0,"y":0},{"id":"b","x":1,"y":1}],"edges":[{"source":"a","target":"b"}]}`
	g, err := NewJSONCodec().Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, "b", g.Edges[0].Target)

	_, err = NewJSONCodec().Parse(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestEdgeListCodec(t *testing.T) {
	src := "# collaboration\n1 2\n2 3 0.5\n\n3 1\n"
	g, err := NewEdgeListCodec().Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{g.Nodes[0].ID, g.Nodes[1].ID, g.Nodes[2].ID})
	require.Len(t, g.Edges, 3)
	assert.Equal(t, 0.5, g.Edges[1].Weight)
	require.NoError(t, g.Validate())

	_, err = NewEdgeListCodec().Parse(strings.NewReader("1 2\nlonely\n"))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Line)

	var buf bytes.Buffer
	require.NoError(t, NewEdgeListCodec().Export(g, &buf))
	assert.Equal(t, "1 2 1\n2 3 0.5\n3 1 1\n", buf.String())
}

func testPaths() []bundling.Path {
	return []bundling.Path{
		{EdgeIndex: 0, Source: "a", Target: "b", Points: []r2.Vec{{X: 0, Y: 0}, {X: 0.5, Y: 1}}},
		{EdgeIndex: 1, Source: "b", Target: "c", Points: []r2.Vec{{X: 2, Y: 2}}},
	}
}

func TestPathExportJSON(t *testing.T) {
	exp, err := PathExporterFor("json")
	require.NoError(t, err)
	assert.Equal(t, "json", exp.Format())

	var buf bytes.Buffer
	require.NoError(t, exp.ExportPaths(testPaths(), &buf))
	assert.JSONEq(t, `{"paths":[
		{"edge":0,"source":"a","target":"b","points":[[0,0],[0.5,1]]},
		{"edge":1,"source":"b","target":"c","points":[[2,2]]}]}`, buf.String())

	back, err := NewJSONCodec().ParsePaths(&buf)
	require.NoError(t, err)
	assert.Equal(t, testPaths(), back)
}

func TestPathExportCSV(t *testing.T) {
	exp, err := PathExporterFor("CSV")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exp.ExportPaths(testPaths(), &buf))
	assert.Equal(t, "x,y,edge\n0,0,0\n0.5,1,0\n\n2,2,1\n", buf.String())

	_, err = PathExporterFor("parquet")
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGraph(t *testing.T) {
	dir := t.TempDir()
	nodes := writeFile(t, dir, "nodes.csv", "id,x,y\na,0,0\nb,1,1\n")
	edges := writeFile(t, dir, "edges.csv", "source,target\na,b\n")

	g, err := LoadGraph(nodes, edges)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)

	bad := writeFile(t, dir, "bad.csv", "source,target\na,z\n")
	_, err = LoadGraph(nodes, bad)
	assert.ErrorIs(t, err, models.ErrUnknownNode)

	_, err = LoadGraph(filepath.Join(dir, "missing.csv"), edges)
	assert.Error(t, err)
}

func TestLoadGraphFile(t *testing.T) {
	dir := t.TempDir()
	yml := writeFile(t, dir, "g.yaml", "nodes:\n  - {id: a, x: 0, y: 0}\n  - {id: b, x: 1, y: 0}\nedges:\n  - {source: a, target: b}\n")
	g, err := LoadGraphFile(yml)
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)

	txt := writeFile(t, dir, "g.txt", "a b\nb c\n")
	g, err = LoadGraphFile(txt)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)

	dup := writeFile(t, dir, "dup.json", `{"nodes":[{"id":"a"},{"id":"a"}],"edges":[]}`)
	_, err = LoadGraphFile(dup)
	assert.ErrorIs(t, err, models.ErrDuplicateNode)

	_, err = LoadGraphFile(filepath.Join(dir, "g.gml"))
	assert.Error(t, err)
}
