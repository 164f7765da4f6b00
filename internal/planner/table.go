package planner

import "fmt"

// valueTable is a dense (stages x n x n x n) array owned by one planning
// call. Stage `stages-1` is the all-zero terminal stage.
type valueTable struct {
	stages int
	n      int
	data   []float64
}

func newValueTable(horizon int) *valueTable {
	n := horizon + 1
	return &valueTable{stages: n, n: n, data: make([]float64, n*n*n*n)}
}

func (t *valueTable) index(stage, i, j, k int) int {
	if stage < 0 || stage >= t.stages || i < 0 || i >= t.n || j < 0 || j >= t.n || k < 0 || k >= t.n {
		panic(fmt.Sprintf("planner: value table index out of range: [%d][%d][%d][%d] in %dx%d^3",
			stage, i, j, k, t.stages, t.n))
	}
	return ((stage*t.n+i)*t.n+j)*t.n + k
}

func (t *valueTable) at(stage, i, j, k int) float64 {
	return t.data[t.index(stage, i, j, k)]
}

func (t *valueTable) set(stage, i, j, k int, v float64) {
	t.data[t.index(stage, i, j, k)] = v
}

// grid is the (stage x n x n) table of the single-agent planner.
type grid struct {
	stages int
	n      int
	data   []float64
}

func newGrid(horizon int) *grid {
	n := horizon + 1
	return &grid{stages: n, n: n, data: make([]float64, n*n*n)}
}

func (g *grid) index(stage, j, k int) int {
	if stage < 0 || stage >= g.stages || j < 0 || j >= g.n || k < 0 || k >= g.n {
		panic(fmt.Sprintf("planner: grid index out of range: [%d][%d][%d] in %dx%d^2", stage, j, k, g.stages, g.n))
	}
	return (stage*g.n+j)*g.n + k
}

func (g *grid) at(stage, j, k int) float64     { return g.data[g.index(stage, j, k)] }
func (g *grid) set(stage, j, k int, v float64) { g.data[g.index(stage, j, k)] = v }
