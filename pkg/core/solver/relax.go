package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultMaxRelaxationRows caps the LP relaxation. Larger models rely on the
// combinatorial bound alone.
const DefaultMaxRelaxationRows = 240

const simplexTolerance = 1e-9

// relaxation is the outcome of the root LP
type relaxation struct {
	Bound      int
	Solved     bool
	Infeasible bool
}

type sparseRow struct {
	cols  map[int]float64
	sense modelbuilder.Sense
	rhs   float64
}

// relax solves the LP relaxation of m in standard form (Ax = b, x >= 0)
// and returns its optimum rounded up. Fixed variables are substituted as
// constants and every inequality gets its own slack column.
func relax(m *modelbuilder.Model, maxRows int) (relaxation, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRelaxationRows
	}

	col := make([]int, len(m.Vars))
	fixed := make([]int, len(m.Vars))
	numCols := 0
	for i, v := range m.Vars {
		if v.Lower > v.Upper {
			return relaxation{Infeasible: true}, nil
		}
		if v.Fixed() {
			col[i] = -1
			fixed[i] = v.Lower
			continue
		}
		col[i] = numCols
		numCols++
	}

	var rows []sparseRow
	addRow := func(expr modelbuilder.LinearExpr, sense modelbuilder.Sense, rhs int) bool {
		r := sparseRow{cols: make(map[int]float64), sense: sense}
		rest := rhs - expr.Constant
		for _, t := range expr.Terms {
			if c := col[t.Var]; c >= 0 {
				r.cols[c] += float64(t.Coef)
			} else {
				rest -= t.Coef * fixed[t.Var]
			}
		}
		for c, v := range r.cols {
			if v == 0 {
				delete(r.cols, c)
			}
		}
		if len(r.cols) == 0 {
			switch sense {
			case modelbuilder.LessEq:
				return rest >= 0
			case modelbuilder.GreaterEq:
				return rest <= 0
			default:
				return rest == 0
			}
		}
		r.rhs = float64(rest)
		rows = append(rows, r)
		return true
	}

	for _, c := range m.Constraints {
		if !addRow(c.Expr, c.Sense, c.RHS) {
			return relaxation{Infeasible: true}, nil
		}
	}
	for i, v := range m.Vars {
		if col[i] < 0 {
			continue
		}
		one := modelbuilder.LinearExpr{Terms: []modelbuilder.Term{{Var: modelbuilder.VarID(i), Coef: 1}}}
		if v.Kind == modelbuilder.KindBool {
			addRow(one, modelbuilder.LessEq, v.Upper)
		}
		if v.Lower > 0 {
			addRow(one, modelbuilder.GreaterEq, v.Lower)
		}
	}

	if len(rows) > maxRows {
		return relaxation{}, nil
	}

	// Objective: weights sit on the slack variables of each penalty
	cost := make([]float64, numCols)
	for _, p := range m.Penalties {
		for _, v := range p.Aux {
			if c := col[v]; c >= 0 {
				cost[c] += float64(p.Weight)
			}
		}
	}

	// Drop columns no row mentions; with non-negative cost they sit at zero
	used := make([]bool, numCols)
	for _, r := range rows {
		for c := range r.cols {
			used[c] = true
		}
	}
	remap := make([]int, numCols)
	n := 0
	for c := range used {
		if !used[c] {
			remap[c] = -1
			continue
		}
		remap[c] = n
		n++
	}

	slacks := 0
	for _, r := range rows {
		if r.sense != modelbuilder.Equal {
			slacks++
		}
	}
	width := n + slacks
	if len(rows) == 0 || len(rows) > width {
		return relaxation{}, nil
	}

	c := make([]float64, width)
	for old, nc := range remap {
		if nc >= 0 {
			c[nc] = cost[old]
		}
	}

	A := mat.NewDense(len(rows), width, nil)
	b := make([]float64, len(rows))
	slack := n
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for old, v := range r.cols {
			A.Set(i, remap[old], sign*v)
		}
		switch r.sense {
		case modelbuilder.LessEq:
			A.Set(i, slack, sign)
			slack++
		case modelbuilder.GreaterEq:
			A.Set(i, slack, -sign)
			slack++
		}
		b[i] = sign * r.rhs
	}

	opt, err := simplex(c, A, b)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return relaxation{Infeasible: true}, nil
		}
		return relaxation{}, err
	}

	return relaxation{
		Bound:  int(math.Ceil(opt - 1e-6)),
		Solved: true,
	}, nil
}

// simplex guards lp.Simplex, which panics on some degenerate inputs
func simplex(c []float64, A mat.Matrix, b []float64) (opt float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex panicked: %v", r)
		}
	}()
	opt, _, err = lp.Simplex(c, A, b, simplexTolerance, nil)
	return opt, err
}
