// Two parallel triangulated plates approach each other under a constant
// driving force. The barrier form limits every trial step to a collision-free
// fraction and retunes its stiffness as the plates close in, so the descent
// converges to a small positive gap instead of interpenetrating.
package main

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact"
	"github.com/solverforge/contact/logx"
	"github.com/solverforge/contact/mesh"
	"github.com/solverforge/contact/solver"
)

// plates builds two unit squares (two triangles each) separated by gap along
// z, with an identity DOF map.
func plates(gap float64) *mesh.CollisionMesh {
	rest := []mgl64.Vec3{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, gap}, {1, 0, gap}, {1, 1, gap}, {0, 1, gap},
	}
	faces := [][3]int{{0, 1, 2}, {0, 2, 3}, {4, 5, 6}, {4, 6, 7}}
	edges := [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0}, {0, 2},
		{4, 5}, {5, 6}, {6, 7}, {7, 4}, {4, 6},
	}
	dof := make([]int, len(rest))
	for i := range dof {
		dof[i] = 3 * i
	}
	m, err := mesh.New(rest, edges, faces, dof, 3*len(rest))
	if err != nil {
		panic(err)
	}
	return m
}

// objective drives the upper plate downward with a constant force and adds
// the barrier potential.
type objective struct {
	form  *contact.Form
	force []float64
}

func (o *objective) Value(x []float64) float64 {
	v := o.form.Value(x)
	for i := range x {
		v -= o.force[i] * x[i]
	}
	return v
}

func (o *objective) Gradient(x []float64) []float64 {
	grad := o.form.Gradient(x)
	for i := range grad {
		grad[i] -= o.force[i]
	}
	return grad
}

func main() {
	logx.SetLevel(slog.LevelDebug)

	const gap = 0.05
	m := plates(gap)
	n := m.NumDof

	opts := contact.DefaultOptions()
	opts.Dhat = 0.02
	opts.TimeDependent = true

	masses := make([]float64, n)
	for i := range masses {
		masses[i] = 1
	}
	elasticity := contact.Elasticity{
		// A stiff spring pulling every DOF back to rest stands in for the
		// elastic solver.
		Gradient: func(x []float64) []float64 {
			g := make([]float64, len(x))
			for i := range x {
				g[i] = 10 * x[i]
			}
			return g
		},
		Mass:    masses,
		AvgMass: 1,
	}

	form, err := contact.NewForm(m, elasticity, opts)
	if err != nil {
		panic(err)
	}

	// Constant downward force on the upper plate.
	force := make([]float64, n)
	for vi := 4; vi < 8; vi++ {
		force[3*vi+2] = -1
	}
	obj := &objective{form: form, force: force}

	x := make([]float64, n)
	form.SolutionChanged(x)
	form.Init(x)

	search := solver.LineSearch{Log: logx.Logger()}
	for iter := 0; iter < 20; iter++ {
		grad := obj.Gradient(x)
		dir := make([]float64, n)
		norm := 0.0
		for i := range grad {
			dir[i] = -grad[i]
			norm += grad[i] * grad[i]
		}
		if norm < 1e-12 {
			break
		}

		step, xNew, err := search.Search(obj, form, x, dir)
		if err != nil {
			fmt.Println("line search stopped:", err)
			break
		}
		x = xNew
		form.PostStep(iter, x)
		fmt.Printf("iter %2d step %.3g min distance %.5g stiffness %.3g\n",
			iter, step, form.MinDistance(x), form.BarrierStiffness())
	}
}
