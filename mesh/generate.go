package mesh

import "math"

const labelTol = 1.e-12

// UnitInterval splits [0,1] into n segments. Labels: left 1, right 2.
func UnitInterval(n int) (*Mesh, error) {
	verts := make([][]float64, n+1)
	for i := range verts {
		verts[i] = []float64{float64(i) / float64(n)}
	}
	etov := make([][]int, n)
	for i := range etov {
		etov[i] = []int{i, i + 1}
	}
	return NewMesh(1, verts, etov, func(c []float64) int {
		if c[0] < 0.5 {
			return 1
		}
		return 2
	})
}

// UnitSquare splits [0,1]² into 2n² triangles. Labels: bottom 1, right 2,
// top 3, left 4.
func UnitSquare(n int) (*Mesh, error) {
	np := n + 1
	verts := make([][]float64, 0, np*np)
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			verts = append(verts, []float64{float64(i) / float64(n), float64(j) / float64(n)})
		}
	}
	etov := make([][]int, 0, 2*n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v00 := j*np + i
			v10, v01, v11 := v00+1, v00+np, v00+np+1
			etov = append(etov, []int{v00, v10, v01}, []int{v10, v11, v01})
		}
	}
	return NewMesh(2, verts, etov, squareLabel)
}

func squareLabel(c []float64) int {
	switch {
	case math.Abs(c[1]) < labelTol:
		return 1
	case math.Abs(c[0]-1) < labelTol:
		return 2
	case math.Abs(c[1]-1) < labelTol:
		return 3
	}
	return 4
}

// UnitCube splits [0,1]³ into 6n³ Kuhn tetrahedra. Labels: z=0 1, z=1 2,
// y=0 3, x=1 4, y=1 5, x=0 6.
func UnitCube(n int) (*Mesh, error) {
	np := n + 1
	id := func(i, j, k int) int { return i + np*(j+np*k) }
	verts := make([][]float64, 0, np*np*np)
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				verts = append(verts, []float64{
					float64(i) / float64(n), float64(j) / float64(n), float64(k) / float64(n)})
			}
		}
	}
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	etov := make([][]int, 0, 6*n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				for _, p := range perms {
					c := [3]int{i, j, k}
					tet := []int{id(c[0], c[1], c[2])}
					for _, d := range p {
						c[d]++
						tet = append(tet, id(c[0], c[1], c[2]))
					}
					etov = append(etov, tet)
				}
			}
		}
	}
	return NewMesh(3, verts, etov, cubeLabel)
}

func cubeLabel(c []float64) int {
	switch {
	case math.Abs(c[2]) < labelTol:
		return 1
	case math.Abs(c[2]-1) < labelTol:
		return 2
	case math.Abs(c[1]) < labelTol:
		return 3
	case math.Abs(c[0]-1) < labelTol:
		return 4
	case math.Abs(c[1]-1) < labelTol:
		return 5
	}
	return 6
}
