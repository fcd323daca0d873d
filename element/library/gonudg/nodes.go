package gonudg

// Equispaced nodes on the bi-unit simplices, ordered by entity: vertices,
// then edge interiors, then face interiors, then the cell interior. Edges walk
// from their first to their second vertex.

var (
	triVerts = [][2]float64{{-1, -1}, {1, -1}, {-1, 1}}
	triEdges = [][2]int{{0, 1}, {1, 2}, {2, 0}}

	tetVerts = [][3]float64{{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}}
	tetEdges = [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}}
	tetFaces = [][3]int{{0, 1, 2}, {0, 1, 3}, {1, 2, 3}, {0, 2, 3}}
)

// EquiNodes1D returns N+1 equispaced nodes on [-1,1]: the two end points
// first, then the interior in increasing order
func EquiNodes1D(N int) (r []float64) {
	if N < 1 {
		return []float64{0}
	}
	r = make([]float64, 0, N+1)
	r = append(r, -1, 1)
	for i := 1; i < N; i++ {
		r = append(r, -1+2*float64(i)/float64(N))
	}
	return
}

// EquiNodes2D returns the (N+1)(N+2)/2 equispaced nodes of the triangle
func EquiNodes2D(N int) (r, s []float64) {
	if N < 1 {
		return []float64{-1. / 3.}, []float64{-1. / 3.}
	}
	Np := (N + 1) * (N + 2) / 2
	r = make([]float64, 0, Np)
	s = make([]float64, 0, Np)
	for _, v := range triVerts {
		r = append(r, v[0])
		s = append(s, v[1])
	}
	h := 1 / float64(N)
	for _, e := range triEdges {
		a, b := triVerts[e[0]], triVerts[e[1]]
		for i := 1; i < N; i++ {
			f := float64(i) * h
			r = append(r, a[0]+f*(b[0]-a[0]))
			s = append(s, a[1]+f*(b[1]-a[1]))
		}
	}
	for j := 1; j < N; j++ {
		for i := 1; i+j < N; i++ {
			r = append(r, -1+2*float64(i)*h)
			s = append(s, -1+2*float64(j)*h)
		}
	}
	return
}

// EquiNodes3D returns the (N+1)(N+2)(N+3)/6 equispaced nodes of the
// tetrahedron
func EquiNodes3D(N int) (r, s, t []float64) {
	if N < 1 {
		return []float64{-0.5}, []float64{-0.5}, []float64{-0.5}
	}
	Np := (N + 1) * (N + 2) * (N + 3) / 6
	r = make([]float64, 0, Np)
	s = make([]float64, 0, Np)
	t = make([]float64, 0, Np)
	add := func(p [3]float64) {
		r = append(r, p[0])
		s = append(s, p[1])
		t = append(t, p[2])
	}
	for _, v := range tetVerts {
		add(v)
	}
	h := 1 / float64(N)
	for _, e := range tetEdges {
		a, b := tetVerts[e[0]], tetVerts[e[1]]
		for i := 1; i < N; i++ {
			f := float64(i) * h
			add([3]float64{a[0] + f*(b[0]-a[0]), a[1] + f*(b[1]-a[1]), a[2] + f*(b[2]-a[2])})
		}
	}
	for _, fc := range tetFaces {
		a, b, c := tetVerts[fc[0]], tetVerts[fc[1]], tetVerts[fc[2]]
		for j := 1; j < N; j++ {
			for i := 1; i+j < N; i++ {
				fi, fj := float64(i)*h, float64(j)*h
				var p [3]float64
				for d := 0; d < 3; d++ {
					p[d] = a[d] + fi*(b[d]-a[d]) + fj*(c[d]-a[d])
				}
				add(p)
			}
		}
	}
	for k := 1; k < N; k++ {
		for j := 1; j+k < N; j++ {
			for i := 1; i+j+k < N; i++ {
				add([3]float64{-1 + 2*float64(i)*h, -1 + 2*float64(j)*h, -1 + 2*float64(k)*h})
			}
		}
	}
	return
}
