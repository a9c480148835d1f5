package topology

import "sort"

// simplex is one element of the Vietoris–Rips filtration: a sorted
// list of node indices (its vertices), its dimension (len(vertices)-1)
// and its filtration weight.
type simplex struct {
	vertices []int
	dim      int
	weight   float64
}

// persistencePair is a (birth, death) pair tagged by the dimension of
// the creator simplex.
type persistencePair struct {
	creatorDim int
	birth      float64
	death      float64
	essential  bool
}

func (p persistencePair) persistence() float64 { return p.death - p.birth }

// buildFiltration enumerates all 0-, 1- and 2-simplices over n nodes
// using the distance matrix.
func buildFiltration(n int, dm *distanceMatrix) []simplex {
	simplices := make([]simplex, 0, n+n*(n-1)/2+n*(n-1)*(n-2)/6)

	for i := 0; i < n; i++ {
		simplices = append(simplices, simplex{vertices: []int{i}, dim: 0, weight: 0})
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			simplices = append(simplices, simplex{vertices: []int{i, j}, dim: 1, weight: dm.at(i, j)})
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				w := dm.at(i, j)
				if v := dm.at(i, k); v > w {
					w = v
				}
				if v := dm.at(j, k); v > w {
					w = v
				}
				simplices = append(simplices, simplex{vertices: []int{i, j, k}, dim: 2, weight: w})
			}
		}
	}

	// Sort by (weight, dim, lexicographic vertices) ascending for
	// deterministic reduction.
	sort.SliceStable(simplices, func(a, b int) bool {
		sa, sb := simplices[a], simplices[b]
		if sa.weight != sb.weight {
			return sa.weight < sb.weight
		}
		if sa.dim != sb.dim {
			return sa.dim < sb.dim
		}
		for i := 0; i < len(sa.vertices) && i < len(sb.vertices); i++ {
			if sa.vertices[i] != sb.vertices[i] {
				return sa.vertices[i] < sb.vertices[i]
			}
		}
		return false
	})
	return simplices
}

// vertexKey builds a lookup key for a sorted vertex slice.
func vertexKey(vs []int) string {
	b := make([]byte, 0, len(vs)*4)
	for i, v := range vs {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendInt(b, v)
	}
	return string(b)
}

func appendInt(b []byte, v int) []byte {
	if v == 0 {
		return append(b, '0')
	}
	start := len(b)
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	// reverse the digits just appended
	end := len(b) - 1
	for i, j := start, end; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// facets returns the boundary (dim-1)-faces of a simplex, each formed
// by removing one vertex.
func facets(vertices []int) [][]int {
	out := make([][]int, 0, len(vertices))
	for skip := range vertices {
		face := make([]int, 0, len(vertices)-1)
		for i, v := range vertices {
			if i != skip {
				face = append(face, v)
			}
		}
		out = append(out, face)
	}
	return out
}

// symmetricDiff computes the GF(2) sum of two sorted index lists.
func symmetricDiff(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// reduceFiltration runs the standard boundary-matrix reduction and
// extracts persistence pairs.
func reduceFiltration(simplices []simplex) []persistencePair {
	n := len(simplices)
	index := make(map[string]int, n)
	for i, s := range simplices {
		index[vertexKey(s.vertices)] = i
	}

	boundary := make([][]int, n)
	for i, s := range simplices {
		if s.dim == 0 {
			continue
		}
		cols := make([]int, 0, len(s.vertices))
		for _, f := range facets(s.vertices) {
			cols = append(cols, index[vertexKey(f)])
		}
		sort.Ints(cols)
		boundary[i] = cols
	}

	reduced := make([][]int, n)
	pivotOwner := make(map[int]int) // low -> column index that owns it

	for j := 0; j < n; j++ {
		col := append([]int(nil), boundary[j]...)
		for len(col) > 0 {
			low := col[len(col)-1]
			owner, ok := pivotOwner[low]
			if !ok {
				break
			}
			col = symmetricDiff(col, reduced[owner])
		}
		reduced[j] = col
		if len(col) > 0 {
			low := col[len(col)-1]
			pivotOwner[low] = j
		}
	}

	killed := make(map[int]bool, len(pivotOwner))
	pairs := make([]persistencePair, 0, n)
	for low, j := range pivotOwner {
		killed[low] = true
		pairs = append(pairs, persistencePair{
			creatorDim: simplices[low].dim,
			birth:      simplices[low].weight,
			death:      simplices[j].weight,
		})
	}

	for i := 0; i < n; i++ {
		if killed[i] {
			continue
		}
		if len(reduced[i]) > 0 {
			continue // this column is itself a destroyer, not a creator
		}
		pairs = append(pairs, persistencePair{
			creatorDim: simplices[i].dim,
			birth:      simplices[i].weight,
			death:      1.0,
			essential:  true,
		})
	}

	return pairs
}

const persistenceEpsilon = 1e-6
