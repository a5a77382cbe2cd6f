package corner

// halfEdge is a pending edge leaving a vertex, keyed by its sink vertex.
type halfEdge struct {
	sink   VertexIndex
	corner CornerIndex
}

// computeOppositeCorners matches every half-edge with its reversed twin.
// Half-edges are bucketed by source vertex; each face edge either consumes
// a pending twin stored at its sink vertex or registers itself at its
// source vertex. Degenerate faces and mirrored faces never match.
func (t *Table) computeOppositeCorners(numVertices int) {
	counts := make([]int, numVertices)
	for _, v := range t.cornerToVertex {
		counts[v]++
	}
	offsets := make([]int, numVertices)
	sum := 0
	for v, n := range counts {
		offsets[v] = sum
		sum += n
	}
	edges := make([]halfEdge, len(t.cornerToVertex))
	for i := range edges {
		edges[i] = halfEdge{sink: InvalidVertex, corner: InvalidCorner}
	}

	for c := CornerIndex(0); int(c) < len(t.cornerToVertex); c++ {
		tip := t.cornerToVertex[c]
		source := t.cornerToVertex[Next(c)]
		sink := t.cornerToVertex[Previous(c)]
		if c%3 == 0 && (tip == source || tip == sink || source == sink) {
			t.numDegenerateFaces++
			c += 2
			continue
		}

		opp := InvalidCorner
		off := offsets[sink]
		for i := 0; i < counts[sink]; i, off = i+1, off+1 {
			other := edges[off].sink
			if other == InvalidVertex {
				break
			}
			if other != source {
				continue
			}
			if tip == t.cornerToVertex[edges[off].corner] {
				continue
			}
			opp = edges[off].corner
			for j := i + 1; j < counts[sink]; j, off = j+1, off+1 {
				edges[off] = edges[off+1]
				if edges[off].sink == InvalidVertex {
					break
				}
			}
			edges[off].sink = InvalidVertex
			break
		}

		if opp == InvalidCorner {
			off = offsets[source]
			for i := 0; i < counts[source]; i, off = i+1, off+1 {
				if edges[off].sink == InvalidVertex {
					edges[off] = halfEdge{sink: sink, corner: c}
					break
				}
			}
			continue
		}
		t.oppositeCorners[c] = opp
		t.oppositeCorners[opp] = c
	}
}

// breakNonManifoldEdges disconnects faces whose ring around a vertex passes
// the same edge twice. The affected edges become boundary edges, and
// computeVertexCorners later gives each resulting fan its own vertex.
func (t *Table) breakNonManifoldEdges() {
	visited := make([]bool, len(t.cornerToVertex))
	var sinks []halfEdge

	for updated := true; updated; {
		updated = false
		for c := CornerIndex(0); int(c) < len(t.cornerToVertex); c++ {
			if visited[c] {
				continue
			}
			sinks = sinks[:0]

			first := c
			cur := c
			for {
				next := t.SwingLeft(cur)
				if next == first || next == InvalidCorner || visited[next] {
					break
				}
				cur = next
			}
			first = cur

			for {
				visited[cur] = true
				sinkCorner := Next(cur)
				sinkV := t.cornerToVertex[sinkCorner]
				edgeCorner := Previous(cur)
				broken := false
				for _, s := range sinks {
					if s.sink != sinkV {
						continue
					}
					other := s.corner
					oppEdge := t.Opposite(edgeCorner)
					if oppEdge == other {
						continue
					}
					oppOther := t.Opposite(other)
					t.SetOppositeCorner(edgeCorner, InvalidCorner)
					t.SetOppositeCorner(oppEdge, InvalidCorner)
					t.SetOppositeCorner(other, InvalidCorner)
					t.SetOppositeCorner(oppOther, InvalidCorner)
					broken = true
					break
				}
				if broken {
					updated = true
					break
				}
				sinks = append(sinks, halfEdge{sink: t.cornerToVertex[Previous(cur)], corner: sinkCorner})
				cur = t.SwingRight(cur)
				if cur == first || cur == InvalidCorner {
					break
				}
			}
		}
	}
}

// computeVertexCorners assigns each vertex its left-most corner and splits
// vertices whose corners form more than one fan.
func (t *Table) computeVertexCorners(numVertices int) {
	t.numOriginalVertices = numVertices
	t.vertexCorners = make([]CornerIndex, numVertices)
	for i := range t.vertexCorners {
		t.vertexCorners[i] = InvalidCorner
	}
	visitedVertices := make([]bool, numVertices)
	visitedCorners := make([]bool, len(t.cornerToVertex))

	for f := FaceIndex(0); int(f) < t.NumFaces(); f++ {
		if t.IsDegenerate(f) {
			continue
		}
		for k := CornerIndex(0); k < 3; k++ {
			c := FirstCorner(f) + k
			if visitedCorners[c] {
				continue
			}
			v := t.cornerToVertex[c]
			split := false
			if visitedVertices[v] {
				t.vertexCorners = append(t.vertexCorners, InvalidCorner)
				t.nonManifoldParents = append(t.nonManifoldParents, v)
				visitedVertices = append(visitedVertices, false)
				v = VertexIndex(numVertices)
				numVertices++
				split = true
			}
			visitedVertices[v] = true

			act := c
			for act != InvalidCorner {
				visitedCorners[act] = true
				t.vertexCorners[v] = act
				if split {
					t.cornerToVertex[act] = v
				}
				act = t.SwingLeft(act)
				if act == c {
					break
				}
			}
			if act == InvalidCorner {
				for act = t.SwingRight(c); act != InvalidCorner; act = t.SwingRight(act) {
					visitedCorners[act] = true
					if split {
						t.cornerToVertex[act] = v
					}
				}
			}
		}
	}

	t.numIsolatedVertices = 0
	for _, ok := range visitedVertices {
		if !ok {
			t.numIsolatedVertices++
		}
	}
}
