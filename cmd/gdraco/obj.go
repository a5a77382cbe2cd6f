package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/deepteams/draco"
)

// objVertex is one corner reference of a face: indices into the v, vt and
// vn lists, -1 when absent.
type objVertex [3]int

// readOBJ parses the v, vt, vn and f records of a Wavefront OBJ file.
// Polygons are split into triangle fans. Every distinct corner reference
// becomes one mesh point.
func readOBJ(r io.Reader) (*draco.Mesh, error) {
	var (
		lists  [3][]float32
		widths = [3]int{3, 2, 3}
		points = make(map[objVertex]uint32)
		order  []objVertex
		faces  [][3]uint32
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		list := -1
		switch fields[0] {
		case "v":
			list = 0
		case "vt":
			list = 1
		case "vn":
			list = 2
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: face with %d corners", line, len(fields)-1)
			}
			var ids []uint32
			for _, f := range fields[1:] {
				ov, err := parseCorner(f, [3]int{len(lists[0]) / 3, len(lists[1]) / 2, len(lists[2]) / 3})
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				id, ok := points[ov]
				if !ok {
					id = uint32(len(order))
					points[ov] = id
					order = append(order, ov)
				}
				ids = append(ids, id)
			}
			for k := 2; k < len(ids); k++ {
				faces = append(faces, [3]uint32{ids[0], ids[k-1], ids[k]})
			}
		}
		if list < 0 {
			continue
		}
		if len(fields)-1 < widths[list] {
			return nil, fmt.Errorf("obj: line %d: %s needs %d values", line, fields[0], widths[list])
		}
		for _, s := range fields[1 : 1+widths[list]] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: %w", line, err)
			}
			lists[list] = append(lists[list], float32(v))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	m := draco.NewMesh(len(order))
	for _, f := range faces {
		m.AddFace(f[0], f[1], f[2])
	}
	types := [3]draco.AttributeType{draco.Position, draco.TexCoord, draco.Normal}
	for list, t := range types {
		if len(lists[list]) == 0 {
			continue
		}
		a := draco.NewAttribute(t, widths[list], lists[list])
		a.PointToValue = make([]uint32, len(order))
		for p, ov := range order {
			if ov[list] < 0 {
				if list == 0 {
					return nil, fmt.Errorf("obj: face corner without a position")
				}
				// Corners without this attribute share its first value.
				continue
			}
			a.PointToValue[p] = uint32(ov[list])
		}
		m.AddAttribute(a)
	}
	if m.NamedAttribute(draco.Position) == nil {
		a := draco.NewAttribute(draco.Position, 3, nil)
		a.PointToValue = []uint32{}
		m.AddAttribute(a)
	}
	return m, nil
}

// parseCorner parses "v", "v/vt", "v//vn" or "v/vt/vn". Negative indices
// count back from the end of each list, whose current lengths are n.
func parseCorner(s string, n [3]int) (objVertex, error) {
	ov := objVertex{-1, -1, -1}
	for i, part := range strings.SplitN(s, "/", 3) {
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return ov, fmt.Errorf("bad face corner %q", s)
		}
		switch {
		case idx > 0:
			idx--
		case idx < 0:
			idx += n[i]
		default:
			return ov, fmt.Errorf("zero index in face corner %q", s)
		}
		if idx < 0 || idx >= n[i] {
			return ov, fmt.Errorf("face corner %q out of range", s)
		}
		ov[i] = idx
	}
	return ov, nil
}

// writeOBJ writes the positions, texture coordinates and normals of m and
// its faces. Other attribute types are not representable and are skipped.
func writeOBJ(w io.Writer, m *draco.Mesh) error {
	bw := bufio.NewWriter(w)
	records := []struct {
		typ    draco.AttributeType
		prefix string
	}{
		{draco.Position, "v"},
		{draco.TexCoord, "vt"},
		{draco.Normal, "vn"},
	}
	var attrs [3]*draco.Attribute
	for i, r := range records {
		a := m.NamedAttribute(r.typ)
		if a == nil || a.Values == nil {
			continue
		}
		attrs[i] = a
		for v := 0; v < a.NumValues(); v++ {
			bw.WriteString(r.prefix)
			for _, c := range a.Value(uint32(v)) {
				bw.WriteByte(' ')
				bw.WriteString(strconv.FormatFloat(float64(c), 'g', -1, 32))
			}
			bw.WriteByte('\n')
		}
	}
	if attrs[0] == nil {
		return fmt.Errorf("obj: mesh has no decoded positions")
	}
	for _, f := range m.Faces {
		bw.WriteString("f")
		for _, p := range f {
			fmt.Fprintf(bw, " %d", attrs[0].ValueIndex(p)+1)
			switch {
			case attrs[1] != nil && attrs[2] != nil:
				fmt.Fprintf(bw, "/%d/%d", attrs[1].ValueIndex(p)+1, attrs[2].ValueIndex(p)+1)
			case attrs[1] != nil:
				fmt.Fprintf(bw, "/%d", attrs[1].ValueIndex(p)+1)
			case attrs[2] != nil:
				fmt.Fprintf(bw, "//%d", attrs[2].ValueIndex(p)+1)
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
