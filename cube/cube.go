package cube

// Cube is one node of the evaluation DAG. Cubes are wired by the NewX
// constructors and read-only afterwards; ReadChunk is safe for
// concurrent calls on distinct ids.
type Cube interface {
	// View returns the cube's spatio-temporal reference and policy.
	View() *View

	// Bands returns the cube's band metadata.
	Bands() *BandCollection

	// NominalChunkSize returns the configured (ct, cy, cx). Boundary
	// chunks may be smaller; use ChunkSize for the actual shape.
	NominalChunkSize() [3]int

	// ChunkSize returns the actual (st, sy, sx) of one chunk.
	ChunkSize(id ChunkID) [3]int

	CountChunks() int

	// ReadChunk materializes one chunk. Ids outside the cube return an
	// empty chunk, not an error.
	ReadChunk(id ChunkID) (*ChunkData, error)

	// GraphJSON emits the self-describing construction parameters of
	// this cube and, recursively, its parents.
	GraphJSON() (map[string]interface{}, error)

	// Children lists cubes derived from this one, for graph walks.
	Children() []Cube

	addChild(c Cube)
}

const (
	defaultChunkT = 16
	defaultChunkY = 256
	defaultChunkX = 256
)

// baseCube carries the state and chunk-id arithmetic shared by every
// cube implementation.
type baseCube struct {
	view      *View
	bands     *BandCollection
	chunkSize [3]int
	children  []Cube
}

func newBaseCube(v *View) baseCube {
	return baseCube{
		view:      v,
		bands:     NewBandCollection(),
		chunkSize: [3]int{defaultChunkT, defaultChunkY, defaultChunkX},
	}
}

func (b *baseCube) View() *View {
	return b.view
}

func (b *baseCube) Bands() *BandCollection {
	return b.bands
}

func (b *baseCube) NominalChunkSize() [3]int {
	return b.chunkSize
}

func (b *baseCube) Children() []Cube {
	return b.children
}

func (b *baseCube) addChild(c Cube) {
	b.children = append(b.children, c)
}

func (b *baseCube) SizeT() int { return b.view.NT() }
func (b *baseCube) SizeY() int { return b.view.NY() }
func (b *baseCube) SizeX() int { return b.view.NX() }

func (b *baseCube) CountChunksT() int {
	return ceilDiv(b.view.NT(), b.chunkSize[0])
}

func (b *baseCube) CountChunksY() int {
	return ceilDiv(b.view.NY(), b.chunkSize[1])
}

func (b *baseCube) CountChunksX() int {
	return ceilDiv(b.view.NX(), b.chunkSize[2])
}

func (b *baseCube) CountChunks() int {
	return b.CountChunksT() * b.CountChunksY() * b.CountChunksX()
}

// ChunkCoords maps a chunk id to (it, iy, ix), t outermost.
func (b *baseCube) ChunkCoords(id ChunkID) (int, int, int) {
	cy := b.CountChunksY()
	cx := b.CountChunksX()
	it := int(id) / (cy * cx)
	iy := (int(id) / cx) % cy
	ix := int(id) % cx
	return it, iy, ix
}

// ChunkIDOf maps chunk grid coordinates back to a chunk id.
func (b *baseCube) ChunkIDOf(it, iy, ix int) ChunkID {
	return ChunkID((it*b.CountChunksY()+iy)*b.CountChunksX() + ix)
}

// ChunkSize returns the actual (st, sy, sx) of chunk id; chunks on the
// upper boundaries of the grid are clipped.
func (b *baseCube) ChunkSize(id ChunkID) [3]int {
	it, iy, ix := b.ChunkCoords(id)
	st := minInt(b.chunkSize[0], b.view.NT()-it*b.chunkSize[0])
	sy := minInt(b.chunkSize[1], b.view.NY()-iy*b.chunkSize[1])
	sx := minInt(b.chunkSize[2], b.view.NX()-ix*b.chunkSize[2])
	return [3]int{st, sy, sx}
}

// BoundsFromChunk computes the world-coordinate window of one chunk,
// clipped to the cube extent.
func (b *baseCube) BoundsFromChunk(id ChunkID) BoundsST {
	it, iy, ix := b.ChunkCoords(id)
	size := b.ChunkSize(id)
	v := b.view

	out := BoundsST{}
	out.S.Left = v.Left + float64(ix*b.chunkSize[2])*v.DX
	out.S.Right = out.S.Left + float64(size[2])*v.DX
	out.S.Top = v.Top - float64(iy*b.chunkSize[1])*v.DY
	out.S.Bottom = out.S.Top - float64(size[1])*v.DY

	t0 := v.T0.WithUnit(v.DT.Unit)
	out.T0 = t0.Add(v.DT.Mul(it * b.chunkSize[0]))
	out.T1 = t0.Add(v.DT.Mul((it + 1) * b.chunkSize[0]))
	if v.T1.WithUnit(v.DT.Unit).Before(out.T1) {
		out.T1 = v.T1.WithUnit(v.DT.Unit)
	}
	return out
}

// FindChunkThatContains returns the chunk holding one spatio-temporal
// point, or -1 when the point is outside the cube.
func (b *baseCube) FindChunkThatContains(p CoordsST) ChunkID {
	v := b.view
	if p.X < v.Left || p.X >= v.Right || p.Y <= v.Bottom || p.Y > v.Top {
		return -1
	}
	ix := int((p.X-v.Left)/v.DX) / b.chunkSize[2]
	iy := int((v.Top-p.Y)/v.DY) / b.chunkSize[1]

	t0 := v.T0.WithUnit(v.DT.Unit)
	diff := p.T.WithUnit(v.DT.Unit).Sub(t0)
	slice, err := diff.Div(v.DT)
	if err != nil || diff.Count < 0 || slice >= v.NT() {
		return -1
	}
	it := slice / b.chunkSize[0]
	return b.ChunkIDOf(it, iy, ix)
}

func (b *baseCube) validChunk(id ChunkID) bool {
	return id >= 0 && int(id) < b.CountChunks()
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
