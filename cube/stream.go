package cube

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"

	"github.com/maesbri-forks-geo/gdalcubes/utils"
)

// StreamCube forwards every chunk to an external process and reads a
// replacement chunk back. The default mode exchanges chunks over
// stdin/stdout; file streaming writes them to temp files whose paths are
// passed through the environment. The child process defines the output
// band count, discovered once at construction by probing the command
// with a minimal chunk.
type StreamCube struct {
	baseCube
	in            Cube
	command       string
	fileStreaming bool
	tempDir       string
}

const (
	streamFileInEnv  = "GDALCUBES_STREAM_FILE_IN"
	streamFileOutEnv = "GDALCUBES_STREAM_FILE_OUT"
)

func NewStreamCube(in Cube, command string, fileStreaming bool, tempDir string) (*StreamCube, error) {
	if len(strings.Fields(command)) == 0 {
		return nil, fmt.Errorf("stream needs a command")
	}
	if len(tempDir) == 0 {
		tempDir = os.TempDir()
	}
	c := &StreamCube{
		baseCube:      newBaseCube(in.View().Copy()),
		in:            in,
		command:       command,
		fileStreaming: fileStreaming,
		tempDir:       tempDir,
	}
	c.chunkSize = in.NominalChunkSize()

	// one-time probe: the response to a minimal chunk defines the output
	// band metadata
	probe := NewChunkData(in.Bands().Count(), 1, 1, 1)
	dims := [3][]float64{{0}, {0}, {0}}
	_, names, err := c.exchange(probe, in.Bands().Names(), dims)
	if err != nil {
		return nil, fmt.Errorf("stream command probe failed: %v", err)
	}
	for _, name := range names {
		if err := c.bands.Add(NewBand(name)); err != nil {
			return nil, err
		}
	}
	in.addChild(c)
	return c, nil
}

func (c *StreamCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}
	x, err := c.in.ReadChunk(id)
	if err != nil {
		return nil, err
	}
	x.Materialize()

	size := c.ChunkSize(id)
	out, _, err := c.exchange(x, c.in.Bands().Names(), c.dimensionLabels(id))
	if err != nil {
		return nil, fmt.Errorf("stream chunk %d: %v", id, err)
	}
	if out.NT != size[0] || out.NY != size[1] || out.NX != size[2] {
		return nil, fmt.Errorf("stream chunk %d: command returned shape (%d,%d,%d), expected (%d,%d,%d)",
			id, out.NT, out.NY, out.NX, size[0], size[1], size[2])
	}
	if out.NB != c.bands.Count() {
		return nil, fmt.Errorf("stream chunk %d: command returned %d bands, expected %d", id, out.NB, c.bands.Count())
	}
	return out, nil
}

// dimensionLabels produces the coordinate labels of one chunk: the start
// instants of the temporal slices (Unix seconds) and the cell center
// coordinates along y and x.
func (c *StreamCube) dimensionLabels(id ChunkID) [3][]float64 {
	size := c.ChunkSize(id)
	bounds := c.BoundsFromChunk(id)
	v := c.view

	t := make([]float64, size[0])
	for i := range t {
		t[i] = float64(bounds.T0.Add(v.DT.Mul(i)).Time().Unix())
	}
	y := make([]float64, size[1])
	for i := range y {
		y[i] = bounds.S.Top - (float64(i)+0.5)*v.DY
	}
	x := make([]float64, size[2])
	for i := range x {
		x[i] = bounds.S.Left + (float64(i)+0.5)*v.DX
	}
	return [3][]float64{t, y, x}
}

// exchange runs the command once, feeding one chunk and reading one
// chunk back.
func (c *StreamCube) exchange(chunk *ChunkData, bandNames []string, dims [3][]float64) (*ChunkData, []string, error) {
	var input bytes.Buffer
	if err := writeChunkMessage(&input, chunk, bandNames, dims); err != nil {
		return nil, nil, err
	}

	parts := strings.Fields(c.command)
	cmd := exec.Command(parts[0], parts[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var outData []byte
	if c.fileStreaming {
		inFile := utils.TempFilename(c.tempDir, "stream_", ".in")
		outFile := utils.TempFilename(c.tempDir, "stream_", ".out")
		defer os.Remove(inFile)
		defer os.Remove(outFile)

		if err := ioutil.WriteFile(inFile, input.Bytes(), 0644); err != nil {
			return nil, nil, err
		}
		cmd.Env = append(os.Environ(),
			streamFileInEnv+"="+inFile,
			streamFileOutEnv+"="+outFile,
		)
		if err := cmd.Run(); err != nil {
			return nil, nil, commandError(err, &stderr)
		}
		data, err := ioutil.ReadFile(outFile)
		if err != nil {
			return nil, nil, fmt.Errorf("command produced no output file: %v", err)
		}
		outData = data
	} else {
		cmd.Stdin = &input
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err != nil {
			return nil, nil, commandError(err, &stderr)
		}
		outData = stdout.Bytes()
	}

	return readChunkMessage(bytes.NewReader(outData))
}

func commandError(err error, stderr *bytes.Buffer) error {
	if stderr.Len() > 0 {
		return fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return err
}

// writeChunkMessage encodes a chunk for the stream protocol: the shape
// as 4 little-endian int32, the length-prefixed UTF-8 band names, the
// count-prefixed float64 labels of the t, y and x dimensions, then the
// nb*nt*ny*nx float64 buffer.
func writeChunkMessage(w io.Writer, chunk *ChunkData, bandNames []string, dims [3][]float64) error {
	shape := [4]int32{int32(chunk.NB), int32(chunk.NT), int32(chunk.NY), int32(chunk.NX)}
	if err := binary.Write(w, binary.LittleEndian, shape[:]); err != nil {
		return err
	}
	for _, name := range bandNames {
		raw := []byte(name)
		if err := binary.Write(w, binary.LittleEndian, int32(len(raw))); err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	for _, labels := range dims {
		if err := binary.Write(w, binary.LittleEndian, int32(len(labels))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, labels); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, chunk.Buf)
}

// readChunkMessage decodes the same layout written by
// writeChunkMessage.
func readChunkMessage(r io.Reader) (*ChunkData, []string, error) {
	var shape [4]int32
	if err := binary.Read(r, binary.LittleEndian, shape[:]); err != nil {
		return nil, nil, fmt.Errorf("malformed stream response: %v", err)
	}
	nb, nt, ny, nx := int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3])
	if nb < 1 || nt < 0 || ny < 0 || nx < 0 {
		return nil, nil, fmt.Errorf("malformed stream response: shape (%d,%d,%d,%d)", nb, nt, ny, nx)
	}

	names := make([]string, nb)
	for i := range names {
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("malformed stream response: %v", err)
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, nil, fmt.Errorf("malformed stream response: %v", err)
		}
		names[i] = string(raw)
	}
	for d := 0; d < 3; d++ {
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("malformed stream response: %v", err)
		}
		labels := make([]float64, n)
		if err := binary.Read(r, binary.LittleEndian, labels); err != nil {
			return nil, nil, fmt.Errorf("malformed stream response: %v", err)
		}
	}

	out := &ChunkData{NB: nb, NT: nt, NY: ny, NX: nx}
	out.Buf = make([]float64, nb*nt*ny*nx)
	if err := binary.Read(r, binary.LittleEndian, out.Buf); err != nil {
		return nil, nil, fmt.Errorf("malformed stream response: %v", err)
	}
	return out, names, nil
}

func (c *StreamCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type":      "stream",
		"command":        c.command,
		"file_streaming": c.fileStreaming,
		"in_cube":        in,
	}, nil
}
