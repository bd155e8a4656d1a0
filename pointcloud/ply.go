package pointcloud

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math"
	"strconv"
)

// plyCancelCheckInterval is how many vertices are written between context checks.
const plyCancelCheckInterval = 4096

const plyHeaderTemplate = "ply\n" +
	"format ascii 1.0\n" +
	"element vertex %d\n" +
	"property float x\n" +
	"property float y\n" +
	"property float z\n" +
	"property uchar red\n" +
	"property uchar green\n" +
	"property uchar blue\n" +
	"end_header\n"

// appendPLYFloat appends v in its shortest single precision form, always with a decimal point.
// Non-finite values are written as nan, inf and -inf, which strtof based readers accept.
func appendPLYFloat(dst []byte, v float64) []byte {
	f := float64(float32(v))
	switch {
	case math.IsNaN(f):
		return append(dst, "nan"...)
	case math.IsInf(f, 1):
		return append(dst, "inf"...)
	case math.IsInf(f, -1):
		return append(dst, "-inf"...)
	}
	start := len(dst)
	dst = strconv.AppendFloat(dst, f, 'f', -1, 32)
	if bytes.IndexByte(dst[start:], '.') < 0 {
		dst = append(dst, '.', '0')
	}
	return dst
}

// ToPLY writes vertices as an ASCII PLY file with float positions and 8 bit colors. Output is
// streamed; a cancelled context stops the write and returns the context error.
func ToPLY(ctx context.Context, vertices []Vertex, out io.Writer) error {
	w := bufio.NewWriter(out)
	header := bytes.Replace([]byte(plyHeaderTemplate), []byte("%d"), []byte(strconv.Itoa(len(vertices))), 1)
	if _, err := w.Write(header); err != nil {
		return err
	}

	line := make([]byte, 0, 64)
	for i, v := range vertices {
		if i%plyCancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r, g, b := v.Color.RGB255()
		line = line[:0]
		line = appendPLYFloat(line, v.Position.X)
		line = append(line, ' ')
		line = appendPLYFloat(line, v.Position.Y)
		line = append(line, ' ')
		line = appendPLYFloat(line, v.Position.Z)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(r), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(g), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(b), 10)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return w.Flush()
}

// PLYString returns the PLY text for vertices. Use ToPLY for large clouds.
func PLYString(vertices []Vertex) string {
	var buf bytes.Buffer
	//nolint:errcheck
	ToPLY(context.Background(), vertices, &buf)
	return buf.String()
}
