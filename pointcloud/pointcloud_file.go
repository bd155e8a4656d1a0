package pointcloud

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/rimage"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// Format is a point cloud file format supported for export.
type Format string

// The export formats.
const (
	FormatPLY Format = "ply"
	FormatPCD Format = "pcd"
	FormatLAS Format = "las"
)

// ParseFormat parses a format name, case insensitively. An empty name means PLY.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case "":
		return FormatPLY, nil
	case FormatPLY, FormatPCD, FormatLAS:
		return f, nil
	default:
		return "", errors.Errorf("unknown point cloud format %q", s)
	}
}

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(fn string) (Format, error) {
	ext := filepath.Ext(fn)
	if ext == "" {
		return "", errors.Errorf("no extension on %q to infer a point cloud format from", fn)
	}
	return ParseFormat(ext)
}

// WriteFile writes vertices to fn in the given format.
func WriteFile(ctx context.Context, vertices []Vertex, fn string, format Format) (err error) {
	if format == FormatLAS {
		return WriteToLASFile(ctx, vertices, fn)
	}
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	switch format {
	case FormatPLY:
		return ToPLY(ctx, vertices, f)
	case FormatPCD:
		return ToPCD(ctx, vertices, f, PCDBinary)
	default:
		return errors.Errorf("unknown point cloud format %q", format)
	}
}

// WriteToLASFile writes the given vertices to a LAS file with RGB point records.
func WriteToLASFile(ctx context.Context, vertices []Vertex, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: 2,
	}); err != nil {
		return
	}

	for i, v := range vertices {
		if i%plyCancelCheckInterval == 0 {
			if err = ctx.Err(); err != nil {
				return
			}
		}
		pr0 := &lidario.PointRecord0{
			X: v.Position.X,
			Y: v.Position.Y,
			Z: v.Position.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		r, g, b := v.Color.RGB255()
		lp := &lidario.PointRecord2{
			PointRecord0: pr0,
			RGB: &lidario.RgbData{
				Red:   uint16(r) * 256,
				Green: uint16(g) * 256,
				Blue:  uint16(b) * 256,
			},
		}
		if err = lf.AddLasPoint(lp); err != nil {
			return
		}
	}
	return
}

// ReadLASFile reads back the vertices of a LAS file. Points without RGB data are white.
func ReadLASFile(fn string) (_ []Vertex, err error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	vertices := make([]Vertex, 0, lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		c := rimage.NewColor(1, 1, 1)
		if lf.Header.PointFormatID == 2 && p.RgbData() != nil {
			c = rimage.NewColor(
				float32(p.RgbData().Red/256)/255,
				float32(p.RgbData().Green/256)/255,
				float32(p.RgbData().Blue/256)/255,
			)
		}
		vertices = append(vertices, NewVertex(data.X, data.Y, data.Z, c))
	}
	return vertices, nil
}

func colorToPCDInt(v Vertex) uint32 {
	r, g, b := v.Color.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// ToPCD writes vertices as an unorganized PCD cloud with packed rgb. Positions are written in
// meters.
func ToPCD(ctx context.Context, vertices []Vertex, out io.Writer, outputType PCDType) error {
	var data string
	switch outputType {
	case PCDBinary:
		data = "binary"
	case PCDAscii:
		data = "ascii"
	default:
		return errors.Errorf("unsupported PCD type %d", outputType)
	}

	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS x y z rgb\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F I\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		len(vertices), len(vertices), data); err != nil {
		return err
	}

	buf := make([]byte, 16)
	for i, v := range vertices {
		if i%plyCancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		c := colorToPCDInt(v)
		var err error
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.Position.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(v.Position.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(v.Position.Z)))
			binary.LittleEndian.PutUint32(buf[12:], c)
			_, err = w.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(w, "%f %f %f %d\n", v.Position.X, v.Position.Y, v.Position.Z, c)
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}
