package pointcloud

import (
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/depthcloud/rimage"
)

func vec(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

func TestStoreAppendAndClear(t *testing.T) {
	s := NewStore()
	test.That(t, s.Size(), test.ShouldEqual, 0)
	test.That(t, s.MetaData().Empty(), test.ShouldBeTrue)

	red := rimage.NewColor(1, 0, 0)
	s.Append([]Vertex{NewVertex(1, 2, 3, red), NewVertex(-1, 0, 5, red)})
	test.That(t, s.Size(), test.ShouldEqual, 2)
	s.Append(nil)
	test.That(t, s.Size(), test.ShouldEqual, 2)
	s.Append([]Vertex{NewVertex(0, -4, 0, red)})
	test.That(t, s.Size(), test.ShouldEqual, 3)

	snap := s.Snapshot()
	test.That(t, snap[0].Position, test.ShouldResemble, vec(1, 2, 3))
	test.That(t, snap[2].Position, test.ShouldResemble, vec(0, -4, 0))

	meta := s.MetaData()
	test.That(t, meta.MinX, test.ShouldEqual, -1)
	test.That(t, meta.MaxX, test.ShouldEqual, 1)
	test.That(t, meta.MinY, test.ShouldEqual, -4)
	test.That(t, meta.MaxZ, test.ShouldEqual, 5)
	test.That(t, meta.Center(), test.ShouldResemble, vec(0, -1, 2.5))

	s.Clear()
	test.That(t, s.Size(), test.ShouldEqual, 0)
	test.That(t, s.MetaData().Empty(), test.ShouldBeTrue)
	test.That(t, s.RenderBuffer(), test.ShouldBeNil)
	// an earlier snapshot is unaffected
	test.That(t, snap, test.ShouldHaveLength, 3)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Append([]Vertex{NewVertex(1, 1, 1, rimage.NewColor(0, 0, 0))})
	snap := s.Snapshot()
	snap[0].Position.X = 100
	test.That(t, s.Snapshot()[0].Position.X, test.ShouldEqual, 1)
}

func TestStoreConcurrentAppend(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Append([]Vertex{NewVertex(float64(j), 0, 0, rimage.NewColor(1, 1, 1))})
				s.Size()
			}
		}()
	}
	wg.Wait()
	test.That(t, s.Size(), test.ShouldEqual, 800)
}

func TestMetaDataZeroValue(t *testing.T) {
	var meta MetaData
	test.That(t, meta.Empty(), test.ShouldBeTrue)
	meta.Merge(vec(2, 3, 4))
	test.That(t, meta.Empty(), test.ShouldBeFalse)
	test.That(t, meta.MinX, test.ShouldEqual, 2)
	test.That(t, meta.MaxZ, test.ShouldEqual, 4)
}
