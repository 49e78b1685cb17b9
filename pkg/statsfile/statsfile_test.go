package statsfile

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/statsview/pkg/geom"
	"github.com/cyclopcam/statsview/pkg/stats"
	"github.com/cyclopcam/statsview/pkg/statsload"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

const sampleDump = `{
  "frameSize": {"width": 64, "height": 32},
  "types": [
    {"id": 1, "name": "MV", "render": true, "vectorScale": 4},
    {"id": 2, "name": "Mode", "render": true, "valueMap": {"0": "Intra", "1": "Inter"}},
    {"id": 3, "name": "Partition", "renderGrid": false}
  ],
  "frames": [
    {"frame": 3, "type": 1, "vectors": [{"rect": {"x": 0, "y": 0, "width": 4, "height": 4}, "point": [{"x": 0, "y": 0}, {"x": 8, "y": 4}], "isLine": true}]},
    {"frame": 3, "type": 2, "values": [{"rect": {"x": 0, "y": 0, "width": 16, "height": 16}, "value": 1}],
     "polygonValues": [{"corners": [{"x": 16, "y": 0}, {"x": 32, "y": 0}, {"x": 16, "y": 16}], "value": 0}]}
  ]
}`

func TestReadAndQuery(t *testing.T) {
	file, err := Read(strings.NewReader(sampleDump))
	require.NoError(t, err)
	require.Equal(t, geom.Size{Width: 64, Height: 32}, file.FrameSize)
	require.Equal(t, 3, len(file.Types))
	require.Equal(t, 4, file.NumFrames())

	// Omitted settings take the defaults of stats.NewType
	require.Equal(t, 50, file.Types[1].AlphaFactor)
	require.Equal(t, float32(1), file.Types[1].VectorScale)
	require.False(t, file.Types[2].RenderGrid)

	s := stats.NewStatisticsData(logs.NewTestingLog(t))
	file.RegisterTypes(s)
	require.Equal(t, file.FrameSize, s.FrameSize())

	loader := statsload.NewLoader(logs.NewTestingLog(t), s, file, statsload.DefaultSettings())
	defer loader.Close()
	require.NoError(t, loader.LoadFrame(context.Background(), 3))

	expect := []stats.ValuePair{
		{Label: "Mode", Text: "Inter"},
		{Label: "MV[x]", Text: "2"},
		{Label: "MV[y]", Text: "1"},
	}
	if diff := cmp.Diff(expect, s.ValuesAt(geom.Point{X: 2, Y: 2})); diff != "" {
		t.Fatalf("ValuesAt mismatch (-want +got):\n%v", diff)
	}
	expect = []stats.ValuePair{
		{Label: "Mode", Text: "Intra"},
		{Label: "MV", Text: "-"},
	}
	if diff := cmp.Diff(expect, s.ValuesAt(geom.Point{X: 18, Y: 2})); diff != "" {
		t.Fatalf("ValuesAt mismatch (-want +got):\n%v", diff)
	}

	// Frame 0 has no entries, but the types exist, so it loads as empty
	require.NoError(t, loader.LoadFrame(context.Background(), 0))
	require.Equal(t, stats.LoadingNotNeeded, s.NeedsLoading(0))
	require.True(t, s.FrameTypeData(1).IsEmpty())
}

func TestUnknownType(t *testing.T) {
	file, err := Read(strings.NewReader(sampleDump))
	require.NoError(t, err)
	_, err = file.LoadStatistics(context.Background(), 3, 42)
	require.ErrorIs(t, err, ErrUnknownType)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = file.LoadStatistics(ctx, 3, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestInvalidFiles(t *testing.T) {
	for _, doc := range []string{
		`{`,
		`{"types": [{"name": "NoID"}]}`,
		`{"types": [{"id": 1, "name": "A"}, {"id": 1, "name": "B"}]}`,
		`{"types": [{"id": 1, "name": "A"}], "frames": [{"frame": 0, "type": 2}]}`,
		`{"types": [{"id": "one"}]}`,
	} {
		_, err := Read(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrInvalidFile, "doc %v", doc)
	}
	_, err := Open("does-not-exist.json")
	require.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	mv := stats.NewType(1, "MV")
	mv.Render = true
	file := &File{
		FrameSize: geom.Size{Width: 16, Height: 16},
		Types:     []stats.Type{mv},
	}
	d1 := stats.FrameTypeData{}
	d1.AddVector(geom.Rect{X: 0, Y: 0, Width: 8, Height: 8}, 3, -1)
	d1.AddAffineTF(geom.Rect{X: 8, Y: 0, Width: 8, Height: 8}, geom.Point{X: 1}, geom.Point{Y: 2}, geom.Point{X: 3, Y: 3})
	d1.AddPolygonVector(geom.Polygon{{X: 0, Y: 8}, {X: 8, Y: 8}, {X: 0, Y: 16}}, geom.Point{X: 5, Y: 5})
	file.Add(2, 1, d1)
	file.Add(0, 1, stats.FrameTypeData{})
	// Replaces the first entry for frame 2
	d2 := d1
	d2.ValueData = []stats.ValueItem{{Rect: geom.Rect{Width: 1, Height: 1}, Value: 9}}
	file.Add(2, 1, d2)

	buf := bytes.Buffer{}
	require.NoError(t, file.Write(&buf))

	back, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, len(back.Frames))
	require.Equal(t, 0, back.Frames[0].Frame)

	got, err := back.LoadStatistics(context.Background(), 2, 1)
	require.NoError(t, err)
	if diff := cmp.Diff(d2, *got, cmpopts.IgnoreUnexported(stats.FrameTypeData{})); diff != "" {
		t.Fatalf("Round trip mismatch (-want +got):\n%v", diff)
	}
}

func TestWriteKeepsFile(t *testing.T) {
	file := &File{Types: []stats.Type{stats.NewType(1, "QP")}}
	d5 := stats.FrameTypeData{}
	d5.AddValue(geom.Rect{Width: 8, Height: 8}, 50)
	d0 := stats.FrameTypeData{}
	d0.AddValue(geom.Rect{Width: 8, Height: 8}, 10)
	file.Add(5, 1, d5)
	file.Add(0, 1, d0)

	buf := bytes.Buffer{}
	require.NoError(t, file.Write(&buf))

	// Output is sorted, but the File keeps its own order and lookups
	require.Equal(t, 5, file.Frames[0].Frame)
	require.Equal(t, 0, file.Frames[1].Frame)
	got, err := file.LoadStatistics(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Equal(t, 50, got.ValueData[0].Value)
	got, err = file.LoadStatistics(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Equal(t, 10, got.ValueData[0].Value)

	back, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, back.Frames[0].Frame)
	require.Equal(t, 5, back.Frames[1].Frame)
}
