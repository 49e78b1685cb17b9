// Package statsfile reads and writes statistics dumps.
//
// A dump is a JSON document holding the statistics types of a sequence, and the
// items of each type for any number of frames. Tools use it as a stand-in for a
// decoder, so that the statistics cache can be driven without a bitstream parser.
package statsfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/cyclopcam/statsview/pkg/geom"
	"github.com/cyclopcam/statsview/pkg/stats"
)

var ErrUnknownType = errors.New("Unknown statistics type")
var ErrInvalidFile = errors.New("Invalid statistics file")

// FrameEntry is the data of one type for one frame
type FrameEntry struct {
	Frame  int `json:"frame"`
	TypeID int `json:"type"`
	stats.FrameTypeData
}

// File is a parsed statistics dump. It is safe for concurrent reads.
type File struct {
	FrameSize geom.Size    `json:"frameSize"`
	Types     []stats.Type `json:"types"`
	Frames    []FrameEntry `json:"frames"`

	byKey map[frameKey]*stats.FrameTypeData
}

type frameKey struct {
	frame  int
	typeID int
}

// Open reads a statistics dump from disk
func Open(filename string) (*File, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("Failed to read statistics file '%v': %w", filename, err)
	}
	return file, nil
}

// Read parses a statistics dump
func Read(r io.Reader) (*File, error) {
	// Types are decoded on top of stats.NewType, so that omitted render settings get their defaults
	raw := struct {
		FrameSize geom.Size         `json:"frameSize"`
		Types     []json.RawMessage `json:"types"`
		Frames    []FrameEntry      `json:"frames"`
	}{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	file := &File{
		FrameSize: raw.FrameSize,
		Frames:    raw.Frames,
	}
	for _, rt := range raw.Types {
		t := stats.NewType(stats.InvalidTypeID, "")
		if err := json.Unmarshal(rt, &t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		file.Types = append(file.Types, t)
	}
	ids := map[int]bool{}
	for _, t := range file.Types {
		if t.TypeID == stats.InvalidTypeID {
			return nil, fmt.Errorf("%w: type '%v' has no id", ErrInvalidFile, t.TypeName)
		}
		if ids[t.TypeID] {
			return nil, fmt.Errorf("%w: duplicate type id %v", ErrInvalidFile, t.TypeID)
		}
		ids[t.TypeID] = true
	}
	for _, e := range file.Frames {
		if !ids[e.TypeID] {
			return nil, fmt.Errorf("%w: frame %v refers to type %v", ErrInvalidFile, e.Frame, e.TypeID)
		}
	}
	file.index()
	return file, nil
}

// Write encodes the dump as JSON, with frames in (frame, type) order.
// The File itself is not modified.
func (f *File) Write(w io.Writer) error {
	out := *f
	out.Frames = slices.Clone(f.Frames)
	sort.SliceStable(out.Frames, func(i, j int) bool {
		if out.Frames[i].Frame != out.Frames[j].Frame {
			return out.Frames[i].Frame < out.Frames[j].Frame
		}
		return out.Frames[i].TypeID < out.Frames[j].TypeID
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

// Add stores the data of one type for one frame, replacing whatever was there
func (f *File) Add(frame, typeID int, data stats.FrameTypeData) {
	for i := range f.Frames {
		if f.Frames[i].Frame == frame && f.Frames[i].TypeID == typeID {
			f.Frames[i].FrameTypeData = data
			f.index()
			return
		}
	}
	f.Frames = append(f.Frames, FrameEntry{Frame: frame, TypeID: typeID, FrameTypeData: data})
	f.index()
}

func (f *File) index() {
	f.byKey = make(map[frameKey]*stats.FrameTypeData, len(f.Frames))
	for i := range f.Frames {
		e := &f.Frames[i]
		f.byKey[frameKey{e.Frame, e.TypeID}] = &e.FrameTypeData
	}
}

// NumFrames returns one more than the highest frame index in the file
func (f *File) NumFrames() int {
	n := 0
	for _, e := range f.Frames {
		n = max(n, e.Frame+1)
	}
	return n
}

// RegisterTypes adds the file's types and frame size to the statistics cache
func (f *File) RegisterTypes(s *stats.StatisticsData) {
	s.SetFrameSize(f.FrameSize)
	for _, t := range f.Types {
		s.AddStatType(t)
	}
}

// LoadStatistics implements statsload.Source.
// A frame that has no entry for a known type has no items of that type, so the result is empty.
func (f *File) LoadStatistics(ctx context.Context, frameIndex, typeID int) (*stats.FrameTypeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d := f.byKey[frameKey{frameIndex, typeID}]; d != nil {
		copied := *d
		return &copied, nil
	}
	for _, t := range f.Types {
		if t.TypeID == typeID {
			return &stats.FrameTypeData{}, nil
		}
	}
	return nil, fmt.Errorf("%w %v", ErrUnknownType, typeID)
}
