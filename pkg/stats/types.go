package stats

import "strconv"

// InvalidTypeID marks a Type whose ID has not been assigned yet.
// Registering such a type auto-assigns an ID.
const InvalidTypeID = -1

// Type describes one statistics channel (eg "MV" or "PredMode"), and how it is rendered.
type Type struct {
	TypeID      int    `json:"id"`
	TypeName    string `json:"name"`
	Description string `json:"description,omitempty"`

	// Render settings. These are the parts that get saved into a playlist.
	Render           bool `json:"render"`           // Draw this type at all. Types that are not rendered are not loaded.
	RenderValueData  bool `json:"renderValueData"`  // Draw value blocks
	RenderVectorData bool `json:"renderVectorData"` // Draw vectors (and report polygon vectors when hit-testing)
	RenderGrid       bool `json:"renderGrid"`       // Draw block outlines, and take part in hit-testing
	AlphaFactor      int  `json:"alphaFactor"`      // 0..100

	// Properties of the source data
	ScaleValueToBlockSize bool           `json:"scaleValueToBlockSize"` // Values are totals over the block, and must be divided by the block area
	VectorScale           float32        `json:"vectorScale"`           // Vectors are stored multiplied by this factor (eg 4 for quarter-pel motion vectors)
	ValueMap              map[int]string `json:"valueMap,omitempty"`    // Optional names for values (eg 0 -> "Intra")

	// ZOrder controls drawing order. Higher values are drawn later (on top),
	// and come first when hit-testing. The Registry assigns the registration
	// position unless SetZOrder is called.
	ZOrder int `json:"-"`
}

// NewType returns a type with the same defaults that a freshly parsed source would have
func NewType(typeID int, name string) Type {
	return Type{
		TypeID:           typeID,
		TypeName:         name,
		RenderValueData:  true,
		RenderVectorData: true,
		RenderGrid:       true,
		AlphaFactor:      50,
		VectorScale:      1,
	}
}

// ValueText formats a block value for display.
// If the value has an entry in ValueMap, that is returned.
// Otherwise, if the value must be scaled to the block size, the result is empty,
// because the block size is needed to produce the text.
func (t *Type) ValueText(value int) string {
	if txt, ok := t.ValueMap[value]; ok {
		return txt
	}
	if t.ScaleValueToBlockSize {
		return ""
	}
	return strconv.Itoa(value)
}

func (t *Type) vectorScale() float32 {
	if t.VectorScale <= 0 {
		return 1
	}
	return t.VectorScale
}

// Format a float the way we show them to users: %g with 6 significant digits
func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 6, 32)
}

func cloneType(t Type) Type {
	if t.ValueMap != nil {
		m := make(map[int]string, len(t.ValueMap))
		for k, v := range t.ValueMap {
			m[k] = v
		}
		t.ValueMap = m
	}
	return t
}
