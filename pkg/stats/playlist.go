package stats

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PlaylistKey is the key under which the render settings of all types are stored
const PlaylistKey = "statTypes"

var ErrPlaylistFormat = errors.New("Invalid statistics playlist document")

// The render settings of one type, as stored in a playlist.
// Fields are pointers so that a document with missing fields leaves the
// existing settings alone.
type playlistType struct {
	ID               int    `yaml:"id"`
	Name             string `yaml:"name"`
	Render           *bool  `yaml:"render,omitempty"`
	RenderValueData  *bool  `yaml:"renderValueData,omitempty"`
	RenderVectorData *bool  `yaml:"renderVectorData,omitempty"`
	RenderGrid       *bool  `yaml:"renderGrid,omitempty"`
	AlphaFactor      *int   `yaml:"alphaFactor,omitempty"`
	ZOrder           *int   `yaml:"zOrder,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func (t *Type) savePlaylist(list *yaml.Node) error {
	cfg := playlistType{
		ID:               t.TypeID,
		Name:             t.TypeName,
		Render:           ptr(t.Render),
		RenderValueData:  ptr(t.RenderValueData),
		RenderVectorData: ptr(t.RenderVectorData),
		RenderGrid:       ptr(t.RenderGrid),
		AlphaFactor:      ptr(t.AlphaFactor),
		ZOrder:           ptr(t.ZOrder),
	}
	node := &yaml.Node{}
	if err := node.Encode(&cfg); err != nil {
		return err
	}
	list.Content = append(list.Content, node)
	return nil
}

// loadPlaylist applies the settings in 'entries' that belong to this type.
// A type is identified by both its ID and its name.
func (t *Type) loadPlaylist(entries []playlistType) {
	for i := range entries {
		e := &entries[i]
		if e.ID != t.TypeID || e.Name != t.TypeName {
			continue
		}
		if e.Render != nil {
			t.Render = *e.Render
		}
		if e.RenderValueData != nil {
			t.RenderValueData = *e.RenderValueData
		}
		if e.RenderVectorData != nil {
			t.RenderVectorData = *e.RenderVectorData
		}
		if e.RenderGrid != nil {
			t.RenderGrid = *e.RenderGrid
		}
		if e.AlphaFactor != nil {
			t.AlphaFactor = min(100, max(0, *e.AlphaFactor))
		}
		if e.ZOrder != nil {
			t.ZOrder = *e.ZOrder
		}
	}
}

// SavePlaylist writes the render settings of every type into root, in registration order.
// root must be a mapping (or a document holding a mapping). An empty node is turned into a mapping.
// Any existing PlaylistKey entry in root is replaced. Other keys are left alone.
func (s *StatisticsData) SavePlaylist(root *yaml.Node) error {
	m, err := mappingNode(root, true)
	if err != nil {
		return err
	}
	list := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	types := s.Types.Types()
	for i := range types {
		if err := types[i].savePlaylist(list); err != nil {
			return fmt.Errorf("Failed to save statistics type %v: %w", types[i].TypeName, err)
		}
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == PlaylistKey {
			m.Content[i+1] = list
			return nil
		}
	}
	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: PlaylistKey}
	m.Content = append(m.Content, key, list)
	return nil
}

// LoadPlaylist reads back the render settings written by SavePlaylist.
// Types are neither created nor removed. A type that has no entry in the
// document keeps its current settings, and so does everything if the document
// has no PlaylistKey at all.
func (s *StatisticsData) LoadPlaylist(root *yaml.Node) error {
	m, err := mappingNode(root, false)
	if err != nil {
		return err
	}
	var list *yaml.Node
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == PlaylistKey {
			list = m.Content[i+1]
		}
	}
	if list == nil {
		return nil
	}
	if list.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: '%v' is not a list", ErrPlaylistFormat, PlaylistKey)
	}
	entries := []playlistType{}
	if err := list.Decode(&entries); err != nil {
		return fmt.Errorf("%w: %v", ErrPlaylistFormat, err)
	}
	s.Types.updateAll(func(t *Type) {
		t.loadPlaylist(entries)
	})
	return nil
}

// MarshalPlaylist returns a standalone YAML document with the render settings of every type
func (s *StatisticsData) MarshalPlaylist() ([]byte, error) {
	root := &yaml.Node{}
	if err := s.SavePlaylist(root); err != nil {
		return nil, err
	}
	return yaml.Marshal(root)
}

// UnmarshalPlaylist applies a document produced by MarshalPlaylist
func (s *StatisticsData) UnmarshalPlaylist(doc []byte) error {
	root := &yaml.Node{}
	if err := yaml.Unmarshal(doc, root); err != nil {
		return fmt.Errorf("%w: %v", ErrPlaylistFormat, err)
	}
	return s.LoadPlaylist(root)
}

// Find the mapping inside root. If create is true, an empty root becomes a mapping.
func mappingNode(root *yaml.Node, create bool) (*yaml.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil document", ErrPlaylistFormat)
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			if !create {
				return &yaml.Node{Kind: yaml.MappingNode}, nil
			}
			root.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
		}
		root = root.Content[0]
	}
	if root.Kind == 0 {
		if !create {
			return &yaml.Node{Kind: yaml.MappingNode}, nil
		}
		root.Kind = yaml.MappingNode
		root.Tag = "!!map"
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: root is not a mapping", ErrPlaylistFormat)
	}
	return root, nil
}
