package graph

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("node not found")
	ErrNoAttr   = errors.New("attribute not found")
)

// Node is a single host scene node: a kind tag plus a bag of attributes.
// Attribute values are raw bytes; use AttrString, AttrInt and AttrBool to
// read them with a type.
type Node struct {
	ID         string
	Kind       string
	Selected   bool
	Referenced bool              // Node comes from a referenced (read-only) scene
	Properties map[string][]byte // Attribute name -> value
}

// Filter restricts enumeration.
type Filter struct {
	SelectionOnly     bool
	IncludeReferenced bool
}

func (f Filter) admits(n *Node) bool {
	if f.SelectionOnly && !n.Selected {
		return false
	}
	if n.Referenced && !f.IncludeReferenced {
		return false
	}
	return true
}

// Graph is the host scene as seen by the texture engine.
// Implementations are free to back it with memory, SQLite or a live host session.
type Graph interface {
	// Enumerate lists the IDs of all nodes of the given kind admitted by f,
	// in the order the host created them.
	Enumerate(kind string, f Filter) ([]string, error)
	Kind(id string) (string, error)
	GetAttr(id, name string) ([]byte, error)
	SetAttr(id, name string, value []byte) error
	HasAttr(id, name string) (bool, error)
	// AttrIndices returns the populated indices of an indexed attribute array,
	// e.g. "explicitUvTiles" for attributes named "explicitUvTiles[3].explicitUvTileName".
	AttrIndices(id, array string) ([]int, error)
	CreateNode(kind string) (string, error)
	PluginLoaded(name string) bool
}

// Store is a Graph that can be populated from a scene description.
type Store interface {
	Graph
	AddNode(n *Node) error
	LoadPlugin(name string) error
	Plugins() []string
	Nodes() ([]*Node, error)
	Close() error
}

// -----------------------------------------------------------------------------
// In-memory scene
// -----------------------------------------------------------------------------

type MemoryStore struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	plugins map[string]bool

	// Roaring bitmap index: node kind -> set of internal node IDs.
	// Internal IDs are handed out monotonically, so iterating a bitmap
	// yields nodes in creation order.
	kindToNodes map[string]*roaring.Bitmap
	nodeIntID   map[string]uint32
	intToNodeID []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:       make(map[string]*Node),
		plugins:     make(map[string]bool),
		kindToNodes: make(map[string]*roaring.Bitmap),
		nodeIntID:   make(map[string]uint32),
	}
}

// AddNode adds or replaces a node. A missing ID is generated.
func (s *MemoryStore) AddNode(n *Node) error {
	if n.Kind == "" {
		return fmt.Errorf("add node %q: empty kind", n.ID)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Properties == nil {
		n.Properties = make(map[string][]byte)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.nodes[n.ID]; ok && old.Kind != n.Kind {
		s.unindexNode(old)
	}
	s.nodes[n.ID] = n
	s.indexNode(n)
	return nil
}

// indexNode assigns an internal bitmap ID and registers the node in kindToNodes.
// Must be called with s.mu held.
func (s *MemoryStore) indexNode(n *Node) {
	intID, ok := s.nodeIntID[n.ID]
	if !ok {
		intID = uint32(len(s.intToNodeID))
		s.nodeIntID[n.ID] = intID
		s.intToNodeID = append(s.intToNodeID, n.ID)
	}
	bm, exists := s.kindToNodes[n.Kind]
	if !exists {
		bm = roaring.New()
		s.kindToNodes[n.Kind] = bm
	}
	bm.Add(intID)
}

// Must be called with s.mu held.
func (s *MemoryStore) unindexNode(n *Node) {
	intID, ok := s.nodeIntID[n.ID]
	if !ok {
		return
	}
	if bm, exists := s.kindToNodes[n.Kind]; exists {
		bm.Remove(intID)
		if bm.IsEmpty() {
			delete(s.kindToNodes, n.Kind)
		}
	}
}

// DeleteNode removes a node. Deleting an unknown node is a no-op.
func (s *MemoryStore) DeleteNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	s.unindexNode(n)
	if intID, ok := s.nodeIntID[id]; ok {
		s.intToNodeID[intID] = ""
		delete(s.nodeIntID, id)
	}
	delete(s.nodes, id)
}

// GetNode returns the node itself (not a copy).
func (s *MemoryStore) GetNode(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// Enumerate implements Graph.
func (s *MemoryStore) Enumerate(kind string, f Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bm, ok := s.kindToNodes[kind]
	if !ok {
		return nil, nil
	}
	var ids []string
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) >= len(s.intToNodeID) {
			continue
		}
		n, exists := s.nodes[s.intToNodeID[intID]]
		if !exists || !f.admits(n) {
			continue
		}
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// Kind implements Graph.
func (s *MemoryStore) Kind(id string) (string, error) {
	n, err := s.GetNode(id)
	if err != nil {
		return "", err
	}
	return n.Kind, nil
}

// GetAttr implements Graph. The returned slice is a copy.
func (s *MemoryStore) GetAttr(id, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := n.Properties[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", id, name, ErrNoAttr)
	}
	return append([]byte(nil), v...), nil
}

// SetAttr implements Graph.
func (s *MemoryStore) SetAttr(id, name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Properties[name] = append([]byte(nil), value...)
	return nil
}

// HasAttr implements Graph.
func (s *MemoryStore) HasAttr(id, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return false, ErrNotFound
	}
	_, has := n.Properties[name]
	return has, nil
}

// AttrIndices implements Graph.
func (s *MemoryStore) AttrIndices(id, array string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	return indicesOf(names, array), nil
}

// CreateNode implements Graph.
func (s *MemoryStore) CreateNode(kind string) (string, error) {
	n := &Node{Kind: kind}
	if err := s.AddNode(n); err != nil {
		return "", err
	}
	return n.ID, nil
}

// LoadPlugin marks a host plugin as loaded.
func (s *MemoryStore) LoadPlugin(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins[name] = true
	return nil
}

// UnloadPlugin marks a host plugin as not loaded.
func (s *MemoryStore) UnloadPlugin(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plugins, name)
}

// PluginLoaded implements Graph.
func (s *MemoryStore) PluginLoaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plugins[name]
}

// Plugins returns the loaded plugins, sorted.
func (s *MemoryStore) Plugins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.plugins))
	for p := range s.plugins {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every node in creation order.
func (s *MemoryStore) Nodes() ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, id := range s.intToNodeID {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }

// -----------------------------------------------------------------------------
// Attribute helpers
// -----------------------------------------------------------------------------

// IndexedAttr names one element of an indexed attribute array:
// IndexedAttr("explicitUvTiles", 2, "explicitUvTileName") is
// "explicitUvTiles[2].explicitUvTileName".
func IndexedAttr(array string, index int, child string) string {
	name := array + "[" + strconv.Itoa(index) + "]"
	if child != "" {
		name += "." + child
	}
	return name
}

// indicesOf extracts the sorted, de-duplicated indices of array from
// a list of attribute names.
func indicesOf(names []string, array string) []int {
	prefix := array + "["
	seen := make(map[int]bool)
	var out []int
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		end := strings.IndexByte(rest, ']')
		if end <= 0 {
			continue
		}
		idx, err := strconv.Atoi(rest[:end])
		if err != nil || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// AttrString reads an attribute as a string.
func AttrString(g Graph, id, name string) (string, error) {
	v, err := g.GetAttr(id, name)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// AttrInt reads an attribute as a decimal integer. An empty value reads as 0.
func AttrInt(g Graph, id, name string) (int, error) {
	v, err := g.GetAttr(id, name)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: not an integer: %w", id, name, err)
	}
	return n, nil
}

// AttrBool reads an attribute as a boolean. A missing attribute reads as false.
func AttrBool(g Graph, id, name string) (bool, error) {
	v, err := g.GetAttr(id, name)
	if errors.Is(err, ErrNoAttr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s := strings.TrimSpace(string(v))
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s.%s: not a boolean: %w", id, name, err)
	}
	return b, nil
}

// SetAttrString writes a string attribute.
func SetAttrString(g Graph, id, name, value string) error {
	return g.SetAttr(id, name, []byte(value))
}
