package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Topic is one discussion topic. Topics are stored in an arena
// (TopicAnalysisResult.Topics); Subtopics holds indices into that arena and
// ParentTopic holds the parent's name. Both are derived by AssembleHierarchy.
type Topic struct {
	Name            string   `json:"name"`
	StartTime       float64  `json:"start_time"`
	EndTime         float64  `json:"end_time"`
	ImportanceScore *float64 `json:"importance_score,omitempty"`
	TopicID         *int64   `json:"topic_id,omitempty"`
	Subtopics       []int    `json:"subtopics,omitempty"`
	ParentTopic     string   `json:"parent_topic,omitempty"`
}

// Importance returns the importance score, or def when the analyzer did not
// supply one.
func (t Topic) Importance(def float64) float64 {
	if t.ImportanceScore == nil {
		return def
	}
	return *t.ImportanceScore
}

// HierarchyEntry is one parent -> children edge list.
type HierarchyEntry struct {
	Parent   string
	Children []string
}

// Hierarchy is a parent -> children mapping that keeps the order in which
// parents were emitted. It encodes as a plain JSON object.
type Hierarchy []HierarchyEntry

// Children returns the children listed for parent.
func (h Hierarchy) Children(parent string) ([]string, bool) {
	for _, e := range h {
		if e.Parent == parent {
			return e.Children, true
		}
	}
	return nil, false
}

// Map flattens the hierarchy into a regular map.
func (h Hierarchy) Map() map[string][]string {
	m := make(map[string][]string, len(h))
	for _, e := range h {
		m[e.Parent] = e.Children
	}
	return m
}

func (h Hierarchy) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Parent)
		if err != nil {
			return nil, err
		}
		children := e.Children
		if children == nil {
			children = []string{}
		}
		val, err := json.Marshal(children)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object while preserving key order. A repeated
// key replaces the children of its first occurrence.
func (h *Hierarchy) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*h = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("hierarchy: expected object, got %v", tok)
	}

	out := Hierarchy{}
	pos := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("hierarchy: expected string key, got %v", tok)
		}
		var children []string
		if err := dec.Decode(&children); err != nil {
			return fmt.Errorf("hierarchy: children of %q: %w", key, err)
		}
		if i, seen := pos[key]; seen {
			out[i].Children = children
			continue
		}
		pos[key] = len(out)
		out = append(out, HierarchyEntry{Parent: key, Children: children})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*h = out
	return nil
}

// TopicAnalysisResult holds the topic arena and the authoritative hierarchy.
type TopicAnalysisResult struct {
	Topics    []Topic   `json:"topics"`
	Hierarchy Hierarchy `json:"hierarchy"`
	Timestamp time.Time `json:"timestamp"`
}

// AssembleHierarchy recomputes Subtopics and ParentTopic on every topic from
// Hierarchy in a single forward pass. Names missing from the arena are
// skipped. Cycles are not detected; indices never recurse so they are harmless.
func (r *TopicAnalysisResult) AssembleHierarchy() {
	index := make(map[string]int, len(r.Topics))
	for i := range r.Topics {
		r.Topics[i].Subtopics = nil
		r.Topics[i].ParentTopic = ""
		index[r.Topics[i].Name] = i
	}

	for _, entry := range r.Hierarchy {
		p, ok := index[entry.Parent]
		if !ok {
			continue
		}
		children := make([]int, 0, len(entry.Children))
		for _, name := range entry.Children {
			c, ok := index[name]
			if !ok {
				continue
			}
			children = append(children, c)
			r.Topics[c].ParentTopic = entry.Parent
		}
		r.Topics[p].Subtopics = children
	}
}

// Lookup finds a topic by name.
func (r *TopicAnalysisResult) Lookup(name string) (*Topic, bool) {
	for i := len(r.Topics) - 1; i >= 0; i-- {
		if r.Topics[i].Name == name {
			return &r.Topics[i], true
		}
	}
	return nil, false
}

// SubtopicsOf resolves the subtopic indices of the topic at i.
func (r *TopicAnalysisResult) SubtopicsOf(i int) []Topic {
	if i < 0 || i >= len(r.Topics) {
		return nil
	}
	out := make([]Topic, 0, len(r.Topics[i].Subtopics))
	for _, c := range r.Topics[i].Subtopics {
		out = append(out, r.Topics[c])
	}
	return out
}

// Names returns topic names in arena order.
func (r *TopicAnalysisResult) Names() []string {
	names := make([]string, len(r.Topics))
	for i, t := range r.Topics {
		names[i] = t.Name
	}
	return names
}
