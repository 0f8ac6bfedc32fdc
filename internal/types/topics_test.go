package types

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAssembleHierarchy(t *testing.T) {
	result := &TopicAnalysisResult{
		Topics: []Topic{
			{Name: "Budget"},
			{Name: "Revenue"},
			{Name: "Costs"},
			{Name: "Hiring"},
		},
		Hierarchy: Hierarchy{
			{Parent: "Budget", Children: []string{"Costs", "Ghost", "Revenue"}},
			{Parent: "Unknown", Children: []string{"Hiring"}},
		},
	}

	result.AssembleHierarchy()

	budget, _ := result.Lookup("Budget")
	if got, want := budget.Subtopics, []int{2, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Budget.Subtopics = %v, want %v", got, want)
	}
	subs := result.SubtopicsOf(0)
	if len(subs) != 2 || subs[0].Name != "Costs" || subs[1].Name != "Revenue" {
		t.Errorf("SubtopicsOf(Budget) = %+v, want [Costs Revenue]", subs)
	}
	for _, name := range []string{"Costs", "Revenue"} {
		topic, _ := result.Lookup(name)
		if topic.ParentTopic != "Budget" {
			t.Errorf("%s.ParentTopic = %q, want %q", name, topic.ParentTopic, "Budget")
		}
	}
	hiring, _ := result.Lookup("Hiring")
	if hiring.ParentTopic != "" {
		t.Errorf("Hiring.ParentTopic = %q, want empty (parent unknown)", hiring.ParentTopic)
	}
}

func TestAssembleHierarchyRecomputes(t *testing.T) {
	result := &TopicAnalysisResult{
		Topics:    []Topic{{Name: "A", Subtopics: []int{1}}, {Name: "B", ParentTopic: "A"}},
		Hierarchy: Hierarchy{},
	}
	result.AssembleHierarchy()
	if result.Topics[0].Subtopics != nil || result.Topics[1].ParentTopic != "" {
		t.Errorf("stale derived fields survived: %+v", result.Topics)
	}
}

func TestAssembleHierarchyCycle(t *testing.T) {
	result := &TopicAnalysisResult{
		Topics: []Topic{{Name: "A"}, {Name: "B"}},
		Hierarchy: Hierarchy{
			{Parent: "A", Children: []string{"B"}},
			{Parent: "B", Children: []string{"A"}},
		},
	}
	result.AssembleHierarchy()
	if result.Topics[0].ParentTopic != "B" || result.Topics[1].ParentTopic != "A" {
		t.Errorf("cycle parents = %q/%q, want B/A", result.Topics[0].ParentTopic, result.Topics[1].ParentTopic)
	}
}

func TestHierarchyJSONKeepsOrder(t *testing.T) {
	var h Hierarchy
	if err := json.Unmarshal([]byte(`{"zeta":["a"],"alpha":[],"mid":["b","c"]}`), &h); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var parents []string
	for _, e := range h {
		parents = append(parents, e.Parent)
	}
	if want := []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(parents, want) {
		t.Fatalf("parents = %v, want %v", parents, want)
	}

	out, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(out), `{"zeta":["a"],"alpha":[],"mid":["b","c"]}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestHierarchyUnmarshalRejectsArray(t *testing.T) {
	var h Hierarchy
	if err := json.Unmarshal([]byte(`["a"]`), &h); err == nil {
		t.Fatal("expected error for array input")
	}
}
