package collection_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/setulabs/setu/pkg/collection"
)

func TestMap(t *testing.T) {
	got := collection.Map([]int{1, 2, 3}, func(n int) int { return n * n })
	if want := []int{1, 4, 9}; !reflect.DeepEqual(got, want) {
		t.Errorf("Map = %v, want %v", got, want)
	}

	if got := collection.Map([]string(nil), strings.ToUpper); len(got) != 0 {
		t.Errorf("Map(nil) = %v, want empty", got)
	}
}

func TestFilter(t *testing.T) {
	even := collection.Filter([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 0 })
	if want := []int{2, 4}; !reflect.DeepEqual(even, want) {
		t.Errorf("Filter = %v, want %v", even, want)
	}

	none := collection.Filter([]int{1, 3}, func(n int) bool { return n > 10 })
	if none != nil {
		t.Errorf("Filter with no matches = %v, want nil", none)
	}
}

func TestFirstAndContains(t *testing.T) {
	words := []string{"alpha", "beta", "gamma"}

	got, ok := collection.First(words, func(s string) bool { return strings.HasPrefix(s, "b") })
	if !ok || got != "beta" {
		t.Errorf("First = (%q, %v), want (\"beta\", true)", got, ok)
	}

	_, ok = collection.First(words, func(s string) bool { return s == "delta" })
	if ok {
		t.Error("First found an element that is not in the slice")
	}

	if !collection.Contains(words, func(s string) bool { return s == "gamma" }) {
		t.Error("Contains = false, want true")
	}
}

func TestUnique(t *testing.T) {
	got := collection.Unique([]string{"a", "b", "a", "c", "b"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Unique = %v, want %v", got, want)
	}
}

func TestGroupBy(t *testing.T) {
	got := collection.GroupBy([]string{"GET /a", "POST /b", "GET /c"}, func(s string) string {
		return strings.Fields(s)[0]
	})

	if len(got["GET"]) != 2 || len(got["POST"]) != 1 {
		t.Errorf("GroupBy sizes = GET:%d POST:%d, want 2 and 1", len(got["GET"]), len(got["POST"]))
	}
	if got["GET"][0] != "GET /a" {
		t.Errorf("GroupBy lost input order: %v", got["GET"])
	}
}

func TestSortBy(t *testing.T) {
	s := []int{3, 1, 2}
	collection.SortBy(s, func(a, b int) bool { return a < b })
	if want := []int{1, 2, 3}; !reflect.DeepEqual(s, want) {
		t.Errorf("SortBy = %v, want %v", s, want)
	}
}
