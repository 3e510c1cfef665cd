package flatskip_test

import (
	"bytes"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/metailurini/flatskip"
	"github.com/metailurini/flatskip/codec"
)

func ExampleBuildOrdered() {
	m, _ := flatskip.BuildOrdered(slices.All([]string{"zero", "one", "two", "three"}), codec.Int{}, codec.String{})
	pos, v, ok := m.Find(2)
	fmt.Println(pos, v, ok)
	fmt.Println(m.EntryPoints())
	// Output: 2 two true
	// [0 1 3]
}

func ExampleSkipMap_FindBy() {
	type user struct {
		ID   int
		Name string
	}
	users := []user{{1, "ada"}, {4, "bob"}, {9, "cy"}}
	var seq iter.Seq2[int, user] = func(yield func(int, user) bool) {
		for _, u := range users {
			if !yield(u.ID, u) {
				return
			}
		}
	}
	m, _ := flatskip.BuildOrdered(seq, codec.Int{}, codec.Codec[user](codec.JSON[user]{}))
	_, u, ok := m.FindBy(func(id int) int { return id - 4 })
	fmt.Println(u.Name, ok)
	// Output: bob true
}

func ExampleSkipMap_Iterator() {
	m, _ := flatskip.BuildOrdered(slices.All([]string{"a", "b", "c", "d", "e"}), codec.Int{}, codec.String{})
	it := m.Iterator()
	for ok := it.SeekGE(2); ok; ok = it.Next() {
		fmt.Printf("%d:%s ", it.Key(), it.Value())
	}
	fmt.Println()
	// Output: 2:c 3:d 4:e
}

func ExampleSkipMap_WriteTo() {
	m, _ := flatskip.BuildOrdered(slices.All([]string{"x", "y"}), codec.Int{}, codec.String{},
		flatskip.WithCompression(flatskip.CompressionLZ4))

	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf)

	loaded, _ := flatskip.Load[int, string](&buf, codec.Int{}, codec.String{}, func(a, b int) int { return a - b })
	_, v, _ := loaded.Find(1)
	fmt.Println(loaded.Len(), v)
	// Output: 2 y
}

func ExampleBuildOrderedList() {
	l, _ := flatskip.BuildOrderedList(slices.Values([]string{"A", "B", "C", "D", "E", "F"}), codec.String{})
	pos, ok := l.Find("D")
	fmt.Println(pos, ok, l.Contains("Z"))
	// Output: 3 true false
}

func ExampleBuilder() {
	b := flatskip.NewBuilder[string, int](codec.String{}, codec.Int{}, strings.Compare)
	b.Put("pear", 1)
	b.Put("apple", 2)
	b.Put("pear", 3)
	m, _ := b.Build()
	for k, v := range m.All() {
		fmt.Println(k, v)
	}
	// Output: apple 2
	// pear 3
}
