package internal

import (
	"testing"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/stretchr/testify/assert"
)

type mv = attribute.Multivalue[int32]

func TestChangeBufferAssignDropsEarlierChanges(t *testing.T) {
	b := NewChangeBuffer[int32]()

	b.Add(4, Change[int32]{Kind: ChangeAppend, Values: []mv{{Value: 1}}})
	b.Add(2, Change[int32]{Kind: ChangeAppend, Values: []mv{{Value: 2}}})
	b.Add(4, Change[int32]{Kind: ChangeRemove, Remove: []int32{1}})
	assert.Equal(t, 3, b.Len())

	b.Add(4, Change[int32]{Kind: ChangeAssign, Values: []mv{{Value: 9}}})
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 2, b.NumDocs())
	assert.Equal(t, []attribute.DocId{2, 4}, b.Docs())
	assert.Len(t, b.Changes(4), 1)

	b.Reset()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Docs())
}

func TestFoldArray(t *testing.T) {
	current := []mv{{Value: 3, Weight: 1}, {Value: 5, Weight: 1}}

	got := Fold(current, []Change[int32]{
		{Kind: ChangeAppend, Values: []mv{{Value: 3, Weight: 8}, {Value: 7, Weight: 2}}},
		{Kind: ChangeRemove, Remove: []int32{5}},
	}, attribute.Array, 1)

	assert.Equal(t, []mv{{Value: 3, Weight: 1}, {Value: 3, Weight: 1}, {Value: 7, Weight: 1}}, got)
	// the committed list is untouched
	assert.Equal(t, []mv{{Value: 3, Weight: 1}, {Value: 5, Weight: 1}}, current)
}

func TestFoldWeightedSet(t *testing.T) {
	got := Fold(nil, []Change[int32]{
		{Kind: ChangeAssign, Values: []mv{{Value: 3, Weight: 1}, {Value: 5, Weight: 2}, {Value: 3, Weight: 9}}},
		{Kind: ChangeAppend, Values: []mv{{Value: 5, Weight: -1}, {Value: 1, Weight: 4}}},
	}, attribute.WeightedSet, 1)

	assert.Equal(t, []mv{{Value: 3, Weight: 9}, {Value: 5, Weight: -1}, {Value: 1, Weight: 4}}, got)
}

func TestFoldClear(t *testing.T) {
	got := Fold([]mv{{Value: 1, Weight: 1}}, []Change[int32]{
		{Kind: ChangeClear},
		{Kind: ChangeAppend, Values: []mv{{Value: 2, Weight: 1}}},
	}, attribute.Array, 1)
	assert.Equal(t, []mv{{Value: 2, Weight: 1}}, got)

	assert.Empty(t, Fold([]mv{{Value: 1, Weight: 1}}, []Change[int32]{{Kind: ChangeClear}}, attribute.Array, 1))
}

func TestFoldDefaultWeight(t *testing.T) {
	got := Fold(nil, []Change[int32]{
		{Kind: ChangeAssign, Values: []mv{{Value: 1, Weight: 5}}},
	}, attribute.Array, 3)
	assert.Equal(t, []mv{{Value: 1, Weight: 3}}, got)
}
