package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadListLifecycle(t *testing.T) {
	list := NewThreadList(nil)

	first, err := list.New()
	require.NoError(t, err)
	second, err := list.New()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, DefaultThreadTitle, first.Title)

	all := list.All()
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest thread comes first")

	renamed, err := list.Rename(first.ID, "Pricing questions")
	require.NoError(t, err)
	assert.Equal(t, "Pricing questions", renamed.Title)

	_, err = list.Rename(first.ID, "   ")
	assert.Error(t, err)

	touched, err := list.Touch(second.ID, "how much is it", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, touched.MessageCount)

	require.NoError(t, list.Delete(first.ID))
	assert.ErrorIs(t, list.Delete(first.ID), ErrThreadNotFound)
	_, err = list.Get(first.ID)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.Len(t, list.All(), 1)
}

func TestThreadListSearch(t *testing.T) {
	list := NewThreadList([]Thread{
		{ID: "a", Title: "Course pricing", LastMessage: "hours per week"},
		{ID: "b", Title: "APIs", LastMessage: "find animal APIs"},
	})

	assert.Len(t, list.Search(""), 2)

	got := list.Search("ANIMAL")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	got = list.Search("pricing")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	assert.Empty(t, list.Search("nothing"))
}
