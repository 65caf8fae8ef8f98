package cacher_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmht/pkg/cacher"
	"github.com/calvinalkan/shmht/pkg/shmht"
)

type session struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}

func newTable(t *testing.T) *shmht.Table {
	t.Helper()

	region, err := shmht.NewRegion(64)
	require.NoError(t, err)

	table, err := shmht.Attach(region, 64, false)
	require.NoError(t, err)

	return table
}

func Test_Cacher_Buffers_Writes_When_Set_Until_WriteBack(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	c := cacher.New[session](table, cacher.JSON[session]{})

	want := session{User: "ann", Roles: []string{"admin"}}
	require.NoError(t, c.Set("s1", want))

	got, err := c.Get("s1")
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("buffered Get mismatch (-want +got):\n%s", diff)
	}

	require.False(t, table.Has([]byte("s1")), "table must not see unflushed writes")

	require.NoError(t, c.WriteBack())

	raw, err := table.Get([]byte("s1"))
	require.NoError(t, err)
	require.JSONEq(t, `{"user":"ann","roles":["admin"]}`, string(raw))
}

func Test_Cacher_Decodes_Table_Values_When_Not_Buffered(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	require.NoError(t, table.Set([]byte("s2"), []byte(`{"user":"bob","roles":null}`)))

	c := cacher.New[session](table, cacher.JSON[session]{})

	got, err := c.Get("s2")
	require.NoError(t, err)

	if diff := cmp.Diff(session{User: "bob"}, got); diff != "" {
		t.Fatalf("Get mismatch (-want +got):\n%s", diff)
	}

	require.True(t, c.Has("s2"))
	require.False(t, c.Has("missing"))

	_, err = c.Get("missing")
	require.ErrorIs(t, err, shmht.ErrNotFound)
}

func Test_Cacher_Deletes_From_Buffer_And_Table_When_Delete_Called(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	c := cacher.New[[]byte](table, cacher.Raw{})

	require.NoError(t, c.Set("flushed", []byte("1")))
	require.NoError(t, c.WriteBack())
	require.NoError(t, c.Set("buffered", []byte("2")))

	require.NoError(t, c.Delete("flushed"))
	require.NoError(t, c.Delete("buffered"))

	require.False(t, table.Has([]byte("flushed")))
	require.False(t, c.Has("buffered"))

	err := c.Delete("never")
	require.ErrorIs(t, err, shmht.ErrNotFound)
}

func Test_Cacher_Writes_Back_Before_Listing_When_ToMap_Called(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	c := cacher.New[int](table, cacher.JSON[int]{})

	require.NoError(t, c.Update(map[string]int{"a": 1, "b": 2}))
	require.NoError(t, c.Set("c", 3))

	got, err := c.ToMap()
	require.NoError(t, err)

	if diff := cmp.Diff(map[string]int{"a": 1, "b": 2, "c": 3}, got); diff != "" {
		t.Fatalf("ToMap mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 3, table.Len())

	visited := 0

	require.NoError(t, c.ForEach(func(string, int) bool {
		visited++

		return false
	}))
	require.Equal(t, 1, visited, "ForEach must stop when fn returns false")
}

func Test_Cacher_Reports_Failed_Key_When_WriteBack_Overflows(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	c := cacher.New[[]byte](table, cacher.Raw{})

	require.NoError(t, c.Set("huge", make([]byte, shmht.MaxValueLen+1)))

	err := c.WriteBack()
	require.ErrorIs(t, err, shmht.ErrItemTooLarge)
	require.Contains(t, err.Error(), `"huge"`)
}

func Test_Cacher_Flushes_And_Rejects_Use_When_Closed(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	c := cacher.New[string](table, cacher.JSON[string]{})

	require.NoError(t, c.Set("k", "v"))
	require.NoError(t, c.Close())

	raw, err := table.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, `"v"`, string(raw))

	_, err = c.Get("k")
	require.True(t, errors.Is(err, cacher.ErrClosed))
	require.ErrorIs(t, c.Close(), cacher.ErrClosed)
}
