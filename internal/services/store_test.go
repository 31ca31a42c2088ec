package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStore_EvictsOldest(t *testing.T) {
	store := NewReportStore(2)

	assert.Empty(t, store.Put(&AnalysisReport{ID: "a"}))
	assert.Empty(t, store.Put(&AnalysisReport{ID: "b"}))
	assert.Equal(t, "a", store.Put(&AnalysisReport{ID: "c"}))

	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, store.Len())

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestReportStore_ReplaceKeepsPosition(t *testing.T) {
	store := NewReportStore(2)
	store.Put(&AnalysisReport{ID: "a", Source: "old"})
	store.Put(&AnalysisReport{ID: "b"})

	assert.Empty(t, store.Put(&AnalysisReport{ID: "a", Source: "new"}))

	r, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", r.Source)
	assert.Equal(t, 2, store.Len())
}

func TestReportStore_MinimumCapacity(t *testing.T) {
	store := NewReportStore(0)
	store.Put(&AnalysisReport{ID: "a"})
	store.Put(&AnalysisReport{ID: "b"})

	assert.Equal(t, 1, store.Len())
}

func TestReportStore_Concurrent(t *testing.T) {
	store := NewReportStore(10)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			store.Put(&AnalysisReport{ID: id})
			store.Get(id)
			store.List()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, store.Len())
}
