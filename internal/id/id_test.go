package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	s := UUID()
	parsed, err := uuid.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, s, UUID())
}

func TestULID_Format(t *testing.T) {
	s := ULID()
	assert.Len(t, s, 26)
	assert.True(t, IsValidULID(s))
	for _, c := range "ILOU" {
		assert.NotContains(t, s, string(c))
	}
}

func TestULID_SortableAndUnique(t *testing.T) {
	const n = 500
	ids := make([]string, n)
	for i := range ids {
		ids[i] = ULID()
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted)

	seen := make(map[string]bool, n)
	for _, s := range ids {
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
}

func TestULID_Concurrent(t *testing.T) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s := ULID()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestULIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := ULIDTime(ULID())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = ULIDTime("not-a-ulid")
	assert.Error(t, err)
}

func TestEncode_Timestamp(t *testing.T) {
	s := encode(0, 0)
	assert.Equal(t, "0000000000", s[:10])

	ms := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	ts, err := ULIDTime(encode(ms, 7))
	require.NoError(t, err)
	assert.Equal(t, ms, ts.UnixMilli())
}

func TestIsValidULID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"01ARZ3NDEKTSV4RRFFQ69G5FA", false},
		{"01ARZ3NDEKTSV4RRFFQ69G5FAVX", false},
		{"01ARZ3NDEKTSV4RRFFQ69G5FAI", false},
		{"01arz3ndektsv4rrffq69g5fav", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidULID(tt.in))
		})
	}
}
