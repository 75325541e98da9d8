package chunks

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore()

	store.ReplaceGeneration(map[string][]byte{
		"app-abc123.js": []byte("export default 1"),
	})

	content, ok := store.Get("app-abc123.js")
	require.True(t, ok)
	assert.Equal(t, []byte("export default 1"), content)

	_, ok = store.Get("missing-def456.js")
	assert.False(t, ok)
}

func TestStoreGenerationSwapDropsOldChunks(t *testing.T) {
	store := NewStore()

	store.ReplaceGeneration(map[string][]byte{
		"app-v1.js":    []byte("one"),
		"vendor-v1.js": []byte("vendor"),
	})
	store.ReplaceGeneration(map[string][]byte{
		"app-v2.js": []byte("two"),
	})

	// Old generation is gone wholesale.
	assert.False(t, store.Has("app-v1.js"))
	assert.False(t, store.Has("vendor-v1.js"))

	content, ok := store.Get("app-v2.js")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), content)
	assert.Equal(t, 1, store.Len())
}

func TestStoreReplaceGenerationCopiesInput(t *testing.T) {
	store := NewStore()

	input := map[string][]byte{"a-1.js": []byte("a")}
	store.ReplaceGeneration(input)

	// Mutating the caller's map must not affect the installed generation.
	delete(input, "a-1.js")
	input["b-2.js"] = []byte("b")

	assert.True(t, store.Has("a-1.js"))
	assert.False(t, store.Has("b-2.js"))
}

func TestStoreClear(t *testing.T) {
	store := NewStore()
	store.ReplaceGeneration(map[string][]byte{"a-1.js": []byte("a")})

	store.Clear()
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.Names())
}

func TestStoreNoMixedGenerationReads(t *testing.T) {
	store := NewStore()
	store.ReplaceGeneration(map[string][]byte{
		"app-0.js":    []byte("0"),
		"vendor-0.js": []byte("0"),
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writer installs generations where both chunks always carry the
	// same payload.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			payload := []byte(fmt.Sprint(i))
			store.ReplaceGeneration(map[string][]byte{
				fmt.Sprintf("app-%d.js", i):    payload,
				fmt.Sprintf("vendor-%d.js", i): payload,
			})
		}
		close(stop)
	}()

	// A single Names snapshot must only ever contain chunks of one
	// generation: the app and vendor chunk suffixes always agree.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				names := store.Names()
				if len(names) != 2 {
					t.Errorf("expected a complete generation, got %v", names)
					return
				}
				suffix := func(name string) string {
					return name[strings.Index(name, "-"):]
				}
				if suffix(names[0]) != suffix(names[1]) {
					t.Errorf("mixed generations observed: %v", names)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestIsChunkName(t *testing.T) {
	testCases := []struct {
		name     string
		expected bool
	}{
		{"vendor-abc123.js", true},
		{"react-vendor-9f2c.js", true},
		{"assets/app-1234.js", true},
		{"app.js", false},
		{"vendor-abc123.css", false},
		{"some-dir/plain.js", false},
		{"index.html", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsChunkName(tc.name))
		})
	}
}
