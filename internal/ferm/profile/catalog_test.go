package profile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(DefaultSynthesisConfig())
	require.NoError(t, err)
	return c
}

func TestCatalogSeedDefaults(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	require.NoError(t, c.SeedDefaults())

	assert.Equal(t, 3, c.Len())
	assert.NotNil(t, c.Get("default_strain", "default_style"))
	assert.NotNil(t, c.Get("ale_strain", "ipa"))
	assert.NotNil(t, c.Get("lager_strain", "pilsner"))
	assert.Nil(t, c.Get("lager_strain", "ipa"))
}

func TestGetOrCreateReturnsSameProfileForSameKey(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)

	a, err := c.GetOrCreate("saison_strain", "farmhouse")
	require.NoError(t, err)
	b, err := c.GetOrCreate("saison_strain", "farmhouse")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCreateConcurrentSingleSynthesis(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)

	const goroutines = 32
	results := make([]*GoldenProfile, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			p, err := c.GetOrCreate("ale_strain", "ipa")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	// Every caller must observe the same synthesized instance.
	require.NotNil(t, results[0])
	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCreateConcurrentDistinctKeys(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)

	keys := []Key{
		{Strain: "a", Style: "x"},
		{Strain: "a", Style: "y"},
		{Strain: "b", Style: "x"},
		{Strain: "b", Style: "y"},
	}
	var wg sync.WaitGroup
	for _, k := range keys {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(k Key) {
				defer wg.Done()
				_, err := c.GetOrCreate(k.Strain, k.Style)
				assert.NoError(t, err)
			}(k)
		}
	}
	wg.Wait()

	assert.Equal(t, len(keys), c.Len())
	assert.Equal(t, keys, c.Keys())
}

func TestPutRejectsInvalidProfile(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	err := c.Put(&GoldenProfile{ProfileKey: Key{Strain: "s", Style: "t"}})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestPutReplacesExistingKey(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)

	original, err := c.GetOrCreate("ale_strain", "ipa")
	require.NoError(t, err)

	revised, err := Synthesize(Key{Strain: "ale_strain", Style: "ipa"}, DefaultSynthesisConfig())
	require.NoError(t, err)
	revised.Segments[0].Shape.End = 0.07
	require.NoError(t, c.Put(revised))

	got := c.Get("ale_strain", "ipa")
	assert.Same(t, revised, got)
	assert.NotSame(t, original, got)
	// The replaced profile value is untouched.
	assert.InDelta(t, 0.05, original.Segments[0].Shape.End, 1e-12)
}
