package eligibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/infra/store/memory"
	"github.com/kilianp07/pailas/internal/fixture"
)

func newResolver(t *testing.T, ds store.Dataset) *Resolver {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Import(context.Background(), ds))
	return NewResolver(s, nil)
}

func ids(vs []EligibleVessel) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.VesselID
	}
	return out
}

func TestResolveStrictThreshold(t *testing.T) {
	cases := []struct {
		name    string
		minBase float64
		want    int
	}{
		{"equal to lot", 500, 0},
		{"one below lot", 499, 1},
		{"above lot", 600, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds := fixture.With(
				[]model.CompatibilityEntry{fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, tc.minBase, 500)},
				fixture.Order(1, fixture.ProductWhite, 500),
			)
			got, err := newResolver(t, ds).Resolve(context.Background(), 1)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestResolveDedupesByLargestCapacity(t *testing.T) {
	ds := fixture.With([]model.CompatibilityEntry{
		fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 100),
		fixture.Entry(2, "P1", "DSP-2", fixture.ColorWhite, 10, 150),
	}, fixture.Order(1, fixture.ProductWhite, 500))

	got, err := newResolver(t, ds).Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P1", got[0].VesselID)
	assert.Equal(t, 150.0, got[0].PlannableCapacity)
	assert.Equal(t, 1, got[0].Number)
}

func TestResolveOrdersByCapacityDescending(t *testing.T) {
	ds := fixture.With([]model.CompatibilityEntry{
		fixture.Entry(1, "P5", "DSP-1", fixture.ColorWhite, 10, 80),
		fixture.Entry(2, "P3", "DSP-1", fixture.ColorWhite, 10, 200),
		fixture.Entry(3, "P4", "DSP-2", fixture.ColorWhite, 10, 120),
	}, fixture.Order(1, fixture.ProductWhite, 500))

	got, err := newResolver(t, ds).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"P3", "P4", "P5"}, ids(got))
	assert.Equal(t, []float64{200, 120, 80}, []float64{got[0].PlannableCapacity, got[1].PlannableCapacity, got[2].PlannableCapacity})
}

func TestResolveTiesBreakByVesselID(t *testing.T) {
	ds := fixture.With([]model.CompatibilityEntry{
		fixture.Entry(1, "P2", "DSP-1", fixture.ColorWhite, 10, 100),
		fixture.Entry(2, "P1", "DSP-1", fixture.ColorWhite, 10, 100),
	}, fixture.Order(1, fixture.ProductWhite, 500))

	got, err := newResolver(t, ds).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, ids(got))
}

func TestResolveFilters(t *testing.T) {
	noFlag := fixture.Entry(2, "P2", "DSP-1", fixture.ColorWhite, 10, 300)
	noFlag.DiameterFlag = model.Ptr("no")
	spanish := fixture.Entry(3, "P3", "DSP-1", fixture.ColorWhite, 10, 200)
	spanish.DiameterFlag = model.Ptr("SI")
	noThreshold := fixture.Entry(4, "P4", "DSP-1", fixture.ColorWhite, 10, 120)
	noThreshold.MinDispersionBase = nil
	ds := fixture.With([]model.CompatibilityEntry{
		fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 500),
		noFlag,
		spanish,
		noThreshold,
		fixture.Entry(5, "P5", "DSP-1", fixture.ColorBlue, 10, 80),
	}, fixture.Order(1, fixture.ProductWhite, 500))

	got, err := newResolver(t, ds).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P3"}, ids(got))
}

func TestResolveEmptyCases(t *testing.T) {
	entries := []model.CompatibilityEntry{fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 500)}
	ds := fixture.With(entries,
		fixture.Order(1, fixture.ProductNoColor, 500),
		fixture.Order(2, fixture.ProductNoDetail, 500),
		fixture.Order(3, fixture.ProductWhite, -1),
	)
	r := newResolver(t, ds)
	for _, id := range []int64{1, 2, 3} {
		got, err := r.Resolve(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got, "order %d", id)
	}
}

func TestResolveUsesFirstDetail(t *testing.T) {
	ds := fixture.With([]model.CompatibilityEntry{
		fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 500),
		fixture.Entry(2, "P2", "DSP-1", fixture.ColorBlue, 10, 300),
	}, fixture.Order(1, fixture.ProductBlue, 500))

	got, err := newResolver(t, ds).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, ids(got))
}

func TestResolveOrderNotFound(t *testing.T) {
	_, err := newResolver(t, fixture.Base()).Resolve(context.Background(), 42)
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound got %v", err)
	}
}
