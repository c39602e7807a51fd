package temporal

import (
	"math"
	"testing"
	"time"

	"cmrset-tools/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func img(t *testing.T, when time.Time, evi, gvmi float64) *scene.Image {
	t.Helper()
	i := scene.NewImage(1, 1)
	i.TimeStart = when
	i.Index = when.Format("20060102")
	require.NoError(t, i.AddBand("EVI", []float64{evi}))
	require.NoError(t, i.AddBand("GVMI", []float64{gvmi}))
	return i
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalendarMonthMeansGroupsAcrossYears(t *testing.T) {
	col := scene.NewCollection(
		img(t, day(2014, 1, 5), 0.2, 0.5),
		img(t, day(2015, 1, 20), 0.4, 0.5),
		img(t, day(2016, 1, 11), math.NaN(), 0.5),
		img(t, day(2014, 2, 5), 0.8, 0.1),
		img(t, day(2014, 12, 31), 0.6, 0.3),
		img(t, day(2015, 6, 1), 0.9, 0.9),
	)
	out, err := CalendarMonthMeans(col, []int{12, 1, 2, 7})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len(), "July has no images")

	byMonth := map[string]*scene.Image{}
	for _, i := range out.Images() {
		m, ok := i.Get("month")
		require.True(t, ok)
		byMonth[m] = i
	}

	jan, _ := byMonth["1"].Band("EVI")
	assert.InDelta(t, 0.3, jan[0], 1e-12, "mean of 2014 and 2015 Januaries, masked 2016 skipped")
	assert.Equal(t, day(2014, 1, 5), byMonth["1"].TimeStart)

	dec, _ := byMonth["12"].Band("EVI")
	assert.InDelta(t, 0.6, dec[0], 1e-12)

	feb, _ := byMonth["2"].Band("GVMI")
	assert.InDelta(t, 0.1, feb[0], 1e-12, "June must not leak into any bucket")

	_, err = CalendarMonthMeans(col, []int{13})
	assert.Error(t, err)
}

func TestMonthlyMeansWindows(t *testing.T) {
	col := scene.NewCollection(
		img(t, day(2014, 1, 3), 0.2, 0.5),
		img(t, day(2014, 1, 19), 0.4, 0.7),
		img(t, day(2014, 2, 1), 0.6, 0.1),
		img(t, day(2014, 4, 30), 0.1, 0.1),
	)
	out, err := MonthlyMeans(col, day(2014, 1, 1), 3, []string{"EVI"})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len(), "March is empty")

	images := out.Images()
	assert.Equal(t, "201401", images[0].Index)
	assert.Equal(t, day(2014, 1, 1), images[0].TimeStart)
	assert.Equal(t, []string{"EVI"}, images[0].BandNames())
	evi, _ := images[0].Band("EVI")
	assert.InDelta(t, 0.3, evi[0], 1e-12)

	assert.Equal(t, "201402", images[1].Index)
	assert.Equal(t, "201404", images[2].Index)
}
