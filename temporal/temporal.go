// Package temporal aggregates collections over calendar months.
package temporal

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"cmrset-tools/scene"
	"github.com/sirupsen/logrus"
)

const IndexLayout = "200601"

// MonthlyMeans averages the collection over consecutive one-month windows
// starting at begin, for n = 0..count inclusive. Each mean carries the
// window start as its time and "YYYYMM" as its index. Windows without
// images are skipped.
func MonthlyMeans(col *scene.Collection, begin time.Time, count int, bands []string) (*scene.Collection, error) {
	logrus.Debug("Entered MonthlyMeans")
	if len(bands) > 0 {
		var err error
		if col, err = col.Select(bands...); err != nil {
			return nil, err
		}
	}

	var out []*scene.Image
	for n := 0; n <= count; n++ {
		start := begin.AddDate(0, n, 0)
		end := start.AddDate(0, 1, 0)
		mean, err := col.FilterDate(start, end).Mean()
		if errors.Is(err, scene.ErrEmptyCollection) {
			logrus.Warnf("No images between %s and %s, skipping month", start.Format(time.DateOnly), end.Format(time.DateOnly))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("month %s: %w", start.Format(IndexLayout), err)
		}
		mean.TimeStart = start
		mean.Index = start.Format(IndexLayout)
		out = append(out, mean)
	}
	logrus.Debug("Exited MonthlyMeans")
	return scene.NewCollection(out...), nil
}

// CalendarMonthMeans averages, for every month label in months (1-12), the
// images falling in that calendar month of any year. Each mean carries a
// "month" property and the time of its earliest contributing image. Months
// without images are skipped.
func CalendarMonthMeans(col *scene.Collection, months []int) (*scene.Collection, error) {
	logrus.Debug("Entered CalendarMonthMeans")
	var out []*scene.Image
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("calendar month %d out of range", m)
		}
		bucket := col.FilterCalendarRange(m, m).SortByTime()
		mean, err := bucket.Mean()
		if errors.Is(err, scene.ErrEmptyCollection) {
			logrus.Warnf("No images in calendar month %d, skipping", m)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("calendar month %d: %w", m, err)
		}
		first, _ := bucket.First()
		mean.TimeStart = first.TimeStart
		mean.Index = time.Month(m).String()
		mean.Set("month", strconv.Itoa(m))
		out = append(out, mean)
	}
	logrus.Debug("Exited CalendarMonthMeans")
	return scene.NewCollection(out...), nil
}
