package core

import (
	"strconv"
	"time"
)

// OriginLabel marks the synthetic first point of an empty series.
const OriginLabel = "Start"

// Short month names as written in Indonesian dates.
var idShortMonths = [12]string{
	"Jan", "Feb", "Mar", "Apr", "Mei", "Jun",
	"Jul", "Agu", "Sep", "Okt", "Nov", "Des",
}

var idLongMonths = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// SeriesPoint is one step of the cumulative savings chart.
type SeriesPoint struct {
	Label  string    `json:"label"`
	Date   time.Time `json:"date,omitzero"`
	Amount Money     `json:"amount"`
}

// BuildSeries turns a ledger into running totals in insertion order.
// An empty ledger yields a single origin point at zero. The totals are not
// clamped, so they can dip below the saved amount shown on the goal.
func BuildSeries(txs []Transaction) []SeriesPoint {
	if len(txs) == 0 {
		return []SeriesPoint{{Label: OriginLabel}}
	}
	points := make([]SeriesPoint, 0, len(txs))
	var running int64
	for _, t := range txs {
		running += t.Amount.Cents
		points = append(points, SeriesPoint{
			Label:  ShortDateLabel(t.Date),
			Date:   t.Date,
			Amount: Money{Cents: running},
		})
	}
	return points
}

// ShortDateLabel formats t as day and short Indonesian month, e.g. "17 Agu".
func ShortDateLabel(t time.Time) string {
	return strconv.Itoa(t.Day()) + " " + idShortMonths[t.Month()-1]
}

// LongDateLabel formats t the way id-ID writes a full date, e.g. "17 Agustus 2026".
func LongDateLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.Itoa(t.Day()) + " " + idLongMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
}
