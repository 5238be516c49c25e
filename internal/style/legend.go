package style

import (
	"math"
	"strconv"
)

// LegendItem is one legend entry.
type LegendItem struct {
	Label string `json:"label" doc:"Legend label"`
	Color string `json:"color" doc:"Legend color (CSS)"`
}

// LegendModel is what a legend renders: a title and ordered entries.
type LegendModel struct {
	Title string       `json:"title" doc:"Legend title"`
	Items []LegendItem `json:"items" doc:"Legend entries in stop order"`
}

// Legend turns color stops into a legend model. Numeric stops are printed
// with at most two decimals.
func Legend(stops ColorStops, title string) LegendModel {
	items := make([]LegendItem, 0, len(stops))
	for _, s := range stops {
		label := s.Value.String()
		if f, ok := s.Value.Float(); ok {
			label = strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
		}
		items = append(items, LegendItem{Label: label, Color: s.Color})
	}
	return LegendModel{Title: title, Items: items}
}
