package timeline

import (
	"sort"
	"time"

	domain "github.com/example/roomchat/domain/chat"
)

// Merge combines a confirmed history page with the pending set into one
// display-ordered sequence, oldest first. Confirmed messages sort by
// server clock, placeholders by the local clock they were stamped with.
// The sort is stable so equal timestamps keep their relative order.
func Merge(confirmed []domain.MessageView, pending []Item) []Item {
	out := make([]Item, 0, len(confirmed)+len(pending))
	for _, m := range confirmed {
		out = append(out, Item{MessageView: m})
	}
	out = append(out, pending...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Row is one rendered line: a message or a date separator.
type Row struct {
	Separator bool
	Label     string // set when Separator
	Item      Item   // set otherwise
}

// Rows inserts a date separator before the first message of each day.
// now supplies the reference for the "Today"/"Yesterday" labels.
func Rows(merged []Item, now time.Time) []Row {
	var out []Row
	last := ""
	for _, item := range merged {
		label := dateLabel(item.CreatedAt, now)
		if label != last {
			out = append(out, Row{Separator: true, Label: label})
			last = label
		}
		out = append(out, Row{Item: item})
	}
	return out
}

func dateLabel(at, now time.Time) string {
	y, m, d := at.Date()
	ny, nm, nd := now.Date()
	if y == ny && m == nm && d == nd {
		return "Today"
	}
	yesterday := now.AddDate(0, 0, -1)
	yy, ym, yd := yesterday.Date()
	if y == yy && m == ym && d == yd {
		return "Yesterday"
	}
	return at.Format("2 January 2006")
}
