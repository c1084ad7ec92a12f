package etc

import (
	"time"

	"github.com/nrednav/cuid2"
)

func NewFreshID() string {
	return cuid2.Generate()
}

// VisitStamp renders a timestamp the way visit records display it.
func VisitStamp(t time.Time) string {
	return t.Format("January 2, 2006 3:04 PM")
}
