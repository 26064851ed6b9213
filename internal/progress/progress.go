// Package progress derives the read-only, UI-facing view of how far an order
// has advanced. It is a pure function of the current status: it never reads
// history, never mutates anything and is never consulted to decide whether a
// transition is legal.
package progress

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-order-core/internal/domain"
)

// MaxRank is the rank of a fully delivered order.
const MaxRank = 3

var ranks = map[domain.Status]int{
	domain.StatusPending:    0,
	domain.StatusProcessing: 1,
	domain.StatusPaid:       1,
	domain.StatusShipped:    2,
	domain.StatusDelivered:  3,
	// Canceled is a side branch, not forward progress.
	domain.StatusCanceled: 0,
}

// stepNames are the step-indicator labels; step i is reached at rank i.
var stepNames = [MaxRank + 1]string{"Placed", "Confirmed", "Shipped", "Delivered"}

// Step is one position of the step indicator.
type Step struct {
	Name    string `json:"name"`
	Reached bool   `json:"reached"`
	Current bool   `json:"current"`
}

// View is the projection of a status for display.
type View struct {
	Status   domain.Status `json:"status"`
	Rank     int           `json:"rank"`
	MaxRank  int           `json:"max_rank"`
	Percent  int           `json:"percent"`
	Label    string        `json:"label"`
	Terminal bool          `json:"terminal"`
	Canceled bool          `json:"canceled"`
	Steps    []Step        `json:"steps"`
}

// Rank maps a status to its ordinal position. It is total: unknown values
// rank 0.
func Rank(s domain.Status) int {
	return ranks[s]
}

// Project builds the display view for s.
func Project(s domain.Status) View {
	rank := Rank(s)
	canceled := s == domain.StatusCanceled

	steps := make([]Step, len(stepNames))
	for i, name := range stepNames {
		steps[i] = Step{
			Name:    name,
			Reached: i <= rank,
			Current: i == rank && !canceled,
		}
	}

	return View{
		Status:   s,
		Rank:     rank,
		MaxRank:  MaxRank,
		Percent:  rank * 100 / MaxRank,
		Label:    label(s),
		Terminal: s.Terminal(),
		Canceled: canceled,
		Steps:    steps,
	}
}

func label(s domain.Status) string {
	if s == "" {
		return "Unknown"
	}
	// cases.Caser is stateful; build one per call.
	return cases.Title(language.English).String(string(s))
}
