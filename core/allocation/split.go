package allocation

import "github.com/kilianp07/pailas/core/model"

// Outcome classifies how a lot fitted on its vessel.
type Outcome string

const (
	// Absorbed means the whole lot fits the vessel.
	Absorbed Outcome = "absorbed"
	// Fragmented means the vessel took its capacity and a remainder child
	// order carries the rest.
	Fragmented Outcome = "fragmented"
	// Unbounded means no capacity bound was known and the full lot was
	// assigned as is.
	Unbounded Outcome = "unbounded"
)

// Split is the capacity decision for one order on one vessel.
type Split struct {
	Station   *string
	Produced  *float64
	Remainder *float64
	// ChildProduced is the planned share of the remainder on a vessel of the
	// same capacity.
	ChildProduced *float64
	Outcome       Outcome
}

// Decide applies the fragmentation rule for a lot against the matching
// compatibility entry, which may be nil. The remainder is never split again.
func Decide(lot *float64, match *model.CompatibilityEntry) Split {
	if match == nil {
		return Split{Produced: copyFloat(lot), Outcome: Unbounded}
	}
	station := match.StationName()
	s := Split{Station: &station}
	capacity := match.Capacity()
	if capacity <= 0 || lot == nil {
		s.Produced = copyFloat(lot)
		s.Outcome = Unbounded
		return s
	}
	if *lot <= capacity {
		s.Produced = copyFloat(lot)
		s.Outcome = Absorbed
		return s
	}
	rem := *lot - capacity
	s.Produced = model.Ptr(capacity)
	s.Remainder = model.Ptr(rem)
	s.ChildProduced = model.Ptr(min(rem, capacity))
	s.Outcome = Fragmented
	return s
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return model.Ptr(*p)
}
