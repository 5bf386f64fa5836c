package occupancy

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/pailas/core/model"
)

// Window is a half-open reporting interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Hours returns the window length in hours.
func (w Window) Hours() float64 { return w.End.Sub(w.Start).Hours() }

// VesselUtilization is the busy time of a vessel inside a window.
type VesselUtilization struct {
	VesselID       string  `json:"vessel_id"`
	OccupiedHours  float64 `json:"occupied_hours"`
	WashHours      float64 `json:"wash_hours"`
	Ratio          float64 `json:"ratio"`
	Reservations   int     `json:"reservations"`
	OverlapWarning bool    `json:"overlap_warning"`
}

// Report aggregates utilization over the fleet.
type Report struct {
	Start   time.Time           `json:"start"`
	End     time.Time           `json:"end"`
	Vessels []VesselUtilization `json:"vessels"`
	Mean    float64             `json:"mean"`
	StdDev  float64             `json:"std_dev"`
}

type span struct{ start, end time.Time }

// Utilization computes per-vessel busy hours clipped to the window. Occupied
// and pending-wash records count as busy. vessels lists every vessel to
// report, including idle ones; vessels only seen in records are added.
// Overlapping occupied reservations are flagged but still counted once.
func Utilization(records []model.OccupancyRecord, vessels []string, w Window) Report {
	rep := Report{Start: w.Start, End: w.End}
	total := w.Hours()
	if total <= 0 {
		return rep
	}

	byVessel := map[string]*VesselUtilization{}
	spans := map[string][]span{}
	for _, id := range vessels {
		byVessel[id] = &VesselUtilization{VesselID: id}
	}
	for _, r := range records {
		if r.Start == nil || r.End == nil || r.Status == model.StatusAvailable {
			continue
		}
		s, e := clip(*r.Start, *r.End, w)
		if !e.After(s) {
			continue
		}
		u, ok := byVessel[r.VesselID]
		if !ok {
			u = &VesselUtilization{VesselID: r.VesselID}
			byVessel[r.VesselID] = u
		}
		switch r.Status {
		case model.StatusOccupied:
			spans[r.VesselID] = append(spans[r.VesselID], span{s, e})
			u.Reservations++
		case model.StatusPendingWash:
			u.WashHours += e.Sub(s).Hours()
		}
	}

	ratios := make([]float64, 0, len(byVessel))
	for id, u := range byVessel {
		hours, overlap := merge(spans[id])
		u.OccupiedHours = hours
		u.OverlapWarning = overlap
		u.Ratio = (u.OccupiedHours + u.WashHours) / total
		if u.Ratio > 1 {
			u.Ratio = 1
		}
		rep.Vessels = append(rep.Vessels, *u)
	}
	sort.Slice(rep.Vessels, func(i, j int) bool { return rep.Vessels[i].VesselID < rep.Vessels[j].VesselID })
	for _, v := range rep.Vessels {
		ratios = append(ratios, v.Ratio)
	}
	if len(ratios) > 0 {
		rep.Mean = stat.Mean(ratios, nil)
	}
	if len(ratios) > 1 {
		rep.StdDev = stat.StdDev(ratios, nil)
	}
	return rep
}

func clip(s, e time.Time, w Window) (time.Time, time.Time) {
	if s.Before(w.Start) {
		s = w.Start
	}
	if e.After(w.End) {
		e = w.End
	}
	return s, e
}

// merge returns the union length of the spans in hours and whether any two
// of them overlapped.
func merge(spans []span) (float64, bool) {
	if len(spans) == 0 {
		return 0, false
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })
	var hours float64
	overlap := false
	cur := spans[0]
	for _, sp := range spans[1:] {
		if sp.start.Before(cur.end) {
			overlap = true
			if sp.end.After(cur.end) {
				cur.end = sp.end
			}
			continue
		}
		hours += cur.end.Sub(cur.start).Hours()
		cur = sp
	}
	hours += cur.end.Sub(cur.start).Hours()
	return hours, overlap
}
