// Package softpower selects a soft-threshold power candidate per network
// type from an externally fitted scale-free fit curve. Selection never
// fails: when no power reaches the fit bar, the maximum-fit power is chosen
// and the fallback is surfaced as a logged, non-fatal event.
package softpower

import (
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// NetworkType is the adjacency sign convention of the fitted network.
type NetworkType string

const (
	Signed       NetworkType = "signed"
	SignedHybrid NetworkType = "signed_hybrid"
)

// ParseNetworkType validates a configured network type string.
func ParseNetworkType(s string) (NetworkType, error) {
	switch NetworkType(s) {
	case Signed, SignedHybrid:
		return NetworkType(s), nil
	}
	return "", fmt.Errorf("unknown network type %q (want signed or signed_hybrid)", s)
}

// FitPoint is one tested (power, network type) pair of the fit curve.
type FitPoint struct {
	Power            int
	NetworkType      NetworkType
	FitR2            float64
	MeanConnectivity float64
}

// Curve is the full fit-quality curve across candidate powers and network
// types, as produced by the soft-threshold collaborator.
type Curve []FitPoint

// Candidate is the selected power for one network type, carrying the fit
// statistics for audit. Fallback marks a max-fit selection because no power
// met the primary bar.
type Candidate struct {
	NetworkType      NetworkType
	Power            int
	FitR2            float64
	MeanConnectivity float64
	Fallback         bool
}

// DefaultFitTarget is the primary scale-free fit bar.
const DefaultFitTarget = 0.80

// Select picks one candidate per network type present in the curve: the
// smallest power with FitR2 >= fitTarget, falling back to the power with
// the maximum FitR2 when no power qualifies. Candidates are returned in
// ascending network-type order. The selection is advisory for the human
// gate; the approved power is a separate input downstream.
func Select(curve Curve, fitTarget float64, log *zap.Logger) []Candidate {
	if fitTarget <= 0 {
		fitTarget = DefaultFitTarget
	}
	byType := make(map[NetworkType][]FitPoint)
	for _, p := range curve {
		byType[p.NetworkType] = append(byType[p.NetworkType], p)
	}
	types := make([]NetworkType, 0, len(byType))
	for nt := range byType {
		types = append(types, nt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var out []Candidate
	for _, nt := range types {
		points := byType[nt]
		sort.Slice(points, func(i, j int) bool { return points[i].Power < points[j].Power })

		chosen := FitPoint{}
		found := false
		for _, p := range points {
			if p.FitR2 >= fitTarget {
				chosen = p
				found = true
				break
			}
		}
		fallback := false
		if !found {
			best := points[0]
			for _, p := range points[1:] {
				if p.FitR2 > best.FitR2 {
					best = p
				}
			}
			chosen = best
			fallback = true
			if log != nil {
				log.Warn("soft-threshold fallback: no power met the fit target, using max fit",
					zap.String("network_type", string(nt)),
					zap.Float64("fit_target", fitTarget),
					zap.Int("power", chosen.Power),
					zap.Float64("fit_r2", chosen.FitR2))
			}
		}
		out = append(out, Candidate{
			NetworkType:      nt,
			Power:            chosen.Power,
			FitR2:            chosen.FitR2,
			MeanConnectivity: chosen.MeanConnectivity,
			Fallback:         fallback,
		})
	}
	return out
}

// CurveFromRecords parses a fit curve from a table with columns
// power, network_type, fit_r2, mean_connectivity (any column order).
func CurveFromRecords(header []string, rows [][]string) (Curve, error) {
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	for _, col := range []string{"power", "network_type", "fit_r2", "mean_connectivity"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("fit curve table missing column %q", col)
		}
	}
	curve := make(Curve, 0, len(rows))
	for ln, rec := range rows {
		power, err := strconv.Atoi(rec[idx["power"]])
		if err != nil {
			return nil, fmt.Errorf("fit curve row %d: bad power %q", ln+2, rec[idx["power"]])
		}
		nt, err := ParseNetworkType(rec[idx["network_type"]])
		if err != nil {
			return nil, fmt.Errorf("fit curve row %d: %w", ln+2, err)
		}
		r2, err := strconv.ParseFloat(rec[idx["fit_r2"]], 64)
		if err != nil {
			return nil, fmt.Errorf("fit curve row %d: bad fit_r2 %q", ln+2, rec[idx["fit_r2"]])
		}
		mc, err := strconv.ParseFloat(rec[idx["mean_connectivity"]], 64)
		if err != nil {
			return nil, fmt.Errorf("fit curve row %d: bad mean_connectivity %q", ln+2, rec[idx["mean_connectivity"]])
		}
		curve = append(curve, FitPoint{Power: power, NetworkType: nt, FitR2: r2, MeanConnectivity: mc})
	}
	return curve, nil
}
