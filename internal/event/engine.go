// Package event implements the event engine (spec.md component D): it
// turns accepted price snapshots into DumpEvents, SpikeEvents, and
// FlipCandidates. The dump scoring formula is grounded line-for-line on
// original_source/backend/utils/dump_engine.py's compute_dump_score and
// assign_tier; the overall "takes history in, returns typed events out"
// shape follows the teacher's internal/strategy evaluator interfaces.
package event

import (
	"sort"

	"marketwatch/internal/config"
	"marketwatch/internal/models"
)

// Thresholds carries the global engine thresholds spec.md §4.D names.
// Constructed directly from config.DetectorConfig.
type Thresholds struct {
	MarginMin          int64
	DumpDropPct        float64
	SpikeRisePct       float64
	MinVolume          int64
	HighLimitThreshold int
}

func ThresholdsFromConfig(c config.DetectorConfig) Thresholds {
	return Thresholds{
		MarginMin:          c.MarginMin,
		DumpDropPct:        c.DumpDropPct,
		SpikeRisePct:       c.SpikeRisePct,
		MinVolume:          c.MinVolume,
		HighLimitThreshold: c.HighLimitThreshold,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// computeDumpScore implements §4.D's weighted model verbatim:
//   score = clamp(2*drop_pct,0,40) + clamp(0.3*vol_spike_pct,0,30)
//         + clamp(0.2*oversupply_pct,0,20) + clamp(0.1*buy_speed_pct,0,10)
func computeDumpScore(prevLow, curLow, curVol, avgDailyVolume float64, buyLimit int) (score, dropPct, volSpikePct, oversupplyPct, buySpeedPct float64) {
	if prevLow <= 0 || curLow <= 0 {
		return 0, 0, 0, 0, 0
	}

	dropPct = maxf(0, (prevLow-curLow)/prevLow*100)
	dropScore := clamp(2*dropPct, 0, 40)

	expected5m := avgDailyVolume / 288
	if expected5m <= 0 {
		expected5m = 1
	}
	volSpikePct = maxf(0, (curVol-expected5m)/expected5m*100)
	volSpikeScore := clamp(0.3*volSpikePct, 0, 30)

	limit := float64(buyLimit)
	if limit <= 0 {
		limit = 1
	}
	oversupplyPct = curVol / limit * 100
	oversupplyScore := clamp(0.2*oversupplyPct, 0, 20)

	buySpeedPct = oversupplyPct
	buySpeedScore := clamp(0.1*buySpeedPct, 0, 10)

	score = clamp(dropScore+volSpikeScore+oversupplyScore+buySpeedScore, 0, 100)
	return
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ItemWindow is the per-item input the engine needs for one tick: the
// current snapshot, the previous one (for drop/rise comparison), a volume
// baseline computed from recent history, and (for flip candidates only) the
// last 24h of snapshots the risk score's volatility term needs. History24h
// is populated lazily by the caller (component J), since fetching it costs a
// store round trip and is only worth paying for items that already pass the
// flip margin/volume gate; it is nil for every item that never reaches that
// gate.
type ItemWindow struct {
	Meta           models.ItemMeta
	Prev           models.Snapshot
	Cur            models.Snapshot
	HasPrev        bool
	AvgDailyVolume float64 // mean of the caller's recent per-tick 5m-window volumes; not scaled to a daily figure, though Detect divides it by 288
	History24h     []models.Snapshot
}

// Detect runs the full per-item detection pipeline for one tick and
// returns whichever of a DumpEvent, SpikeEvent, FlipCandidate apply. Any
// return value may be nil; the caller (component J) collects non-nil
// results across all items into the next view generation.
func Detect(w ItemWindow, th Thresholds) (*models.DumpEvent, *models.SpikeEvent, *models.FlipCandidate) {
	var dump *models.DumpEvent
	var spike *models.SpikeEvent
	var flip *models.FlipCandidate

	if w.Meta.BuyLimit <= 0 {
		return nil, nil, nil
	}

	if w.HasPrev && w.Cur.Low != nil && w.Prev.Low != nil {
		curLow := *w.Cur.Low
		prevLow := *w.Prev.Low
		if prevLow > 0 && curLow > 0 && curLow < prevLow {
			curVol := float64(w.Cur.VolumeOrZero())
			score, dropPct, volSpikePct, oversupplyPct, buySpeedPct := computeDumpScore(
				float64(prevLow), float64(curLow), curVol, w.AvgDailyVolume, w.Meta.BuyLimit)
			if score > 0 {
				tier := models.TierOf(score)
				flags := map[models.DumpFlag]bool{}
				if buySpeedPct < 50 {
					flags[models.FlagSlowBuy] = true
				}
				if curLow == 1 {
					flags[models.FlagOneGPDump] = true
				}
				if score >= 51 {
					flags[models.FlagSuper] = true
				}
				dump = &models.DumpEvent{
					ItemID:        w.Meta.ID,
					Timestamp:     w.Cur.Timestamp,
					PrevLow:       prevLow,
					CurLow:        curLow,
					DropPct:       dropPct,
					VolSpikePct:   volSpikePct,
					OversupplyPct: oversupplyPct,
					BuySpeedPct:   buySpeedPct,
					Score:         score,
					Tier:          tier.Name,
					Flags:         flags,
				}
			}
		}
	}

	if w.HasPrev && w.Cur.High != nil && w.Prev.High != nil {
		curHigh := *w.Cur.High
		prevHigh := *w.Prev.High
		vol := w.Cur.VolumeOrZero()
		if prevHigh > 0 && curHigh > prevHigh {
			risePct := float64(curHigh-prevHigh) / float64(prevHigh) * 100
			if risePct >= th.SpikeRisePct && vol >= th.MinVolume {
				spike = &models.SpikeEvent{
					ItemID:    w.Meta.ID,
					Timestamp: w.Cur.Timestamp,
					PrevHigh:  prevHigh,
					CurHigh:   curHigh,
					RisePct:   risePct,
					Volume:    vol,
				}
			}
		}
	}

	if w.Cur.Low != nil && w.Cur.High != nil {
		low := *w.Cur.Low
		high := *w.Cur.High
		vol := w.Cur.VolumeOrZero()
		marginGP := high - low
		if low > 0 && marginGP >= th.MarginMin && vol >= th.MinVolume {
			roiPct := float64(marginGP) / float64(low) * 100
			riskScore, riskLevel := riskScoreFor(w, vol)
			liquidity := liquidityScore(vol, w.Meta.BuyLimit)
			flip = &models.FlipCandidate{
				ItemID:         w.Meta.ID,
				Timestamp:      w.Cur.Timestamp,
				Buy:            low,
				Sell:           high,
				InstaBuy:       high,
				InstaSell:      low,
				MarginGP:       marginGP,
				ROIPct:         roiPct,
				Volume:         vol,
				BuyLimit:       w.Meta.BuyLimit,
				RiskScore:      riskScore,
				RiskLevel:      riskLevel,
				LiquidityScore: liquidity,
				Quality:        qualityFor(marginGP, roiPct),
				IsHighLimit:    w.Meta.BuyLimit >= th.HighLimitThreshold,
			}
		}
	}

	return dump, spike, flip
}

// volatility24h computes the price-range volatility term over w.History24h:
// (max_high - min_low) / min_low * 100 across the last 24h of snapshots plus
// the current one. Falls back to the immediately-preceding tick's low-price
// delta when no 24h history is available yet (an item's first tick after
// catalog refresh, or a store lookup that failed), since a genuinely empty
// history means there is nothing else to measure volatility against.
func volatility24h(w ItemWindow) float64 {
	minLow, maxHigh := int64(0), int64(0)
	have := false
	consider := func(low, high *int64) {
		if low != nil && *low > 0 {
			if !have || *low < minLow {
				minLow = *low
			}
			have = true
		}
		if high != nil && *high > 0 {
			if *high > maxHigh {
				maxHigh = *high
			}
		}
	}
	for _, s := range w.History24h {
		consider(s.Low, s.High)
	}
	if len(w.History24h) > 0 {
		consider(w.Cur.Low, w.Cur.High)
	}

	if have && minLow > 0 {
		return float64(maxHigh-minLow) / float64(minLow) * 100
	}

	if w.HasPrev && w.Prev.Low != nil && w.Cur.Low != nil && *w.Prev.Low > 0 {
		return absf(float64(*w.Cur.Low-*w.Prev.Low)) / float64(*w.Prev.Low) * 100
	}
	return 0
}

// riskScoreFor composes §4.D's three risk inputs — price volatility over the
// last 24h window, inverse-volume penalty, liquidity ratio — into a 0-100
// score bucketed at 20/40/60.
func riskScoreFor(w ItemWindow, vol int64) (float64, models.RiskLevel) {
	volatility := volatility24h(w)
	volatility = clamp(volatility, 0, 100)

	invVolumePenalty := 100.0
	if vol > 0 {
		invVolumePenalty = clamp(100.0/float64(vol), 0, 100)
	}

	liquidityRatio := 0.0
	if w.Meta.BuyLimit > 0 {
		liquidityRatio = clamp(float64(vol)/float64(w.Meta.BuyLimit)*100, 0, 100)
	}
	liquidityPenalty := clamp(100-liquidityRatio, 0, 100)

	score := clamp(0.5*volatility+0.3*invVolumePenalty+0.2*liquidityPenalty, 0, 100)

	switch {
	case score >= 60:
		return score, models.RiskVeryHigh
	case score >= 40:
		return score, models.RiskHigh
	case score >= 20:
		return score, models.RiskMedium
	default:
		return score, models.RiskLow
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func liquidityScore(vol int64, buyLimit int) float64 {
	if buyLimit <= 0 {
		return 0
	}
	return clamp(float64(vol)/float64(buyLimit)*100, 0, 100)
}

// qualityFor buckets a flip by margin/ROI attractiveness into the quality
// labels tenant role configuration recognizes. Thresholds are an engine
// decision (spec.md names the role kinds but not the mapping), chosen to
// span from a break-even "deal" up to billion-gp "nuclear" flips.
func qualityFor(marginGP int64, roiPct float64) models.QualityLabel {
	switch {
	case marginGP >= 1_000_000_000:
		return models.QualityNuclear
	case marginGP >= 100_000_000:
		return models.QualityGodTier
	case marginGP >= 10_000_000 || roiPct >= 30:
		return models.QualityElite
	case marginGP >= 1_000_000 || roiPct >= 15:
		return models.QualityPremium
	case roiPct >= 5:
		return models.QualityGood
	default:
		return models.QualityDeal
	}
}

// SortDumps orders dump events by (score desc, item_id asc), the
// determinism tie-break §4.D requires.
func SortDumps(events []models.DumpEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Score != events[j].Score {
			return events[i].Score > events[j].Score
		}
		return events[i].ItemID < events[j].ItemID
	})
}

// SortFlips orders flip candidates by (score proxy=ROI desc, margin_gp
// desc, item_id asc). Flip candidates have no "score" field; ROI stands in
// as the ranking key the router's "descending score order" refers to for
// flips, with margin_gp as the named secondary tie-break.
func SortFlips(flips []models.FlipCandidate) {
	sort.SliceStable(flips, func(i, j int) bool {
		if flips[i].ROIPct != flips[j].ROIPct {
			return flips[i].ROIPct > flips[j].ROIPct
		}
		if flips[i].MarginGP != flips[j].MarginGP {
			return flips[i].MarginGP > flips[j].MarginGP
		}
		return flips[i].ItemID < flips[j].ItemID
	})
}

// SortSpikes orders spike events by (rise_pct desc, item_id asc).
func SortSpikes(spikes []models.SpikeEvent) {
	sort.SliceStable(spikes, func(i, j int) bool {
		if spikes[i].RisePct != spikes[j].RisePct {
			return spikes[i].RisePct > spikes[j].RisePct
		}
		return spikes[i].ItemID < spikes[j].ItemID
	})
}
