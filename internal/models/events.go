package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DumpFlag is one of a small, fixed set of boolean signals attached to a
// DumpEvent.
type DumpFlag string

const (
	FlagSlowBuy    DumpFlag = "slow_buy"
	FlagOneGPDump  DumpFlag = "one_gp_dump"
	FlagSuper      DumpFlag = "super"
)

// DumpEvent is a price drop with an oversupply signature, scored and
// tiered by the event engine (component D). Transient: recomputed every
// ingest tick, never persisted beyond the current view generation.
type DumpEvent struct {
	ItemID        ItemID            `json:"item_id"`
	Timestamp     int64             `json:"timestamp"`
	PrevLow       int64             `json:"prev_low"`
	CurLow        int64             `json:"cur_low"`
	DropPct       float64           `json:"drop_pct"`
	VolSpikePct   float64           `json:"vol_spike_pct"`
	OversupplyPct float64           `json:"oversupply_pct"`
	BuySpeedPct   float64           `json:"buy_speed_pct"`
	Score         float64           `json:"score"`
	Tier          string            `json:"tier"`
	Flags         map[DumpFlag]bool `json:"flags"`
}

func (e DumpEvent) HasFlag(f DumpFlag) bool { return e.Flags != nil && e.Flags[f] }

// SpikeEvent is a price rise satisfying the configured rise-percentage and
// volume thresholds. Transient.
type SpikeEvent struct {
	ItemID    ItemID  `json:"item_id"`
	Timestamp int64   `json:"timestamp"`
	PrevHigh  int64   `json:"prev_high"`
	CurHigh   int64   `json:"cur_high"`
	RisePct   float64 `json:"rise_pct"`
	Volume    int64   `json:"volume"`
}

// RiskLevel buckets a FlipCandidate's composite risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// QualityLabel buckets a FlipCandidate by ROI/margin attractiveness, used by
// the router to pick a "quality role" mention. Values match the RoleKind
// suffix convention (e.g. QualityGood -> RoleKind "quality_good").
type QualityLabel string

const (
	QualityDeal    QualityLabel = "deal"
	QualityGood    QualityLabel = "good"
	QualityPremium QualityLabel = "premium"
	QualityElite   QualityLabel = "elite"
	QualityGodTier QualityLabel = "god_tier"
	QualityNuclear QualityLabel = "nuclear"
)

// RoleKind returns the RoleKind that corresponds to this quality label.
func (q QualityLabel) RoleKind() RoleKind {
	return RoleKind("quality_" + string(q))
}

// FlipCandidate is a (low, high) pair whose margin and volume exceed the
// configured thresholds. Transient.
type FlipCandidate struct {
	ItemID         ItemID       `json:"item_id"`
	Timestamp      int64        `json:"timestamp"`
	Buy            int64        `json:"buy"`  // insta-sell price, i.e. what a flipper buys at
	Sell           int64        `json:"sell"` // insta-buy price, i.e. what a flipper sells at
	InstaBuy       int64        `json:"insta_buy"`
	InstaSell      int64        `json:"insta_sell"`
	MarginGP       int64        `json:"margin_gp"`
	ROIPct         float64      `json:"roi_pct"`
	Volume         int64        `json:"volume"`
	BuyLimit       int          `json:"buy_limit"`
	RiskScore      float64      `json:"risk_score"`
	RiskLevel      RiskLevel    `json:"risk_level"`
	LiquidityScore float64      `json:"liquidity_score"`
	Quality        QualityLabel `json:"quality"`
	IsHighLimit    bool         `json:"is_high_limit"`
}

// ROIDecimal recomputes margin/buy as an exact decimal.Decimal ratio rather
// than trusting the float64 ROIPct carried on the struct, so chat messages
// and the read API can quote a ROI figure free of float round-trip error on
// large gp values. Rounded to 2 decimal places, matching the teacher's
// money-formatting convention for price fields.
func (f FlipCandidate) ROIDecimal() decimal.Decimal {
	if f.Buy <= 0 {
		return decimal.Zero
	}
	margin := decimal.NewFromInt(f.MarginGP)
	buy := decimal.NewFromInt(f.Buy)
	return margin.Div(buy).Mul(decimal.NewFromInt(100)).Round(2)
}

// DeliveryRecord suppresses duplicate emission of the same event to the
// same tenant within one ingest period. Bucket is the event timestamp
// floor-divided by the ingest period, so records naturally expire once the
// bucket advances.
type DeliveryRecord struct {
	TenantID  string
	ItemID    ItemID
	EventKind string
	Bucket    int64
	ExpiresAt time.Time
}

// EventKind names the three detector outputs, used as map keys and as the
// "event-kind role" lookup in tenant role configuration.
type EventKind string

const (
	EventDump EventKind = "dump"
	EventSpike EventKind = "spike"
	EventFlip  EventKind = "flip"
)
