package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marketwatch/internal/egress"
	"marketwatch/internal/models"
	"marketwatch/internal/views"
)

// TenantLister is satisfied by *tenant.Store.
type TenantLister interface {
	List() ([]models.TenantConfig, error)
}

// Router implements the nine-step alert fan-out pipeline of spec.md §4.G.
type Router struct {
	tenants  TenantLister
	delivery *DeliveryTracker
	egress   egress.Egress
	logger   *zap.Logger

	ingestPeriod time.Duration

	// broken marks channels that returned a PermanentError earlier in the
	// current tick, so the rest of the tick skips them without retrying.
	broken map[string]bool
}

func New(tenants TenantLister, delivery *DeliveryTracker, eg egress.Egress, logger *zap.Logger, ingestPeriod time.Duration) *Router {
	return &Router{tenants: tenants, delivery: delivery, egress: eg, logger: logger, ingestPeriod: ingestPeriod}
}

// TickResult summarizes one Route call, used for logging and tests.
type TickResult struct {
	Sent    int
	Skipped int
	Broken  int
}

// Route fans the current view generation out to every known tenant,
// applying the nine-step filter pipeline per event.
func (r *Router) Route(ctx context.Context, snap *views.Snapshot) (TickResult, error) {
	if snap == nil {
		return TickResult{}, nil
	}
	tenants, err := r.tenants.List()
	if err != nil {
		return TickResult{}, fmt.Errorf("router: list tenants: %w", err)
	}

	r.broken = make(map[string]bool)
	var result TickResult

	sentThisTick := make(map[string]int) // tenantID -> count, step 8's per-tick rate cap

	for _, dump := range snap.Dumps {
		for _, t := range tenants {
			ok, skip := r.routeDump(ctx, t, dump, sentThisTick)
			if ok {
				result.Sent++
			} else if skip {
				result.Skipped++
			}
		}
	}
	for _, spike := range snap.Spikes {
		for _, t := range tenants {
			ok, skip := r.routeSpike(ctx, t, spike, sentThisTick)
			if ok {
				result.Sent++
			} else if skip {
				result.Skipped++
			}
		}
	}
	for _, flip := range snap.TopFlips {
		for _, t := range tenants {
			ok, skip := r.routeFlip(ctx, t, flip, sentThisTick)
			if ok {
				result.Sent++
			} else if skip {
				result.Skipped++
			}
		}
	}

	result.Broken = len(r.broken)
	return result, nil
}

// gateCommon applies steps 1-4 of §4.G plus the per-tenant, per-tick
// max_alerts_per_interval cap of step 8. margin_gp is only a meaningful
// field on FlipCandidate (§3's DumpEvent/SpikeEvent carry no margin_gp);
// hasMargin is false for those, so the min_margin_gp check only applies to
// flips.
func (r *Router) gateCommon(t models.TenantConfig, tier string, score float64, marginGP int64, hasMargin bool, sent map[string]int) bool {
	if t.Banned {
		return false
	}
	if t.MinTierName != "" && tier != "" && models.TierOrder(tier) < models.TierOrder(t.MinTierName) {
		return false
	}
	if tier != "" && !t.AlertThresholds.TiersAllowed(tier) {
		return false
	}
	if score < t.AlertThresholds.MinScore {
		return false
	}
	if hasMargin && marginGP < t.AlertThresholds.MinMarginGP {
		return false
	}
	maxAlerts := t.AlertThresholds.MaxAlertsPerInterval
	if maxAlerts <= 0 {
		maxAlerts = 5
	}
	if sent[t.TenantID] >= maxAlerts {
		return false
	}
	return true
}

func (r *Router) routeDump(ctx context.Context, t models.TenantConfig, e models.DumpEvent, sent map[string]int) (bool, bool) {
	if !r.gateCommon(t, e.Tier, e.Score, 0, false, sent) {
		return false, true
	}
	channelID, ok := t.Channels[models.ChannelDumps]
	if !ok || channelID == "" || r.broken[channelID] {
		return false, true
	}
	bucket := e.Timestamp / int64(r.ingestPeriod.Seconds())
	if r.delivery.Seen(t.TenantID, e.ItemID, models.EventDump, bucket) {
		return false, true
	}

	mentions := r.dumpMentions(t, e.Tier)
	payload := egress.Payload{
		Title:       fmt.Sprintf("%s Dump detected: item %d", e.Tier, e.ItemID),
		Description: fmt.Sprintf("Price dropped %.1f%% with a %.1f score", e.DropPct, e.Score),
		Mentions:    mentions,
		Fields: []egress.Field{
			{Name: "Score", Value: fmt.Sprintf("%.1f", e.Score), Inline: true},
			{Name: "Drop", Value: fmt.Sprintf("%.1f%%", e.DropPct), Inline: true},
		},
	}
	return r.emit(ctx, t, channelID, e.ItemID, models.EventDump, bucket, payload, sent)
}

func (r *Router) routeSpike(ctx context.Context, t models.TenantConfig, e models.SpikeEvent, sent map[string]int) (bool, bool) {
	if !r.gateCommon(t, "", 0, 0, false, sent) {
		return false, true
	}
	channelID, ok := t.Channels[models.ChannelSpikes]
	if !ok || channelID == "" || r.broken[channelID] {
		return false, true
	}
	bucket := e.Timestamp / int64(r.ingestPeriod.Seconds())
	if r.delivery.Seen(t.TenantID, e.ItemID, models.EventSpike, bucket) {
		return false, true
	}

	payload := egress.Payload{
		Title:       fmt.Sprintf("Spike detected: item %d", e.ItemID),
		Description: fmt.Sprintf("Price rose %.1f%% on volume %d", e.RisePct, e.Volume),
		Mentions:    r.spikeMentions(t),
		Fields: []egress.Field{
			{Name: "Rise", Value: fmt.Sprintf("%.1f%%", e.RisePct), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d", e.Volume), Inline: true},
		},
	}
	return r.emit(ctx, t, channelID, e.ItemID, models.EventSpike, bucket, payload, sent)
}

func (r *Router) routeFlip(ctx context.Context, t models.TenantConfig, f models.FlipCandidate, sent map[string]int) (bool, bool) {
	if !r.gateCommon(t, "", 0, f.MarginGP, true, sent) {
		return false, true
	}
	channelID := r.flipChannel(t, f)
	if channelID == "" || r.broken[channelID] {
		return false, true
	}
	bucket := f.Timestamp / int64(r.ingestPeriod.Seconds())
	if r.delivery.Seen(t.TenantID, f.ItemID, models.EventFlip, bucket) {
		return false, true
	}

	mentions := r.flipMentions(t, f)
	payload := egress.Payload{
		Title:       fmt.Sprintf("Flip opportunity: item %d", f.ItemID),
		Description: fmt.Sprintf("Margin %d gp (%s%% ROI)", f.MarginGP, f.ROIDecimal()),
		Mentions:    mentions,
		Fields: []egress.Field{
			{Name: "Buy", Value: fmt.Sprintf("%d", f.Buy), Inline: true},
			{Name: "Sell", Value: fmt.Sprintf("%d", f.Sell), Inline: true},
			{Name: "Risk", Value: string(f.RiskLevel), Inline: true},
		},
	}
	return r.emit(ctx, t, channelID, f.ItemID, models.EventFlip, bucket, payload, sent)
}

// flipChannel classifies by price bracket per §4.G step 5, falling back to
// the general "flips" channel, grounded on
// original_source/discord-bot/utils/notification_router.py's determine_channel.
func (r *Router) flipChannel(t models.TenantConfig, f models.FlipCandidate) string {
	pb := t.PriceBrackets
	var kind models.ChannelKind
	switch {
	case f.Buy < pb.CheapMax:
		kind = models.ChannelCheapFlips
	case f.Buy < pb.MediumMax:
		kind = models.ChannelMediumFlips
	case f.Buy < pb.ExpensiveMax:
		kind = models.ChannelExpensiveFlips
	default:
		kind = models.ChannelBillionaireFlips
	}
	if id, ok := t.Channels[kind]; ok && id != "" {
		return id
	}
	if f.IsHighLimit {
		if id, ok := t.Channels[models.ChannelHighLimitItems]; ok && id != "" {
			return id
		}
	}
	return t.Channels[models.ChannelFlips]
}

// eventMention looks up the event-kind role every alert of kind k mentions,
// regardless of tier/risk/quality, per step 6's "event-kind role" term.
func (r *Router) eventMention(t models.TenantConfig, k models.EventKind) []string {
	if id, ok := t.Roles[models.EventRoleKind(k)]; ok && id != "" {
		return []string{id}
	}
	return nil
}

// dumpMentions computes step 6's mention set for a dump: the tier-role (if
// configured and enabled) union the dump event-kind role. Risk/quality roles
// are flip-only, since those signals are only computed on FlipCandidate.
func (r *Router) dumpMentions(t models.TenantConfig, tier string) []string {
	var mentions []string
	if setting, ok := t.TierRoles[tier]; ok && setting.Enabled && setting.RoleID != "" {
		mentions = append(mentions, setting.RoleID)
	}
	mentions = append(mentions, r.eventMention(t, models.EventDump)...)
	return mentions
}

// spikeMentions computes step 6's mention set for a spike: just the spike
// event-kind role, since spikes carry no tier/risk/quality signal.
func (r *Router) spikeMentions(t models.TenantConfig) []string {
	return r.eventMention(t, models.EventSpike)
}

// flipMentions computes step 6's mention set for a flip: risk-role by
// risk_level, union quality-role by quality label, union the flip
// event-kind role.
func (r *Router) flipMentions(t models.TenantConfig, f models.FlipCandidate) []string {
	var mentions []string
	riskKind := models.RoleKind("risk_" + string(f.RiskLevel))
	if id, ok := t.Roles[riskKind]; ok && id != "" {
		mentions = append(mentions, id)
	}
	if id, ok := t.Roles[f.Quality.RoleKind()]; ok && id != "" {
		mentions = append(mentions, id)
	}
	mentions = append(mentions, r.eventMention(t, models.EventFlip)...)
	return mentions
}

func (r *Router) emit(ctx context.Context, t models.TenantConfig, channelID string, itemID models.ItemID, kind models.EventKind, bucket int64, payload egress.Payload, sent map[string]int) (bool, bool) {
	_, err := r.egress.Post(ctx, channelID, payload)
	if err != nil {
		if isPermanent(err) {
			r.broken[channelID] = true
		}
		if r.logger != nil {
			r.logger.Warn("router: egress post failed",
				zap.String("tenant", t.TenantID), zap.String("channel", channelID), zap.Error(err))
		}
		return false, true
	}
	r.delivery.Record(t.TenantID, itemID, kind, bucket, r.ingestPeriod)
	sent[t.TenantID]++
	return true, false
}

func isPermanent(err error) bool {
	_, ok := err.(*egress.PermanentError)
	return ok
}
