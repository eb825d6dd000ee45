package rules

import (
	"context"
	"strings"
	"time"

	"cashops/internal/domain"
)

// Report runs every rule over the range and flattens the results into the
// findings payload consumed by the external alerting collaborator.
func (e *Engine) Report(ctx context.Context, start, end time.Time, th Thresholds) ([]domain.Finding, error) {
	var findings []domain.Finding

	missed, err := e.MissedPickups(ctx, start, end, th)
	if err != nil {
		return nil, err
	}
	for _, m := range missed {
		sev := domain.SeverityWarning
		if m.CashAtRisk >= 2*th.HighVolume {
			sev = domain.SeverityCritical
		}
		findings = append(findings, domain.NewFinding(m.StoreCode, domain.FindingMissedPickup, sev, m.CashAtRisk, m.summary()))
	}

	risks, err := e.HighRiskLocations(ctx, end, th)
	if err != nil {
		return nil, err
	}
	for _, r := range risks {
		findings = append(findings, domain.NewFinding(r.StoreCode, domain.FindingHighRisk, domain.SeverityCritical, r.CashExposure, r.summary()))
	}

	mismatches, err := e.ScheduleMismatches(ctx, th)
	if err != nil {
		return nil, err
	}
	for _, m := range mismatches {
		sev := domain.SeverityInfo
		if m.Kind == MismatchUnderService {
			sev = domain.SeverityWarning
		}
		findings = append(findings, domain.NewFinding(m.StoreCode, domain.FindingMismatch, sev, 0, m.summary()))
	}

	groups, err := e.ConsolidationOpportunities(ctx, th)
	if err != nil {
		return nil, err
	}
	for _, c := range groups {
		codes := make([]string, 0, len(c.Stops))
		for _, s := range c.Stops {
			codes = append(codes, s.StoreCode)
		}
		findings = append(findings, domain.NewFinding(strings.Join(codes, ","), domain.FindingConsolidation, domain.SeverityInfo, 0, c.summary()))
	}

	e.logger.Info("findings report built", "findings", len(findings))
	return findings, nil
}
