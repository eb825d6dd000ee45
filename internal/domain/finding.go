package domain

import "github.com/google/uuid"

// FindingKind identifies the rule that produced a finding.
type FindingKind string

const (
	FindingMissedPickup   FindingKind = "missed-pickup"
	FindingHighRisk       FindingKind = "high-risk"
	FindingMismatch       FindingKind = "schedule-mismatch"
	FindingConsolidation  FindingKind = "consolidation-opportunity"
)

// Severity grades a finding for the external alerting collaborator.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is the structured fact handed to the external messaging
// collaborator. The core never formats or delivers it to a channel.
type Finding struct {
	ID         string      `json:"id"`
	LocationID string      `json:"location_id"`
	Kind       FindingKind `json:"kind"`
	Severity   Severity    `json:"severity"`
	CashAtRisk float64     `json:"cash_at_risk"`
	Summary    string      `json:"summary"`
}

// NewFinding assigns a fresh correlation id to a finding.
func NewFinding(locationID string, kind FindingKind, sev Severity, cashAtRisk float64, summary string) Finding {
	return Finding{
		ID:         uuid.NewString(),
		LocationID: locationID,
		Kind:       kind,
		Severity:   sev,
		CashAtRisk: cashAtRisk,
		Summary:    summary,
	}
}
