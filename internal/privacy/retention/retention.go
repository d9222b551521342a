// Package retention maps resource types to their retention class.
//
// `immediate` means the record is anonymized and the anonymized form kept
// indefinitely (content preserved, identity destroyed). `short_term` and
// `long_term` additionally stamp a retention_until timestamp; a separate
// sweep hard-deletes records once now > retention_until.
package retention

import "memberhub/internal/records"

// Class is the policy bucket governing how long anonymized data is kept.
type Class string

const (
	Immediate Class = "immediate"
	ShortTerm Class = "short_term"
	LongTerm  Class = "long_term"
)

// Policy is the resolved retention policy for one resource type.
type Policy struct {
	Class        Class
	DurationDays int
}

// The policy table. Durations:
//   - audit-log: 365 days, security/fraud investigation window
//   - payment, subscription: 2555 days (7 years), tax/financial
//     recordkeeping obligation
//
// Everything else has no legal hold and is anonymized immediately.
var policies = map[string]Policy{
	records.TypeProfile:      {Class: Immediate},
	records.TypeApplication:  {Class: Immediate},
	records.TypeSearchQuery:  {Class: Immediate},
	records.TypeAttendance:   {Class: Immediate},
	records.TypeRSVP:         {Class: Immediate},
	records.TypeComment:      {Class: Immediate},
	records.TypeAuditLog:     {Class: ShortTerm, DurationDays: 365},
	records.TypePayment:      {Class: LongTerm, DurationDays: 2555},
	records.TypeSubscription: {Class: LongTerm, DurationDays: 2555},
}

// Resolve returns the retention policy for a resource type. Unmapped types
// default to immediate.
func Resolve(resourceType string) Policy {
	if p, ok := policies[resourceType]; ok {
		return p
	}
	return Policy{Class: Immediate}
}
