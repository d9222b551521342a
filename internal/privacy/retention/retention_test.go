package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"memberhub/internal/records"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		resourceType string
		class        Class
		days         int
	}{
		{records.TypeProfile, Immediate, 0},
		{records.TypeApplication, Immediate, 0},
		{records.TypeSearchQuery, Immediate, 0},
		{records.TypeAttendance, Immediate, 0},
		{records.TypeRSVP, Immediate, 0},
		{records.TypeComment, Immediate, 0},
		{records.TypeAuditLog, ShortTerm, 365},
		{records.TypePayment, LongTerm, 2555},
		{records.TypeSubscription, LongTerm, 2555},
	}
	for _, tt := range tests {
		t.Run(tt.resourceType, func(t *testing.T) {
			p := Resolve(tt.resourceType)
			assert.Equal(t, tt.class, p.Class)
			assert.Equal(t, tt.days, p.DurationDays)
		})
	}
}

func TestResolveUnknownTypeDefaultsToImmediate(t *testing.T) {
	p := Resolve("something-new")
	assert.Equal(t, Immediate, p.Class)
}
