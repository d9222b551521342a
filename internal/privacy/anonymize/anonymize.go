// Package anonymize is the pure transformer at the heart of erasure: given a
// document and its resource type, it returns an anonymized copy.
//
// Classification is a static field-name table. Identity-referencing fields go
// through the pseudonym package so referential integrity survives erasure;
// every other PII field is replaced with a fixed redaction token. Non-PII
// fields (statuses, amounts, currencies, timestamps, internal IDs) pass
// through bit-for-bit, because financial and audit integrity depend on them.
//
// The transform is idempotent: values already carrying the redaction token or
// the pseudonym format are left alone, so re-running a partially completed
// pipeline is safe.
package anonymize

import (
	"memberhub/internal/privacy/pseudonym"
	"memberhub/internal/records"
	dErrors "memberhub/pkg/domain-errors"
)

// RedactedToken replaces PII values that carry no referential role.
const RedactedToken = "[REDACTED]"

// fieldClass says what to do with a classified field.
type fieldClass int

const (
	classRedact fieldClass = iota
	classUserRef
)

// commonFields classifies field names that mean the same thing in every
// collection. Categories covered: direct identifiers, physical address
// components, government/biometric identifiers, network/device identifiers,
// free-text personal content, and user foreign keys.
var commonFields = map[string]fieldClass{
	// Direct identifiers
	"name":         classRedact,
	"first_name":   classRedact,
	"last_name":    classRedact,
	"full_name":    classRedact,
	"display_name": classRedact,
	"email":        classRedact,
	"phone":        classRedact,
	"phone_number": classRedact,

	// Physical address components
	"address":        classRedact,
	"street":         classRedact,
	"street_address": classRedact,
	"city":           classRedact,
	"postal_code":    classRedact,
	"zip":            classRedact,
	"country":        classRedact,

	// Government / biometric identifiers
	"national_id":     classRedact,
	"ssn":             classRedact,
	"passport_number": classRedact,
	"date_of_birth":   classRedact,
	"dob":             classRedact,

	// Network / device identifiers
	"ip":         classRedact,
	"ip_address": classRedact,
	"user_agent": classRedact,
	"device_id":  classRedact,

	// Free-text personal content
	"bio":   classRedact,
	"notes": classRedact,

	// User foreign keys: hashed, not redacted, to keep references resolvable
	"user_id":      classUserRef,
	"member_id":    classUserRef,
	"author_id":    classUserRef,
	"owner_id":     classUserRef,
	"created_by":   classUserRef,
	"requested_by": classUserRef,
}

// typeFields extends the common table per resource type. Comment bodies stay:
// an anonymized comment remains visible, attributed to its pseudonym.
var typeFields = map[string]map[string]fieldClass{
	records.TypeProfile: {
		"about":      classRedact,
		"avatar_url": classRedact,
		"location":   classRedact,
	},
	records.TypeApplication: {
		"motivation": classRedact,
		"referral":   classRedact,
	},
	records.TypePayment: {
		"card_holder":     classRedact,
		"billing_address": classRedact,
	},
	records.TypeSubscription: {
		"card_holder": classRedact,
	},
}

// Anonymize returns an anonymized copy of doc. The input is never mutated.
// The only error is a missing resource-type discriminator.
func Anonymize(doc records.Document, resourceType string) (records.Document, error) {
	if resourceType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resource type discriminator is required")
	}
	extra := typeFields[resourceType]
	out := anonymizeMap(map[string]any(doc.Clone()), extra)
	return records.Document(out), nil
}

func anonymizeMap(m map[string]any, extra map[string]fieldClass) map[string]any {
	for key, value := range m {
		class, classified := extra[key]
		if !classified {
			class, classified = commonFields[key]
		}
		if classified {
			m[key] = anonymizeValue(value, class)
			continue
		}
		// Unclassified fields recurse so nested structures see the same
		// classification rules at every depth.
		switch t := value.(type) {
		case map[string]any:
			m[key] = anonymizeMap(t, extra)
		case records.Document:
			m[key] = anonymizeMap(map[string]any(t), extra)
		case []any:
			for i, e := range t {
				if nested, ok := e.(map[string]any); ok {
					t[i] = anonymizeMap(nested, extra)
				}
			}
		}
	}
	return m
}

func anonymizeValue(value any, class fieldClass) any {
	s, isString := value.(string)
	switch class {
	case classUserRef:
		if !isString || s == "" || pseudonym.IsPseudonym(s) {
			return value
		}
		pseudoID, _ := pseudonym.Pseudonymize(s)
		return pseudoID
	default:
		if isString && (s == RedactedToken || s == "" || pseudonym.IsPseudonymEmail(s) || pseudonym.IsPseudonym(s)) {
			return value
		}
		if value == nil {
			return value
		}
		return RedactedToken
	}
}
