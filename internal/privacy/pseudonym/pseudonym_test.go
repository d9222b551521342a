package pseudonym

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPseudonymizeIsDeterministic(t *testing.T) {
	id1, email1 := Pseudonymize("u-42")
	id2, email2 := Pseudonymize("u-42")

	assert.Equal(t, id1, id2)
	assert.Equal(t, email1, email2)
}

func TestPseudonymizeFormat(t *testing.T) {
	id, email := Pseudonymize("u-42")

	assert.Regexp(t, `^deleted_user_[0-9a-f]{8}$`, id)
	assert.Equal(t, id+"@anonymized.invalid", email)
}

func TestPseudonymizeDistinctUsersGetDistinctPseudonyms(t *testing.T) {
	a, _ := Pseudonymize("u-1")
	b, _ := Pseudonymize("u-2")

	assert.NotEqual(t, a, b)
}

func TestIsPseudonym(t *testing.T) {
	id, email := Pseudonymize("u-42")
	require.True(t, IsPseudonym(id))
	require.True(t, IsPseudonymEmail(email))

	assert.False(t, IsPseudonym("u-42"))
	assert.False(t, IsPseudonym("deleted_user_"))
	assert.False(t, IsPseudonym("deleted_user_XYZ12345"))
	assert.False(t, IsPseudonymEmail("someone@example.com"))
	assert.False(t, IsPseudonymEmail(id))
}
