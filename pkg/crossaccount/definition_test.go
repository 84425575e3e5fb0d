package crossaccount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefinition(t *testing.T) {
	t.Run("accounts_with_numeric_ids", func(t *testing.T) {
		def, err := ParseDefinition([]byte(`
accounts:
  - 111111111111:
      email: ops@example.com
  - 222222222222:
      email: finance@example.com
      accountgroup: finance
`))
		require.NoError(t, err)
		require.Len(t, def.Accounts, 2)
		assert.Equal(t, "ops@example.com", def.Accounts["111111111111"].Email)
		assert.Equal(t, "", def.Accounts["111111111111"].AccountGroup)
		assert.Equal(t, "finance", def.Accounts["222222222222"].AccountGroup)
		assert.Empty(t, def.Roles)
	})

	t.Run("roles", func(t *testing.T) {
		def, err := ParseDefinition([]byte(`
roles:
  - finance:
      action: ADD
      policy: finance.json
      accountgroup: finance
  - audit:
      action: REMOVE
      policy: audit.json
`))
		require.NoError(t, err)
		require.Len(t, def.Roles, 2)
		assert.Equal(t, "ADD", def.Roles["finance"].Action)
		assert.Equal(t, "finance.json", def.Roles["finance"].Policy)
		assert.Equal(t, "REMOVE", def.Roles["audit"].Action)
		assert.Equal(t, "", def.Roles["audit"].AccountGroup)
	})

	t.Run("multiple_entries_per_element", func(t *testing.T) {
		def, err := ParseDefinition([]byte(`
accounts:
  - 111111111111:
      email: a@example.com
    222222222222:
      email: b@example.com
`))
		require.NoError(t, err)
		assert.Len(t, def.Accounts, 2)
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		_, err := ParseDefinition([]byte("accounts: [:::"))
		require.Error(t, err)
		assert.True(t, IsCategory(err, ErrCategoryValidation))
	})
}

func TestParseAction(t *testing.T) {
	t.Run("normalizes_case", func(t *testing.T) {
		a, err := ParseAction("add")
		require.NoError(t, err)
		assert.Equal(t, ActionAdd, a)
	})

	t.Run("rejects_unknown", func(t *testing.T) {
		_, err := ParseAction("UPSERT")
		require.Error(t, err)
		assert.True(t, IsCategory(err, ErrCategoryValidation))
	})
}

func TestParsePolicyRef(t *testing.T) {
	ref, err := ParsePolicyRef("cam-config:finance.json")
	require.NoError(t, err)
	assert.Equal(t, PolicyRef{Bucket: "cam-config", Key: "finance.json"}, ref)
	assert.Equal(t, "cam-config:finance.json", ref.String())

	_, err = ParsePolicyRef("no-separator")
	assert.Error(t, err)
}
