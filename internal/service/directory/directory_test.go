package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `
instruments:
  A: "005"
  B: "006"
  C: "007"
themes:
  - name: T
    keywords: [x]
    members: [A, B, C]
  - name: U
    members: [B, C]
  - name: Cold
    members: [C]
priority: [T, U]
`

func TestLookups(t *testing.T) {
	d, err := Parse([]byte(doc))
	require.NoError(t, err)

	code, ok := d.CodeByName("A")
	assert.True(t, ok)
	assert.Equal(t, "005", code)

	name, ok := d.NameByCode("006")
	assert.True(t, ok)
	assert.Equal(t, "B", name)

	_, ok = d.CodeByName("missing")
	assert.False(t, ok)
	_, ok = d.NameByCode("999")
	assert.False(t, ok)
}

func TestListThemeMembers(t *testing.T) {
	d, err := Parse([]byte(doc))
	require.NoError(t, err)

	got, ok := d.ListThemeMembers("T", 2)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, got)

	got, _ = d.ListThemeMembers("T", 0)
	assert.Equal(t, []string{"A", "B", "C"}, got)

	_, ok = d.ListThemeMembers("nope", 4)
	assert.False(t, ok)
}

func TestSubscriptionCodesDedupAndCap(t *testing.T) {
	d, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"005", "006", "007"}, d.SubscriptionCodes(4, 0))
	assert.Equal(t, []string{"005", "006"}, d.SubscriptionCodes(4, 2))
	assert.True(t, d.IsPriority("U"))
	assert.False(t, d.IsPriority("Cold"))
}

func TestThemeReturnsCopy(t *testing.T) {
	d, err := Parse([]byte(doc))
	require.NoError(t, err)

	th, _ := d.Theme("T")
	th.Members[0] = "mutated"
	again, _ := d.ListThemeMembers("T", 1)
	assert.Equal(t, []string{"A"}, again)
}

func TestParseRejectsBrokenTables(t *testing.T) {
	_, err := Parse([]byte("instruments: {A: '1'}\nthemes: [{name: T, members: [Z]}]\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("instruments: {A: '1'}\nthemes: [{name: T, members: [A]}]\npriority: [X]\n"))
	assert.Error(t, err)
}

func TestEmbeddedTableLoads(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, d.PriorityThemes())
	codes := d.SubscriptionCodes(4, 40)
	assert.LessOrEqual(t, len(codes), 40)
	assert.NotEmpty(t, codes)
}
