package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSQL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain query",
			in:   "SELECT count() FROM private_swaps",
			want: "SELECT count() FROM private_swaps",
		},
		{
			name: "fenced with language tag",
			in:   "```sql\nSELECT count() FROM private_swaps\n```",
			want: "SELECT count() FROM private_swaps",
		},
		{
			name: "trailing semicolon",
			in:   "SELECT count() FROM private_swaps;",
			want: "SELECT count() FROM private_swaps",
		},
		{
			name: "fence and semicolon",
			in:   "```\nSELECT sum(volume_usd) FROM private_swaps;\n```",
			want: "SELECT sum(volume_usd) FROM private_swaps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeSQL(tt.in))
		})
	}
}

func TestValidateSQL(t *testing.T) {
	valid := []string{
		"SELECT count() FROM private_swaps",
		"SELECT wallet, sum(volume_usd) FROM circuitx.private_swaps GROUP BY wallet ORDER BY 2 DESC LIMIT 10",
	}
	for _, q := range valid {
		assert.NoError(t, validateSQL(q), q)
	}

	invalid := []string{
		"",
		"DROP TABLE private_swaps",
		"SELECT 1; SELECT 2",
		"INSERT INTO private_swaps VALUES (1)",
		"SELECT count() FROM other_table",
		"SELECT count() FROM private_swaps; DROP TABLE private_swaps",
	}
	for _, q := range invalid {
		assert.Error(t, validateSQL(q), q)
	}
}
