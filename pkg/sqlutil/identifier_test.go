package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitise(t *testing.T) {
	cases := map[string]string{
		"Country Name":  "country_name",
		"Year (Fiscal)": "year_fiscal",
		"already_ok":    "already_ok",
		"Col#1%":        "col1",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitise(in), "input %q", in)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"country"`, QuoteIdent("country"))
	assert.Equal(t, `"weird""name"`, QuoteIdent(`weird"name`))
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'hello'", QuoteLiteral("hello"))
	assert.Equal(t, "'o''brien'", QuoteLiteral("o'brien"))
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, `"rev_1"."fact_table"`, QuoteQualified("rev_1", "fact_table"))
}
