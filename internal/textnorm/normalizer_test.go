package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", NoDescription},
		{"whitespace", "   ", NoDescription},
		{"nan", "NaN", NoDescription},
		{"sentinel", NoDescription, NoDescription},
		{"stopwords only", "THE OF AND", NoDescription},
		{"digits stripped", "PAYROLL DEP 4421", "payroll dep"},
		{"short digits stripped", "ATM W/D 12", "atm"},
		{"long digit run", "ACH 123456789012345678901 CREDIT", "ach credit"},
		{"embedded id", "DEPOSIT ID8842213X", "deposit"},
		{"mixed digit group keeps letters", "POS AB123C GROCERY", "pos abc grocery"},
		{"payer with trailing id", "PAYROLL4421", "payroll"},
		{"nan left after stripping", "NAN 123", NoDescription},
		{"camel nan", "INan", NoDescription},
		{"nan with payer", "NAN PAYROLL", "nan payroll"},
		{"long mixed word", "XFER A1B2C3D4E5 SAVINGS", "xfer savings"},
		{"short mixed word kept", "7ELEVEN", "7eleven"},
		{"confirmation phrase", "ZELLE conf# 98765ABC PAYMENT", "zelle payment"},
		{"asterisks", "SQ *COFFEE*SHOP", "sq coffee shop"},
		{"state abbreviation", "WALMART STORE TX", "walmart store StateAbbr"},
		{"state only", "TX", NoDescription},
		{"camel case", "PayPalTransfer", "pay pal transfer"},
		{"acronym camel case", "ACMEPayroll", "acme payroll"},
		{"accents folded", "Café Münch", "cafe munch"},
		{"single characters dropped", "A B C GROCERY", "grocery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"PAYROLL DEP 4421",
		"ACMEPayroll Direct Dep CA 0001",
		"Zelle Transfer conf# XYZ123 from JOHN",
		"WALMART SUPERCENTER #1234 DALLAS TX",
		"SQ *COFFEE*SHOP 8891",
		"PayPal INST XFER 9988776655",
		"StateAbbr payroll",
		"NAN 123",
		"INan",
		"PAYROLL4421 DEP",
		"c123a STORE",
		"",
		"the",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_NumericVariantsCollapse(t *testing.T) {
	a := Normalize("PAYROLL DEP 4421")
	b := Normalize("PAYROLL DEP 7733")
	c := Normalize("PAYROLL DEP 99887766554")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestContentTokens(t *testing.T) {
	assert.Equal(t, []string{"payment", "acme"}, ContentTokens("payment to acme StateAbbr"))
	assert.Nil(t, ContentTokens(NoDescription))
	assert.True(t, IsStopword(StateToken))
	assert.False(t, IsStopword("payroll"))
}
