package pcl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name string
		in   Cell
		want string
	}{
		{"empty", EmptyCell(), ""},
		{"integral float", NumberCell(4), "4"},
		{"integral float with fraction zero", NumberCell(4.0), "4"},
		{"fractional", NumberCell(4.1), "4.1"},
		{"fractional text keeps decimal", StringCell("4.10"), "4.1"},
		{"integral text", StringCell("4"), "4"},
		{"integral text with trailing zero", StringCell("4.0"), "4"},
		{"negative", NumberCell(-3), "-3"},
		{"negative zero", NumberCell(math.Copysign(0, -1)), "0"},
		{"leading zeros", StringCell("007"), "7"},
		{"padded text", StringCell("  Sched A  "), "Sched A"},
		{"inf text stays text", StringCell("inf"), "inf"},
		{"nan text stays text", StringCell("NaN"), "NaN"},
		{"hex stays text", StringCell("0x10"), "0x10"},
		{"large integral", NumberCell(1e15), "1000000000000000"},
		{"tiny fraction", NumberCell(0.25), "0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Token(tt.in))
		})
	}
}

func TestTokenIdempotent(t *testing.T) {
	inputs := []Cell{
		NumberCell(1), NumberCell(4.1), NumberCell(12.75), NumberCell(-2),
		StringCell("4.10"), StringCell(" 10 "), StringCell("A"), StringCell("1.50000"),
	}
	for _, in := range inputs {
		once := Token(in)
		assert.Equal(t, once, Token(StringCell(once)), "input %+v", in)
		assert.Equal(t, once, Token(ParseCell(once)), "input %+v", in)
	}
}

func TestParseCell(t *testing.T) {
	c := ParseCell("010")
	assert.Equal(t, KindNumber, c.Kind)
	assert.Equal(t, 10.0, c.Num)
	assert.Equal(t, "010", c.Text())

	assert.True(t, ParseCell("").IsEmpty())
	assert.Equal(t, KindString, ParseCell("General Hospital").Kind)
	assert.Equal(t, KindString, ParseCell("Infinity").Kind)
}

func TestCellFloat(t *testing.T) {
	f, ok := StringCell("$1,250.50").Float()
	assert.True(t, ok)
	assert.InDelta(t, 1250.5, f, 1e-9)

	_, ok = StringCell("n/a").Float()
	assert.False(t, ok)

	_, ok = EmptyCell().Float()
	assert.False(t, ok)

	f, ok = NumberCell(3).Float()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
}
