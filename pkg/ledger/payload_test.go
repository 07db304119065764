package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{
		``,
		`hello world`,
		`{"operation": "CREATE"`,
		`[1, 2, 3]`,
		`"CREATE"`,
		`42`,
		`null`,
	} {
		_, err := DecodePayload([]byte(raw))
		assert.ErrorIs(t, err, ErrUndecodable, "payload %q", raw)
	}
}

func TestValueKinds(t *testing.T) {
	p, err := DecodePayload([]byte(`{"s":"x","n":1,"b":true,"z":null,"o":{},"a":[]}`))
	require.NoError(t, err)

	assert.Equal(t, KindString, p.Field("s").Kind())
	assert.Equal(t, KindNumber, p.Field("n").Kind())
	assert.Equal(t, KindBool, p.Field("b").Kind())
	assert.Equal(t, KindNull, p.Field("z").Kind())
	assert.Equal(t, KindObject, p.Field("o").Kind())
	assert.Equal(t, KindArray, p.Field("a").Kind())
	assert.Equal(t, KindAbsent, p.Field("missing").Kind())
	assert.False(t, p.Field("missing").Present())
	assert.True(t, p.Field("z").Present())
}

func TestValueString(t *testing.T) {
	p, err := DecodePayload([]byte(`{"name":"GOLD","supply":1000,"escaped":"a\"b"}`))
	require.NoError(t, err)

	s, ok := p.Field("name").String()
	assert.True(t, ok)
	assert.Equal(t, "GOLD", s)

	s, ok = p.Field("escaped").String()
	assert.True(t, ok)
	assert.Equal(t, `a"b`, s)

	_, ok = p.Field("supply").String()
	assert.False(t, ok)
	_, ok = p.Field("nope").String()
	assert.False(t, ok)
}

func TestValueInteger(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: `0`, want: "0", ok: true},
		{raw: `1000`, want: "1000", ok: true},
		{raw: `-7`, want: "-7", ok: true},
		{raw: `115792089237316195423570985008687907853269984665640564039457584007913129639936`, want: "115792089237316195423570985008687907853269984665640564039457584007913129639936", ok: true},
		{raw: `1.5`, ok: false},
		{raw: `1e3`, ok: false},
		{raw: `1E3`, ok: false},
		{raw: `"1000"`, ok: false},
		{raw: `true`, ok: false},
		{raw: `null`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := DecodePayload([]byte(`{"v":` + tt.raw + `}`))
			require.NoError(t, err)
			n, ok := p.Field("v").Integer()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, n.String())
			}
		})
	}
}

func TestFieldFirstOccurrenceWins(t *testing.T) {
	p, err := DecodePayload([]byte(`{"name":"first","name":"second"}`))
	require.NoError(t, err)
	s, ok := p.Field("name").String()
	require.True(t, ok)
	assert.Equal(t, "first", s)
}

func TestFieldIgnoresPathSyntax(t *testing.T) {
	p, err := DecodePayload([]byte(`{"a":{"b":1},"a.b":"literal"}`))
	require.NoError(t, err)
	s, ok := p.Field("a.b").String()
	require.True(t, ok)
	assert.Equal(t, "literal", s)
	assert.Equal(t, KindAbsent, p.Field("a*").Kind())
}
