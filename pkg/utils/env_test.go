package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	t.Setenv("POSTER_TEST_STR", "value")
	assert.Equal(t, "value", Env("POSTER_TEST_STR", "def"))
	assert.Equal(t, "def", Env("POSTER_TEST_UNSET", "def"))
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "valid", raw: "42", want: 42},
		{name: "zero", raw: "0", want: 0},
		{name: "negative falls back", raw: "-3", want: 7},
		{name: "garbage falls back", raw: "abc", want: 7},
		{name: "empty falls back", raw: "", want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POSTER_TEST_INT", tt.raw)
			assert.Equal(t, tt.want, EnvInt("POSTER_TEST_INT", 7))
		})
	}
}

func TestEnvInt64(t *testing.T) {
	t.Setenv("POSTER_TEST_INT64", "10000")
	assert.Equal(t, int64(10000), EnvInt64("POSTER_TEST_INT64", 1))

	t.Setenv("POSTER_TEST_INT64", "nope")
	assert.Equal(t, int64(1), EnvInt64("POSTER_TEST_INT64", 1))
}
