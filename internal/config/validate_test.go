package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/doclocker"
	cfg.Roots = []Root{{Key: "A", ID: "rootA"}}

	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size too large", func(c *Config) { c.PageSize = 5000 }, "PageSize"},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }, "MaxDepth"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"bad weekday", func(c *Config) { c.ScheduleWeekday = "someday" }, "weekday"},
		{"bad time", func(c *Config) { c.ScheduleTime = "25:00" }, "hour"},
		{"no roots", func(c *Config) { c.Roots = nil }, "Roots"},
		{"root without id", func(c *Config) { c.Roots = []Root{{Key: "A"}} }, "roots[0]"},
		{"duplicate key", func(c *Config) {
			c.Roots = []Root{{Key: "A", ID: "1"}, {Key: "A", ID: "2"}}
		}, "duplicate key"},
		{"duplicate id", func(c *Config) {
			c.Roots = []Root{{Key: "A", ID: "1"}, {Key: "B", ID: "1"}}
		}, "duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	d, err := ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	d, err = ParseWeekday("wed")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, d)

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	h, m, err := ParseClock("02:00")
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 0, m)

	for _, bad := range []string{"2", "24:00", "12:60", "aa:bb"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestLevenshtein_ClosestMatch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("page_sise", "page_size"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, "log_level", closestMatch("log_lvel", knownGlobalKeysList))
	assert.Empty(t, closestMatch("completely_unrelated", knownGlobalKeysList))
}
