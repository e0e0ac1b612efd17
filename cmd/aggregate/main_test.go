package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUseCache(t *testing.T) {
	tests := []struct {
		args    []string
		want    bool
		wantErr bool
	}{
		{nil, false, false},
		{[]string{"use-cache"}, true, false},
		{[]string{"true"}, true, false},
		{[]string{"1"}, true, false},
		{[]string{"false"}, false, false},
		{[]string{"maybe"}, false, true},
		{[]string{"true", "extra"}, false, true},
	}
	for _, tt := range tests {
		got, err := parseUseCache(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.args)
			continue
		}
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.want, got, "%v", tt.args)
	}
}

func TestNetworkList(t *testing.T) {
	var n networkList
	require.NoError(t, n.Set("a, b"))
	require.NoError(t, n.Set("c"))
	assert.Equal(t, networkList{"a", "b", "c"}, n)
	assert.Equal(t, "a,b,c", n.String())
}

func TestParseArgs(t *testing.T) {
	t.Setenv("CONFIG", "")

	tests := []struct {
		name     string
		args     []string
		config   string
		networks networkList
		useCache bool
		wantErr  bool
	}{
		{name: "defaults", args: nil, config: "config.yaml"},
		{name: "positional first", args: []string{"use-cache", "-config", "x.yaml"}, config: "x.yaml", useCache: true},
		{name: "positional last", args: []string{"-config", "x.yaml", "-network", "a,b", "true"}, config: "x.yaml", networks: networkList{"a", "b"}, useCache: true},
		{name: "flags only", args: []string{"-network", "all"}, config: "config.yaml", networks: networkList{"all"}},
		{name: "two positionals", args: []string{"use-cache", "-config", "x.yaml", "true"}, wantErr: true},
		{name: "flag after trailing positional", args: []string{"-config", "x.yaml", "true", "-network", "a"}, wantErr: true},
		{name: "invalid positional", args: []string{"maybe"}, wantErr: true},
		{name: "unknown flag", args: []string{"use-cache", "-bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config, opts.configPath)
			assert.Equal(t, tt.networks, opts.networks)
			assert.Equal(t, tt.useCache, opts.useCache)
		})
	}
}

func TestParseArgs_ConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG", "env.yaml")

	opts, err := parseArgs([]string{"use-cache"})
	require.NoError(t, err)
	assert.Equal(t, "env.yaml", opts.configPath)
	assert.True(t, opts.useCache)
}
