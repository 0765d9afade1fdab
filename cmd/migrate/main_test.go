package main

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigrations "github.com/medpulse/medpulse-connect/migrations"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		args []string
		want command
	}{
		{nil, command{name: "up"}},
		{[]string{"up"}, command{name: "up"}},
		{[]string{"down"}, command{name: "down", version: 1}},
		{[]string{"down", "3"}, command{name: "down", version: 3}},
		{[]string{"force", "4"}, command{name: "force", version: 4}},
		{[]string{"version"}, command{name: "version"}},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range [][]string{{"force"}, {"force", "x"}, {"down", "0"}, {"sideways"}} {
		_, err := parseCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(appmigrations.FS, ".")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}
