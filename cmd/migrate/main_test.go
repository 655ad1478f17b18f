package main

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigrations "github.com/MarkKevinCanonoy/Web-Project/migrations"
)

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand(nil)
	require.NoError(t, err)
	assert.Equal(t, command{name: "up"}, cmd)

	cmd, err = parseCommand([]string{"down"})
	require.NoError(t, err)
	assert.Equal(t, "down", cmd.name)

	cmd, err = parseCommand([]string{"force", "2"})
	require.NoError(t, err)
	assert.Equal(t, command{name: "force", version: 2}, cmd)

	for _, args := range [][]string{{"force"}, {"force", "two"}, {"sideways"}} {
		_, err := parseCommand(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(appmigrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(appmigrations.FS, "*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestRunRejectsUnreachableDatabase(t *testing.T) {
	err := run("postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", command{name: "up"})
	assert.Error(t, err)
}
