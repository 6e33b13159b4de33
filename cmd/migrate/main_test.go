package main

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigrations "github.com/wolfman30/medspa-sms-triage/migrations"
)

type fakeMigrator struct {
	upErr  error
	forced int
	calls  []string
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return nil
}

func TestRunCommands(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	msg, err := run(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "migrations complete", msg)

	msg, err = run(m, []string{"force", "2"})
	require.NoError(t, err)
	assert.Equal(t, "forced version to 2", msg)
	assert.Equal(t, 2, m.forced)

	_, err = run(m, []string{"down"})
	require.NoError(t, err)
	assert.Equal(t, []string{"up", "force", "down"}, m.calls)

	_, err = run(m, []string{"force", "x"})
	assert.ErrorContains(t, err, "invalid version")
	_, err = run(m, []string{"force"})
	assert.Error(t, err)
	_, err = run(m, []string{"sideways"})
	assert.ErrorContains(t, err, "unknown command")

	_, err = run(&fakeMigrator{upErr: errors.New("dirty")}, nil)
	assert.ErrorContains(t, err, "migrate up: dirty")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
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
