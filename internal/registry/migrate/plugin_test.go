package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMigrator struct {
	name string
	runs *[]string
	err  error
}

func (m recordingMigrator) Name() string { return m.name }
func (m recordingMigrator) Migrate(context.Context) error {
	*m.runs = append(*m.runs, m.name)
	return m.err
}

func TestRunAllOrdersByOrder(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	var runs []string
	Register(Plugin{Order: 20, Migrator: recordingMigrator{name: "second", runs: &runs}})
	Register(Plugin{Order: 10, Migrator: recordingMigrator{name: "first", runs: &runs}})

	require.Equal(t, []string{"first", "second"}, Names())
	require.NoError(t, RunAll(context.Background()))
	require.Equal(t, []string{"first", "second"}, runs)
}

func TestRunAllStopsOnError(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	var runs []string
	Register(Plugin{Order: 1, Migrator: recordingMigrator{name: "broken", runs: &runs, err: errors.New("boom")}})
	Register(Plugin{Order: 2, Migrator: recordingMigrator{name: "never", runs: &runs}})

	err := RunAll(context.Background())
	require.ErrorContains(t, err, "migration broken failed: boom")
	require.Equal(t, []string{"broken"}, runs)
}
