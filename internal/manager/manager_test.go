package manager

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/daqlog/internal/config"
	"github.com/shiwa/daqlog/internal/datafile"
	"github.com/shiwa/daqlog/internal/shutdown"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		StateFile: filepath.Join(dir, "logger_state.txt"),
		Instruments: []config.Instrument{
			{Name: "G2401", Enabled: true, OutputDir: filepath.Join(dir, "G2401"), Header: "Name,Time,CO2"},
			{Name: "TEI49i", Enabled: false, OutputDir: filepath.Join(dir, "TEI49i")},
			{Name: "Vaisala", Enabled: true, OutputDir: filepath.Join(dir, "Vaisala")},
		},
	}
}

func TestInstruments(t *testing.T) {
	m := New(testConfig(t))
	assert.Equal(t, []string{"G2401", "Vaisala"}, m.Instruments())
}

func TestLastDataLine(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.Instruments[0].OutputDir
	require.NoError(t, os.MkdirAll(dir, 0o755))

	older := datafile.Name(dir, "G2401", time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC))
	newer := datafile.Name(dir, "G2401", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, os.WriteFile(older, []byte("Name,Time,CO2\nG2401,2025-01-14 23:59:59,409\n"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("Name,Time,CO2\nG2401,2025-01-15 00:00:01,410\nG2401,2025-01-15 00:00:02,411\n"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := New(cfg).LastDataLine("G2401")
	require.NoError(t, err)
	assert.Equal(t, newer, got.File)
	assert.Equal(t, "Name,Time,CO2", got.Header)
	assert.Equal(t, "G2401,2025-01-15 00:00:02,411", got.Line)
	assert.Contains(t, got.String(), "Name,Time,CO2\nG2401,2025-01-15 00:00:02,411")
}

func TestLastDataLine_Errors(t *testing.T) {
	m := New(testConfig(t))
	_, err := m.LastDataLine("nope")
	assert.Error(t, err)
	_, err = m.LastDataLine("Vaisala")
	assert.Error(t, err, "каталога данных ещё нет")
}

func TestStartQuit(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	var slept int
	m.sleep = func(context.Context, time.Duration) error {
		slept++
		return nil
	}

	require.NoError(t, m.Start())
	stop, err := shutdown.NewMonitor(cfg.StateFile).ShouldStop()
	require.NoError(t, err)
	assert.False(t, stop)

	var out bytes.Buffer
	require.NoError(t, m.Quit(context.Background(), &out))
	stop, err = shutdown.NewMonitor(cfg.StateFile).ShouldStop()
	require.NoError(t, err)
	assert.True(t, stop)
	assert.Equal(t, 60, slept)
	assert.Contains(t, out.String(), "Logging terminated")
}

func TestQuit_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := m.Quit(ctx, &out)
	assert.ErrorIs(t, err, context.Canceled)
	// директива уже записана, отмена прерывает только отсчёт
	stop, _ := shutdown.NewMonitor(cfg.StateFile).ShouldStop()
	assert.True(t, stop)
}
