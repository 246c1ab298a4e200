package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/printbridge/internal/renderer"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PRINTER_CONNECT_TIMEOUT", "")
	t.Setenv("DATABASE_TYPE", "")

	cfg := Load()
	assert.Equal(t, "12212", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 5*time.Second, cfg.PrinterConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.PrinterProbeTimeout)
	assert.Equal(t, 10*time.Second, cfg.PrinterWriteTimeout)
	assert.Equal(t, 200, cfg.JobHistorySize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("PRINTER_CONNECT_TIMEOUT", "1500")
	t.Setenv("PRINTER_WRITE_TIMEOUT", "3s")
	t.Setenv("JOB_HISTORY_SIZE", "nope")
	t.Setenv("DATABASE_TYPE", "Postgres")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 1500*time.Millisecond, cfg.PrinterConnectTimeout)
	assert.Equal(t, 3*time.Second, cfg.PrinterWriteTimeout)
	assert.Equal(t, 200, cfg.JobHistorySize)
	assert.Equal(t, "postgres", cfg.DBType)
}

func TestLayoutHolder_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	h, err := NewLayoutHolder("", nil)
	require.NoError(t, err)
	assert.Equal(t, renderer.DefaultLayout(), h.Layout())
}

func TestLayoutHolder_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yml")
	require.NoError(t, os.WriteFile(path, []byte("receipt:\n  currencySymbol: \"€\"\n  qrCellSize: 4\n"), 0o644))

	h, err := NewLayoutHolder(path, nil)
	require.NoError(t, err)

	layout := h.Layout()
	assert.Equal(t, "€", layout.CurrencySymbol)
	assert.Equal(t, 4, layout.QRCellSize)
	assert.Equal(t, renderer.DefaultLayout().ThankYou, layout.ThankYou)
}

func TestLayoutHolder_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yml")
	require.NoError(t, os.WriteFile(path, []byte("receipt:\n  currencySymbol: \"£\"\n"), 0o644))

	h, err := NewLayoutHolder(path, nil)
	require.NoError(t, err)

	want := renderer.DefaultLayout()
	want.CurrencySymbol = "£"
	assert.Equal(t, want, h.Layout())
}

func TestLayoutHolder_ReloadsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yml")
	require.NoError(t, os.WriteFile(path, []byte("receipt:\n  qrCellSize: 5\n"), 0o644))

	h, err := NewLayoutHolder(path, nil)
	require.NoError(t, err)
	require.Equal(t, 5, h.Layout().QRCellSize)

	require.NoError(t, os.WriteFile(path, []byte("receipt:\n  thankYou: \"See you soon\"\n"), 0o644))

	assert.Eventually(t, func() bool {
		return h.Layout().ThankYou == "See you soon"
	}, 5*time.Second, 20*time.Millisecond)

	layout := h.Layout()
	assert.Equal(t, renderer.DefaultLayout().DateLayout, layout.DateLayout)
	assert.Equal(t, renderer.DefaultLayout().QRCellSize, layout.QRCellSize)
}

func TestLayoutHolder_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yml")
	require.NoError(t, os.WriteFile(path, []byte("receipt:\n  qrCellSize: 40\n"), 0o644))

	_, err := NewLayoutHolder(path, nil)
	assert.Error(t, err)
}

func TestStaticLayout(t *testing.T) {
	l := renderer.DefaultLayout()
	l.CurrencySymbol = "£"
	assert.Equal(t, "£", NewStaticLayout(l).Layout().CurrencySymbol)
}
