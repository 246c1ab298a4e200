package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thereceipt/printbridge/internal/renderer"
	"go.uber.org/zap"
)

// LayoutHolder serves the current receipt layout and reloads it when receipt.yml changes
type LayoutHolder struct {
	current atomic.Value // holds renderer.Layout
}

// NewStaticLayout returns a holder that never reloads
func NewStaticLayout(layout renderer.Layout) *LayoutHolder {
	h := &LayoutHolder{}
	h.current.Store(layout)
	return h
}

// NewLayoutHolder reads the "receipt" section of receipt.yml. file overrides the search path.
// A missing file means the default layout.
func NewLayoutHolder(file string, log *zap.Logger) (*LayoutHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("receipt")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/printbridge")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RECEIPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := renderer.DefaultLayout()
	v.SetDefault("receipt.currencySymbol", defaults.CurrencySymbol)
	v.SetDefault("receipt.thankYou", defaults.ThankYou)
	v.SetDefault("receipt.dateLayout", defaults.DateLayout)
	v.SetDefault("receipt.qrCellSize", defaults.QRCellSize)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg, err := decodeLayout(v)
	if err != nil {
		return nil, err
	}

	holder := &LayoutHolder{}
	holder.current.Store(cfg)

	if found {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeLayout(v)
			if err != nil {
				log.Warn("Receipt layout reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("Receipt layout reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
		log.Info("Receipt layout loaded", zap.String("file", v.ConfigFileUsed()))
	}

	return holder, nil
}

// Layout returns the current layout
func (h *LayoutHolder) Layout() renderer.Layout {
	return h.current.Load().(renderer.Layout)
}

func decodeLayout(v *viper.Viper) (renderer.Layout, error) {
	// Get applies defaults per key; UnmarshalKey would not for a partial section
	cfg := renderer.Layout{
		CurrencySymbol: v.GetString("receipt.currencySymbol"),
		ThankYou:       v.GetString("receipt.thankYou"),
		DateLayout:     v.GetString("receipt.dateLayout"),
		QRCellSize:     v.GetInt("receipt.qrCellSize"),
	}
	if err := validateLayout(cfg); err != nil {
		return renderer.Layout{}, err
	}
	return cfg, nil
}

func validateLayout(cfg renderer.Layout) error {
	if cfg.QRCellSize < 1 || cfg.QRCellSize > 16 {
		return errors.New("receipt.qrCellSize must be between 1 and 16")
	}
	if strings.TrimSpace(cfg.DateLayout) == "" {
		return errors.New("receipt.dateLayout cannot be empty")
	}
	return nil
}
