package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MaintenanceConfig tunes the posts scan job.
type MaintenanceConfig struct {
	BatchSize        int           `mapstructure:"batchSize" validate:"gt=0,lte=500"`
	DefaultPostTypes []string      `mapstructure:"defaultPostTypes" validate:"dive,required"`
	PostStatus       string        `mapstructure:"postStatus" validate:"required"`
	MarkerKey        string        `mapstructure:"markerKey" validate:"required"`
	LockTTL          time.Duration `mapstructure:"lockTTL" validate:"gt=0"`
}

func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		BatchSize:        20,
		DefaultPostTypes: []string{"post", "page"},
		PostStatus:       "publish",
		MarkerKey:        "wpmudev_test_last_scan",
		LockTTL:          2 * time.Minute,
	}
}

type MaintenanceConfigHolder struct {
	current atomic.Value // holds MaintenanceConfig
}

// NewStaticMaintenanceConfigHolder wraps a fixed config without file watching.
func NewStaticMaintenanceConfigHolder(cfg MaintenanceConfig) *MaintenanceConfigHolder {
	holder := &MaintenanceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMaintenanceConfigHolder(log *zap.Logger) (*MaintenanceConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.maintenance")

	v := viper.New()

	v.SetConfigName("maintenance")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/drivebridge/config")
	v.AddConfigPath("/etc/drivebridge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DRIVEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMaintenanceConfig()
	v.SetDefault("maintenance.batchSize", defaults.BatchSize)
	v.SetDefault("maintenance.defaultPostTypes", defaults.DefaultPostTypes)
	v.SetDefault("maintenance.postStatus", defaults.PostStatus)
	v.SetDefault("maintenance.markerKey", defaults.MarkerKey)
	v.SetDefault("maintenance.lockTTL", defaults.LockTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg MaintenanceConfig
	if err := v.UnmarshalKey("maintenance", &cfg); err != nil {
		return nil, err
	}
	if err := validateMaintenanceConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticMaintenanceConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MaintenanceConfig
		if err := v.UnmarshalKey("maintenance", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateMaintenanceConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *MaintenanceConfigHolder) Get() MaintenanceConfig {
	return h.current.Load().(MaintenanceConfig)
}

var maintenanceValidator = validator.New()

func validateMaintenanceConfig(cfg MaintenanceConfig) error {
	cfg.PostStatus = strings.TrimSpace(cfg.PostStatus)
	cfg.MarkerKey = strings.TrimSpace(cfg.MarkerKey)
	postTypes := make([]string, len(cfg.DefaultPostTypes))
	for i, postType := range cfg.DefaultPostTypes {
		postTypes[i] = strings.TrimSpace(postType)
	}
	cfg.DefaultPostTypes = postTypes

	err := maintenanceValidator.Struct(cfg)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return fmt.Errorf("maintenance.%s failed %q check", lowerFirst(fe.StructField()), fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
