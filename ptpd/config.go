// Package ptpd wires the core ptp engine into a runnable process: config
// loading, the supervisor poll loop across every registered port, and an
// RPC status endpoint. Grounded on LeJamon-goXRPLd's viper-based
// LoadConfig for the config layer and on pkg/ntp/config.go
// for the domain vocabulary (per-interface sections, driftfile-style
// knobs), and on pkg/ntpal/ntpal.go's setupServer goroutine plus
// internal/rpc/rpc.go for the supervisor/RPC layer.
package ptpd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/AndrewLester/ptpal/ptp"
)

// Config is the fully resolved ptp4l.conf-style configuration: one
// [global] section plus one section per named network interface.
type Config struct {
	ClockIdentity string `mapstructure:"clock_identity"`
	DomainNumber  uint8  `mapstructure:"domain_number"`
	RPCSocket     string `mapstructure:"rpc_socket"`

	Ports map[string]PortConfig `mapstructure:"-"`
}

// PortConfig is the subset of protocol interval knobs an
// operator can override per interface. Load fills these in, but ptp.Open
// takes no interval arguments, so ports opened by the daemon run with
// package ptp's default intervals.
type PortConfig struct {
	LogAnnounceInterval    int8               `mapstructure:"log_announce_interval"`
	AnnounceReceiptTimeout uint8              `mapstructure:"announce_receipt_timeout"`
	LogSyncInterval        int8               `mapstructure:"log_sync_interval"`
	LogMinDelayReqInterval int8               `mapstructure:"log_min_delay_req_interval"`
	DelayMechanism         ptp.DelayMechanism `mapstructure:"-"`
	Timestamping           ptp.TimestampMode  `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.domain_number", 0)
	v.SetDefault("rpc_socket", "/var/run/ptpal.sock")
	v.SetDefault("global.log_announce_interval", ptp.DefaultLogAnnounceInterval)
	v.SetDefault("global.announce_receipt_timeout", ptp.DefaultAnnounceReceiptTimeout)
	v.SetDefault("global.log_sync_interval", ptp.DefaultLogSyncInterval)
	v.SetDefault("global.log_min_delay_req_interval", ptp.DefaultLogMinDelayReqInterval)
}

// Load reads a ptp4l.conf-style file: a [global] section of defaults and
// one section per interface name, each inheriting [global]'s values
// unless overridden, then layers PTPAL_-prefixed environment variables on
// top, mirroring goXRPLd's defaults -> file -> env priority order.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ptp4l.conf uses INI syntax ([global]/[interfaces.X] sections) but
	// conventionally carries a .conf extension, which viper can't infer a
	// format from, so the type has to be named explicitly.
	v.SetConfigType("ini")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("ptpd: read config %s: %w", path, err)
	}

	v.SetEnvPrefix("PTPAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{Ports: make(map[string]PortConfig)}
	cfg.ClockIdentity = v.GetString("clock_identity")
	cfg.DomainNumber = uint8(v.GetInt("global.domain_number"))
	cfg.RPCSocket = v.GetString("rpc_socket")

	global := PortConfig{
		LogAnnounceInterval:    int8(v.GetInt("global.log_announce_interval")),
		AnnounceReceiptTimeout: uint8(v.GetInt("global.announce_receipt_timeout")),
		LogSyncInterval:        int8(v.GetInt("global.log_sync_interval")),
		LogMinDelayReqInterval: int8(v.GetInt("global.log_min_delay_req_interval")),
	}

	for name := range v.GetStringMap("interfaces") {
		key := "interfaces." + name + "."
		pc := global
		if v.IsSet(key + "log_announce_interval") {
			pc.LogAnnounceInterval = int8(v.GetInt(key + "log_announce_interval"))
		}
		if v.IsSet(key + "announce_receipt_timeout") {
			pc.AnnounceReceiptTimeout = uint8(v.GetInt(key + "announce_receipt_timeout"))
		}
		if v.IsSet(key + "log_sync_interval") {
			pc.LogSyncInterval = int8(v.GetInt(key + "log_sync_interval"))
		}
		if v.IsSet(key + "log_min_delay_req_interval") {
			pc.LogMinDelayReqInterval = int8(v.GetInt(key + "log_min_delay_req_interval"))
		}
		cfg.Ports[name] = pc
	}

	if len(cfg.Ports) == 0 {
		return nil, fmt.Errorf("ptpd: config %s declares no [interfaces.*] sections", path)
	}

	return cfg, nil
}
