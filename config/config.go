package config

import (
	"time"

	"github.com/kasuganosora/mvabs/game/aggro"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	ABS      ABSConfig      `mapstructure:"abs"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

// DataConfig points at the skill/state/unit attribute tables.
type DataConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"` // reload tables when they change on disk
}

type DatabaseConfig struct {
	Mode        string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath  string        `mapstructure:"sqlite_path"`
	MySQLDSN    string        `mapstructure:"mysql_dsn"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLife     time.Duration `mapstructure:"max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// ABSConfig tunes the combat AI core.
type ABSConfig struct {
	FrameMs int          `mapstructure:"frame_ms"`
	Party   string       `mapstructure:"party"` // ledger key rewards are credited to
	Aggro   aggro.Config `mapstructure:"aggro"`
	AI      AIConfig     `mapstructure:"ai"`
	Engage  EngageConfig `mapstructure:"engage"`
	Move    MoveConfig   `mapstructure:"movement"`
}

type AIConfig struct {
	DefaultMode       string  `mapstructure:"default_mode"`
	HealThreshold     float64 `mapstructure:"heal_threshold"`
	BuffRefreshFrames int     `mapstructure:"buff_refresh_frames"`
	IdleWait          int     `mapstructure:"idle_wait"`
	DoNothingWait     int     `mapstructure:"do_nothing_wait"`
	MinCastWait       int     `mapstructure:"min_cast_wait"`
	// MemoryPersistence is session | durable | none.
	MemoryPersistence   string        `mapstructure:"memory_persistence"`
	MemoryTTL           time.Duration `mapstructure:"memory_ttl"`
	MemoryFlushInterval time.Duration `mapstructure:"memory_flush_interval"`
}

type EngageConfig struct {
	PrimaryHitFrames int     `mapstructure:"primary_hit_frames"`
	LeashRadius      float64 `mapstructure:"leash_radius"`
	RecoverRadius    float64 `mapstructure:"recover_radius"`
}

type MoveConfig struct {
	CloseRatio     float64 `mapstructure:"close_ratio"`
	HostileSpacing float64 `mapstructure:"hostile_spacing"`
	AllySpacing    float64 `mapstructure:"ally_spacing"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AdminNetworks restricts the command surface to these CIDRs or addresses.
	// Empty allows every client that presents the admin key.
	AdminNetworks []string `mapstructure:"admin_networks"`
	// AllowedOrigins lists the origins allowed to open the telegraph stream.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("data.path", "./data")
	v.SetDefault("data.watch", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/abs.db")
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)

	v.SetDefault("abs.frame_ms", 16)
	v.SetDefault("abs.party", "default")
	aggroDefaults := aggro.DefaultConfig()
	v.SetDefault("abs.aggro.base", aggroDefaults.Base)
	v.SetDefault("abs.aggro.hp_coef", aggroDefaults.HPCoef)
	v.SetDefault("abs.aggro.mp_coef", aggroDefaults.MPCoef)
	v.SetDefault("abs.aggro.tp_coef", aggroDefaults.TPCoef)
	v.SetDefault("abs.aggro.drain_bonus", aggroDefaults.DrainBonus)
	v.SetDefault("abs.aggro.parry_defender", aggroDefaults.ParryDefender)
	v.SetDefault("abs.aggro.parry_attacker", aggroDefaults.ParryAttacker)
	v.SetDefault("abs.aggro.player_rate", aggroDefaults.PlayerRate)
	v.SetDefault("abs.ai.default_mode", "variety")
	v.SetDefault("abs.ai.heal_threshold", 0.6)
	v.SetDefault("abs.ai.buff_refresh_frames", 60)
	v.SetDefault("abs.ai.idle_wait", 15)
	v.SetDefault("abs.ai.do_nothing_wait", 30)
	v.SetDefault("abs.ai.min_cast_wait", 1)
	v.SetDefault("abs.ai.memory_persistence", "session")
	v.SetDefault("abs.ai.memory_ttl", "6h")
	v.SetDefault("abs.ai.memory_flush_interval", "1m")
	v.SetDefault("abs.engage.primary_hit_frames", 60)
	v.SetDefault("abs.engage.leash_radius", 10)
	v.SetDefault("abs.engage.recover_radius", 3)
	v.SetDefault("abs.movement.close_ratio", 0.5)
	v.SetDefault("abs.movement.hostile_spacing", 1)
	v.SetDefault("abs.movement.ally_spacing", 2)

	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
}
