// Package config 读取 JSON 配置文件与 SKYFRONT_ 前缀的环境变量，生成服务端与客户端参数。
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"skyfront/client"
	"skyfront/server"
)

// EnvPrefix 环境变量前缀，例如 SKYFRONT_SERVER_ADDR
const EnvPrefix = "SKYFRONT"

type ServerSection struct {
	Addr          string        `mapstructure:"addr"`
	MaxPeers      int           `mapstructure:"maxPeers"`
	ClientTimeout time.Duration `mapstructure:"clientTimeout"`
	WorldHeight   float32       `mapstructure:"worldHeight"`
	ScrollSpeed   float32       `mapstructure:"scrollSpeed"`
	TickRate      int           `mapstructure:"tickRate"`
	SpawnMinDelay time.Duration `mapstructure:"spawnMinDelay"`
	SpawnMaxDelay time.Duration `mapstructure:"spawnMaxDelay"`
	PickupChance  int           `mapstructure:"pickupChance"`
	InboundRate   float64       `mapstructure:"inboundRate"`
}

type ClientSection struct {
	// AddressFile 存放服务器地址的文本文件
	AddressFile  string        `mapstructure:"addressFile"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ConnectWait  time.Duration `mapstructure:"connectWait"`
	PositionRate float64       `mapstructure:"positionRate"`
}

type LogSection struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type AdminSection struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config 全部配置
type Config struct {
	Server ServerSection `mapstructure:"server"`
	Client ClientSection `mapstructure:"client"`
	Log    LogSection    `mapstructure:"log"`
	Admin  AdminSection  `mapstructure:"admin"`
}

func setDefaults(v *viper.Viper) {
	sd := server.DefaultConfig()
	v.SetDefault("server.addr", sd.Addr)
	v.SetDefault("server.maxPeers", sd.MaxPeers)
	v.SetDefault("server.clientTimeout", sd.ClientTimeout)
	v.SetDefault("server.worldHeight", sd.WorldHeight)
	v.SetDefault("server.scrollSpeed", sd.ScrollSpeed)
	v.SetDefault("server.tickRate", sd.TickRate)
	v.SetDefault("server.spawnMinDelay", sd.SpawnMinDelay)
	v.SetDefault("server.spawnMaxDelay", sd.SpawnMaxDelay)
	v.SetDefault("server.pickupChance", sd.PickupChance)
	v.SetDefault("server.inboundRate", sd.InboundRate)

	cd := client.DefaultConfig()
	v.SetDefault("client.addressFile", "ip.txt")
	v.SetDefault("client.timeout", cd.Timeout)
	v.SetDefault("client.connectWait", cd.ConnectWait)
	v.SetDefault("client.positionRate", cd.PositionRate)

	v.SetDefault("log.file", "skyfront.log")
	v.SetDefault("log.level", "info")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.addr", ":8081")
}

// durationKeys 时长字段必须写成 "3s"、"250ms" 这样的字符串
var durationKeys = []string{
	"server.clientTimeout",
	"server.spawnMinDelay",
	"server.spawnMaxDelay",
	"client.timeout",
	"client.connectWait",
}

// checkDurations 拒绝写成数字的时长：JSON 数字会被当作纳秒解析
func checkDurations(v *viper.Viper) error {
	for _, key := range durationKeys {
		switch v.Get(key).(type) {
		case float64, float32, int, int64:
			return errors.Errorf("%s must be a duration string such as \"3s\"", key)
		}
	}
	return nil
}

// Load 读取配置。path 为空或文件不存在时只使用默认值与环境变量。
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrapf(err, "read config %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "stat config %s", path)
		}
	}

	if err := checkDurations(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// ServerConfig 转换为服务端参数，未配置的字段沿用默认值
func (c Config) ServerConfig() server.Config {
	sc := server.DefaultConfig()
	s := c.Server
	sc.Addr = s.Addr
	sc.MaxPeers = s.MaxPeers
	sc.ClientTimeout = s.ClientTimeout
	sc.WorldHeight = s.WorldHeight
	sc.ScrollSpeed = s.ScrollSpeed
	sc.TickRate = s.TickRate
	sc.SpawnMinDelay = s.SpawnMinDelay
	sc.SpawnMaxDelay = s.SpawnMaxDelay
	sc.PickupChance = s.PickupChance
	sc.InboundRate = s.InboundRate
	return sc
}

// ClientConfig 转换为客户端参数
func (c Config) ClientConfig(host bool) client.Config {
	cc := client.DefaultConfig()
	cc.Timeout = c.Client.Timeout
	cc.ConnectWait = c.Client.ConnectWait
	cc.PositionRate = c.Client.PositionRate
	cc.Host = host
	return cc
}
