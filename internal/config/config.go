package config

import (
	"flag"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Signaling SignalingConfig `yaml:"signaling"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Database  DatabaseConfig  `yaml:"database"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	// Port replaces the port of Address when set.
	Port            string        `yaml:"port" env:"PORT"`
	AllowOrigins    []string      `yaml:"allow_origins" env:"HTTP_ALLOW_ORIGINS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type SignalingConfig struct {
	// Zero means unbounded.
	RoomCapacity       int           `yaml:"room_capacity" env:"ROOM_CAPACITY" env-default:"0"`
	PendingJoinTimeout time.Duration `yaml:"pending_join_timeout" env-default:"30s"`
	QueueSize          int           `yaml:"queue_size" env-default:"64"`
	MaxMessageBytes    int64         `yaml:"max_message_bytes" env-default:"65536"`
	MessagesPerSecond  float64       `yaml:"messages_per_second" env-default:"50"`
	Burst              int           `yaml:"burst" env-default:"100"`
	WriteWait          time.Duration `yaml:"write_wait" env-default:"10s"`
	PongWait           time.Duration `yaml:"pong_wait" env-default:"60s"`
}

type WebRTCConfig struct {
	STUNServers     []string      `yaml:"stun_servers" env:"STUN_SERVERS"`
	EngineQueueSize int           `yaml:"engine_queue_size" env-default:"128"`
	CallTimeout     time.Duration `yaml:"call_timeout" env-default:"5s"`
	GatherTimeout   time.Duration `yaml:"gather_timeout" env-default:"3s"`
}

type DatabaseConfig struct {
	// Empty keeps the room journal in memory.
	DSN string `yaml:"dsn" env:"DATABASE_DSN" env-default:""`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.Port != "" {
		host, _, err := net.SplitHostPort(c.HTTP.Address)
		if err != nil {
			host = ""
		}
		c.HTTP.Address = net.JoinHostPort(host, c.HTTP.Port)
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Signaling.RoomCapacity < 0 {
		c.Signaling.RoomCapacity = 0
	}
}
