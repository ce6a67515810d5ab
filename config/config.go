package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SystemConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	Secret     string `yaml:"secret" json:"secret"`
	TokenHours int    `yaml:"token_hours" json:"token_hours"`
}

type DatabaseConfig struct {
	Type    string `yaml:"type" json:"type"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Name    string `yaml:"name" json:"name"`
	User    string `yaml:"user" json:"user"`
	Passwd  string `yaml:"passwd" json:"passwd"`
	MaxConn int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int   `yaml:"idle_conn" json:"idle_conn"`
	Debug   bool   `yaml:"debug" json:"debug"`
}

type RedisConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	Passwd string `yaml:"passwd" json:"passwd"`
	DB     int    `yaml:"db" json:"db"`
}

type StorageConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Folder string `yaml:"folder" json:"folder"`
}

type SmtpConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
	NotifyTo string `yaml:"notify_to" json:"notify_to"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SystemConfig   `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Smtp     SmtpConfig     `yaml:"smtp" json:"smtp"`
	Logger   LoggerConfig   `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SystemConfig{
		Appid:    "funkostore",
		Location: "UTC",
		Workdir:  "/var/funkostore",
		Debug:    true,
	},
	Web: WebConfig{
		Host:       "0.0.0.0",
		Port:       1987,
		Secret:     "9b6de5cc-0001-0001-0001-c28acba60c40",
		TokenHours: 24,
	},
	Database: DatabaseConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "funkostore",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Redis: RedisConfig{
		Addr: "127.0.0.1:6379",
		DB:   0,
	},
	Storage: StorageConfig{
		Dir:    "/var/funkostore/uploads",
		Folder: "funkos",
	},
	Smtp: SmtpConfig{
		Host: "",
		Port: 587,
		From: "noreply@funkostore.local",
	},
	Logger: LoggerConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/funkostore/funkostore.log",
	},
}

func setEnvValue(name string, f func(v string)) {
	if v := os.Getenv(name); v != "" {
		f(v)
	}
}

// LoadConfig reads the YAML config file and applies FUNKOSTORE_* environment
// overrides on top. A missing file yields the defaults. The defaults are
// copied so repeated loads never see values from a previous one.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvValue("FUNKOSTORE_SYSTEM_WORKDIR", func(v string) { cfg.System.Workdir = v })
	setEnvValue("FUNKOSTORE_SYSTEM_DEBUG", func(v string) { cfg.System.Debug = cast.ToBool(v) })
	setEnvValue("FUNKOSTORE_WEB_HOST", func(v string) { cfg.Web.Host = v })
	setEnvValue("FUNKOSTORE_WEB_PORT", func(v string) { cfg.Web.Port = cast.ToInt(v) })
	setEnvValue("FUNKOSTORE_WEB_SECRET", func(v string) { cfg.Web.Secret = v })
	setEnvValue("FUNKOSTORE_DB_TYPE", func(v string) { cfg.Database.Type = v })
	setEnvValue("FUNKOSTORE_DB_HOST", func(v string) { cfg.Database.Host = v })
	setEnvValue("FUNKOSTORE_DB_PORT", func(v string) { cfg.Database.Port = cast.ToInt(v) })
	setEnvValue("FUNKOSTORE_DB_NAME", func(v string) { cfg.Database.Name = v })
	setEnvValue("FUNKOSTORE_DB_USER", func(v string) { cfg.Database.User = v })
	setEnvValue("FUNKOSTORE_DB_PWD", func(v string) { cfg.Database.Passwd = v })
	setEnvValue("FUNKOSTORE_REDIS_ADDR", func(v string) { cfg.Redis.Addr = v })
	setEnvValue("FUNKOSTORE_REDIS_PWD", func(v string) { cfg.Redis.Passwd = v })
	setEnvValue("FUNKOSTORE_REDIS_DB", func(v string) { cfg.Redis.DB = cast.ToInt(v) })
	setEnvValue("FUNKOSTORE_STORAGE_DIR", func(v string) { cfg.Storage.Dir = v })
	setEnvValue("FUNKOSTORE_SMTP_HOST", func(v string) { cfg.Smtp.Host = v })
	setEnvValue("FUNKOSTORE_SMTP_PORT", func(v string) { cfg.Smtp.Port = cast.ToInt(v) })
	setEnvValue("FUNKOSTORE_SMTP_USER", func(v string) { cfg.Smtp.Username = v })
	setEnvValue("FUNKOSTORE_SMTP_PWD", func(v string) { cfg.Smtp.Password = v })
	setEnvValue("FUNKOSTORE_SMTP_NOTIFY_TO", func(v string) { cfg.Smtp.NotifyTo = v })
	setEnvValue("FUNKOSTORE_LOGGER_MODE", func(v string) { cfg.Logger.Mode = v })

	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(cfg.System.Workdir, "uploads")
	}
	return cfg
}
