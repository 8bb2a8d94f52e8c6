package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server `mapstructure:"server"`
	Store  Store  `mapstructure:"store"`
	Notify Notify `mapstructure:"notify"`
}

type Server struct {
	ListenAddress  string        `mapstructure:"listen_address"`
	WSAddress      string        `mapstructure:"ws_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	MaxClients     int           `mapstructure:"max_clients"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`
}

type Store struct {
	Backend  string   `mapstructure:"backend"` // file, postgres, gorm
	DataDir  string   `mapstructure:"data_dir"`
	Postgres Postgres `mapstructure:"postgres"`
}

type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type Notify struct {
	Mode string `mapstructure:"mode"` // log, nop
}

func setDefaults() {
	viper.SetDefault("server.listen_address", ":5555")
	viper.SetDefault("server.ws_address", "")
	viper.SetDefault("server.rpc_address", ":5556")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.max_clients", 20)
	viper.SetDefault("server.turn_timeout", 30*time.Second)
	viper.SetDefault("store.backend", "file")
	viper.SetDefault("store.data_dir", "data")
	viper.SetDefault("store.postgres.host", "localhost")
	viper.SetDefault("store.postgres.port", 5432)
	viper.SetDefault("store.postgres.user", "postgres")
	viper.SetDefault("store.postgres.password", "")
	viper.SetDefault("store.postgres.dbname", "matchserver")
	viper.SetDefault("notify.mode", "log")
}

// LoadConfig reads config.yaml from path. A missing file is fine (defaults
// apply); a malformed one is an error.
func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return config, nil
}
