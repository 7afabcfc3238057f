package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver selects the store backend: "postgres" or "memory".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig holds the session defaults applied when a room is created
// without explicit settings, plus the engine timings.
type GameConfig struct {
	DefaultRounds       int    `mapstructure:"default_rounds"`
	DefaultDrawTime     int    `mapstructure:"default_draw_time"`
	DefaultMaxPlayers   int    `mapstructure:"default_max_players"`
	DefaultLanguage     string `mapstructure:"default_language"`
	MinPlayers          int    `mapstructure:"min_players"`
	SelectionSeconds    int    `mapstructure:"selection_seconds"`
	ResultsDelaySeconds int    `mapstructure:"results_delay_seconds"`
	HintIntervalSeconds int    `mapstructure:"hint_interval_seconds"`
	CodeAttempts        int    `mapstructure:"code_attempts"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("game.default_rounds", 3)
	viper.SetDefault("game.default_draw_time", 80)
	viper.SetDefault("game.default_max_players", 8)
	viper.SetDefault("game.default_language", "cs")
	viper.SetDefault("game.min_players", 2)
	viper.SetDefault("game.selection_seconds", 30)
	viper.SetDefault("game.results_delay_seconds", 3)
	viper.SetDefault("game.hint_interval_seconds", 15)
	viper.SetDefault("game.code_attempts", 10)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
