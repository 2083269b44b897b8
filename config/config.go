package config

import (
	"fmt"

	"github.com/spf13/viper"
)

/* Config é um pacote auxiliar. Poderia ser uma lib externa*/

type Config struct {
	Port          string `mapstructure:"PORT"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	ProfileFile   string `mapstructure:"PROFILE_FILE"`
	AppSecret     string `mapstructure:"APP_SECRET"`
	RelayTimeout  string `mapstructure:"RELAY_TIMEOUT"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RELAY_TIMEOUT", "10s")
	// Registering empty defaults lets AutomaticEnv feed Unmarshal.
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("PROFILE_FILE", "")
	viper.SetDefault("APP_SECRET", "")
	err := viper.ReadInConfig()
	if err != nil {
		// A missing .env is fine, the environment still applies.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var config Config
	err = viper.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}
