package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/alfikri/estore-bff/internal/log"
)

type Application struct {
	Env       string `mapstructure:"env"        json:"env"`
	Host      string `mapstructure:"host"       json:"host"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`
	Port      int    `mapstructure:"port"       json:"port"`
}

type Cache struct {
	Host     string `mapstructure:"host"     json:"host"`
	Password string `mapstructure:"password" json:"password"`
	Database int    `mapstructure:"database" json:"database"`
	Port     uint16 `mapstructure:"port"     json:"port"`
}

type Catalog struct {
	BaseUrl string        `mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"  json:"timeout"`
}

type Cart struct {
	CookieName        string        `mapstructure:"cookie_name"         json:"cookie_name"`
	RedirectPath      string        `mapstructure:"redirect_path"       json:"redirect_path"`
	MaxItemQuantity   int           `mapstructure:"max_item_quantity"   json:"max_item_quantity"`
	StorageExpiration time.Duration `mapstructure:"storage_expiration"  json:"storage_expiration"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Config struct {
	Application `mapstructure:"application" json:"application"`
	Cache       `mapstructure:"cache"       json:"cache"`
	Catalog     `mapstructure:"catalog"     json:"catalog"`
	Cart        `mapstructure:"cart"        json:"cart"`
	Otel        `mapstructure:"otel"        json:"otel"`
}

var (
	once   sync.Once
	config *Config
)

func InitConfig(c context.Context, filename string) *Config {
	cfg := Config{}
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "main InitConfig").
			Str(log.KeyProcess, "init config").
			Str("filename", filename).
			Logger()

		viper.SetConfigName(filename)
		viper.AddConfigPath("./env")
		viper.SetConfigType("yaml")
		viper.AutomaticEnv()

		viper.SetDefault("cart.cookie_name", "cartReference")
		viper.SetDefault("cart.redirect_path", "/cart")
		viper.SetDefault("cart.max_item_quantity", 999)
		viper.SetDefault("cart.storage_expiration", 72*time.Hour)
		viper.SetDefault("catalog.timeout", 10*time.Second)

		logger = logger.With().Str(log.KeyProcess, "reading config").Logger()
		logger.Info().Msg("reading config")
		err := viper.ReadInConfig()
		if err != nil {
			err = fmt.Errorf("error when reading config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("read config")

		logger = logger.With().Str(log.KeyProcess, "unmarshaling config").Logger()
		logger.Info().Msg("unmarshaling config")
		err = viper.Unmarshal(&cfg)
		if err != nil {
			err = fmt.Errorf("error unmarshaling config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = &cfg
		logger.Info().Msg("unmarshaled config")
	})
	return config
}
