package main

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	Colours   bool   `envconfig:"COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	err := envconfig.Process("chat", &config)
	return config, err
}
