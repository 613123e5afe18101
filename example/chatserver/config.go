package main

import (
	"os"

	"gopkg.in/yaml.v2"
)

// config.go loads the chatserver's settings from a YAML file, grounded on
// Just4Ease-graphrpc's generator/server_generator.go use of yaml.v2 for its
// generated server's configuration.
type config struct {
	Addr   string `yaml:"addr"`
	Path   string `yaml:"path"`
	Secret string `yaml:"secret"`
}

func defaultConfig() config {
	return config{
		Addr:   "localhost:8080",
		Path:   "/graphql",
		Secret: "graphql-transport-ws-is-awesome",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
