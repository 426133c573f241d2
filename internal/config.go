package internal

import (
	"encoding/json"
	"io"
	"os"
)

type Config struct {
	HTTPServerPort  uint16 `json:"http-server-port"`
	DBName          string `json:"db-name"`
	SecretKey       string `json:"secret-key"`
	AccessTokenTTL  int64  `json:"access-token-ttl-seconds"`
	RefreshTokenTTL int64  `json:"refresh-token-ttl-seconds"`
	ExecutorAddr    string `json:"executor-addr"`
	EnableLogging   bool   `json:"enable-logging"`
	ReadTimeout     int64  `json:"read-timeout"`
	WriteTimeout    int64  `json:"write-timeout"`
}

func LoadConfig(folderPath string) (*Config, error) {

	file, err := os.OpenFile(folderPath+"/.cfg", os.O_RDONLY, 0755)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var config *Config = &Config{}
	if err = json.Unmarshal(payload, config); err != nil {
		return nil, err
	}

	return config, nil
}
