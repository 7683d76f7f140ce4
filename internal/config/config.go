package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	// Host is the public base URL of this service. It is used to build the
	// webhook callback URL registered with the calendar provider.
	Host     string   `koanf:"host"`
	Server   Server   `koanf:"server"`
	Luma     Luma     `koanf:"luma"`
	Sync     Sync     `koanf:"sync"`
	Media    Media    `koanf:"media"`
	Database Database `koanf:"db"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Luma struct {
	BaseUrl string `koanf:"baseurl"`
}

type Sync struct {
	// Cron specs for the periodic orchestrators.
	SyncSchedule   string `koanf:"syncschedule"`
	VerifySchedule string `koanf:"verifyschedule"`
}

type Media struct {
	Dir string `koanf:"dir"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Host: "http://localhost:8282",
		Server: Server{
			Addr: ":8282",
		},
		Luma: Luma{
			BaseUrl: "https://api.lu.ma/public/v1",
		},
		Sync: Sync{
			SyncSchedule:   "@every 30m",
			VerifySchedule: "@every 5m",
		},
		Media: Media{
			Dir: "./media",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "gatherly",
			Pass:   "",
			Name:   "gatherly",
			Schema: "gatherly",
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "GATHERLY_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "GATHERLY_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
