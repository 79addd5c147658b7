package stream

import (
	"fmt"
	"strings"
)

// Config is the server configuration read from YAML.
type Config struct {
	Instances []string `yaml:"instances"`
	TargetFPS float64  `yaml:"targetFPS"`
	Display   struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"display"`
	Mqtt struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Topics   Topics `yaml:"topics"`
	} `yaml:"mqtt"`
	HTTP struct {
		Addr   string `yaml:"addr"`
		Static string `yaml:"static"`
	} `yaml:"http"`
	Assets struct {
		Root             string `yaml:"root"`
		MaxHeight        int    `yaml:"maxHeight"`
		Workers          int    `yaml:"workers"`
		ScanIntervalSecs int    `yaml:"scanIntervalSecs"`
	} `yaml:"assets"`
	Store struct {
		AppName string `yaml:"appName"`
	} `yaml:"store"`
}

// Topics are fmt patterns taking the instance id.
type Topics struct {
	Frame   string `yaml:"frame"`
	Command string `yaml:"command"`
	Status  string `yaml:"status"`
}

// FrameTopic is where frames of instance are published.
func (t Topics) FrameTopic(instance string) string {
	return fmt.Sprintf(t.Frame, instance)
}

// CommandTopic is where commands for instance arrive.
func (t Topics) CommandTopic(instance string) string {
	return fmt.Sprintf(t.Command, instance)
}

// StatusTopic is where the status of instance is published.
func (t Topics) StatusTopic(instance string) string {
	return fmt.Sprintf(t.Status, instance)
}

// StatusWildcard subscribes to the status of every instance.
func (t Topics) StatusWildcard() string {
	return strings.Replace(t.Status, "%s", "+", 1)
}

// DefaultTopics returns the topic layout used when none is configured.
func DefaultTopics() Topics {
	return Topics{
		Frame:   "shuffler/%s/frame",
		Command: "shuffler/%s/command",
		Status:  "shuffler/%s/status",
	}
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	if len(c.Instances) == 0 {
		c.Instances = []string{"1", "2"}
	}
	if c.TargetFPS <= 0 {
		c.TargetFPS = 50
	}
	if c.Display.Width <= 0 {
		c.Display.Width = 1920
	}
	if c.Display.Height <= 0 {
		c.Display.Height = 1080
	}
	if c.Mqtt.URL == "" {
		c.Mqtt.URL = "tcp://localhost:1883"
	}
	d := DefaultTopics()
	if c.Mqtt.Topics.Frame == "" {
		c.Mqtt.Topics.Frame = d.Frame
	}
	if c.Mqtt.Topics.Command == "" {
		c.Mqtt.Topics.Command = d.Command
	}
	if c.Mqtt.Topics.Status == "" {
		c.Mqtt.Topics.Status = d.Status
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}
	if c.HTTP.Static == "" {
		c.HTTP.Static = "client/dist"
	}
	if c.Assets.Root == "" {
		c.Assets.Root = "."
	}
	if c.Assets.MaxHeight <= 0 {
		c.Assets.MaxHeight = 500
	}
	if c.Assets.Workers <= 0 {
		c.Assets.Workers = 4
	}
	if c.Assets.ScanIntervalSecs <= 0 {
		c.Assets.ScanIntervalSecs = 60
	}
	if c.Store.AppName == "" {
		c.Store.AppName = "imageshuffler"
	}
	return c
}
