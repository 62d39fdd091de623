package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"
	SensorReplay     = "replay"

	OutputSerial  = "serial"
	OutputConsole = "console"
	OutputMQTT    = "mqtt"

	LineEndingLF   = "lf"
	LineEndingCRLF = "crlf"
)

type SerialConfig struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
}

type I2CConfig struct {
	Bus     string `json:"bus" yaml:"bus"`
	Address int    `json:"address" yaml:"address"`
}

type MQTTConfig struct {
	Server            string `json:"server" yaml:"server"`
	Username          string `json:"username" yaml:"username"`
	Password          string `json:"password" yaml:"password"`
	ClientID          string `json:"client_id" yaml:"client_id"`
	StateTopic        string `json:"state_topic" yaml:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic" yaml:"discovery_topic"`
	DiscoveryName     string `json:"discovery_name" yaml:"discovery_name"`
	DiscoveryUniqueID string `json:"discovery_unique_id" yaml:"discovery_unique_id"`
}

type OutputConfig struct {
	Type string      `json:"type" yaml:"type"`
	MQTT *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

type Config struct {
	SensorType    string         `json:"sensor_type" yaml:"sensor_type"`
	Channel       int            `json:"channel" yaml:"channel"`
	I2C           I2CConfig      `json:"i2c" yaml:"i2c"`
	SampleRate    int            `json:"sample_rate" yaml:"sample_rate"`
	Serial        SerialConfig   `json:"serial" yaml:"serial"`
	IntervalMs    int            `json:"interval_ms" yaml:"interval_ms"`
	LineEnding    string         `json:"line_ending" yaml:"line_ending"`
	Outputs       []OutputConfig `json:"outputs" yaml:"outputs"`
	ReplayValues  []int          `json:"replay_values" yaml:"replay_values"`
	ReplayLoop    bool           `json:"replay_loop" yaml:"replay_loop"`
	MaxIterations int            `json:"max_iterations" yaml:"max_iterations"`

	// ListPorts is only set from the command line.
	ListPorts bool `json:"-" yaml:"-"`
}

// DefaultConfig matches the original sketch: channel A0, 9600 baud,
// one reading every 500ms written to the serial port.
func DefaultConfig() Config {
	return Config{
		SensorType: SensorReal,
		Channel:    0,
		I2C:        I2CConfig{Bus: "2", Address: 0x48},
		SampleRate: 128,
		Serial:     SerialConfig{Port: "/dev/ttyS0", BaudRate: 9600},
		IntervalMs: 500,
		LineEnding: LineEndingLF,
		Outputs:    []OutputConfig{{Type: OutputSerial}},
	}
}

// LoadFromFlags loads configuration from os.Args.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load builds the configuration from defaults, an optional JSON or YAML
// file, the environment (.env included) and finally the given arguments.
// Later sources override earlier ones.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("fsr-serial", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	envPath := fs.String("env-file", ".env", "Optional dotenv file")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation|replay")
	flagChannel := fs.Int("channel", -1, "ADC channel the FSR is wired to")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '2' -> /dev/i2c-2)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address (decimal or 0x hex)")
	flagSampleRate := fs.Int("sample-rate", -1, "ADS1115 sample rate (SPS)")
	flagPort := fs.String("serial-port", "", "Serial port device")
	flagBaud := fs.Int("baud-rate", -1, "Serial bit rate")
	flagInterval := fs.Int("interval-ms", -1, "Delay between readings in ms")
	flagLineEnding := fs.String("line-ending", "", "Line terminator: lf|crlf")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (serial,console,mqtt)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic")
	flagReplay := fs.String("replay-values", "", "Comma-separated values for the replay sensor")
	flagMaxIter := fs.Int("max-iterations", -1, "Stop after N readings (0 = forever)")
	flagListPorts := fs.Bool("list-ports", false, "List serial ports and exit")

	cfg := DefaultConfig()
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *cfgPath != "" {
		if err := loadFile(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load env file: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagChannel != -1 {
		cfg.Channel = *flagChannel
	}
	if *flagI2CBus != "" {
		cfg.I2C.Bus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.I2C.Address = v
	}
	if *flagSampleRate != -1 {
		cfg.SampleRate = *flagSampleRate
	}
	if *flagPort != "" {
		cfg.Serial.Port = *flagPort
	}
	if *flagBaud != -1 {
		cfg.Serial.BaudRate = *flagBaud
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagLineEnding != "" {
		cfg.LineEnding = *flagLineEnding
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}
	applyMQTT(&cfg, MQTTConfig{
		Server:     *flagMQTTServer,
		Username:   *flagMQTTUser,
		Password:   *flagMQTTPass,
		ClientID:   *flagClientID,
		StateTopic: *flagTopic,
	})
	if *flagReplay != "" {
		vals, err := parseInts(*flagReplay)
		if err != nil {
			return cfg, fmt.Errorf("replay-values: %w", err)
		}
		cfg.ReplayValues = vals
	}
	if *flagMaxIter != -1 {
		cfg.MaxIterations = *flagMaxIter
	}
	cfg.ListPorts = *flagListPorts
	cfg.LineEnding = strings.ToLower(cfg.LineEnding)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the sampler cannot run with.
func (c Config) Validate() error {
	switch c.SensorType {
	case SensorReal:
		if c.Channel < 0 || c.Channel > 3 {
			return fmt.Errorf("channel %d out of range 0..3", c.Channel)
		}
		if !SupportedSampleRate(c.SampleRate) {
			return fmt.Errorf("sample-rate %d not supported by ADS1115 (8,16,32,64,128,250,475,860)", c.SampleRate)
		}
	case SensorSimulation:
	case SensorReplay:
		if len(c.ReplayValues) == 0 {
			return errors.New("replay sensor needs replay-values")
		}
	default:
		return fmt.Errorf("unknown sensor type %q", c.SensorType)
	}
	if c.IntervalMs < 0 {
		return errors.New("interval-ms must be >= 0")
	}
	if c.MaxIterations < 0 {
		return errors.New("max-iterations must be >= 0")
	}
	if le := strings.ToLower(c.LineEnding); le != LineEndingLF && le != LineEndingCRLF {
		return fmt.Errorf("unknown line ending %q", c.LineEnding)
	}
	if len(c.Outputs) == 0 {
		return errors.New("at least one output is required")
	}
	for _, o := range c.Outputs {
		switch o.Type {
		case OutputSerial:
			if c.Serial.Port == "" {
				return errors.New("serial output needs a port")
			}
			if c.Serial.BaudRate <= 0 {
				return errors.New("baud-rate must be > 0")
			}
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT == nil || o.MQTT.Server == "" {
				return errors.New("mqtt output needs a server")
			}
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	return nil
}

// SupportedSampleRate reports whether rate is one of the ADS1115 data rates.
func SupportedSampleRate(rate int) bool {
	switch rate {
	case 8, 16, 32, 64, 128, 250, 475, 860:
		return true
	}
	return false
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// decoding into the default slice would let file entries inherit
	// the default output's fields
	defOutputs := cfg.Outputs
	cfg.Outputs = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if cfg.Outputs == nil {
		cfg.Outputs = defOutputs
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FSR_SENSOR_TYPE"); v != "" {
		cfg.SensorType = v
	}
	if v := os.Getenv("FSR_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("FSR_BAUD_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FSR_BAUD_RATE: %w", err)
		}
		cfg.Serial.BaudRate = n
	}
	if v := os.Getenv("FSR_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FSR_INTERVAL_MS: %w", err)
		}
		cfg.IntervalMs = n
	}
	applyMQTT(cfg, MQTTConfig{
		Server:   os.Getenv("FSR_MQTT_SERVER"),
		Username: os.Getenv("FSR_MQTT_USER"),
		Password: os.Getenv("FSR_MQTT_PASS"),
	})
	return nil
}

// applyMQTT copies the non-empty fields of m into every mqtt output. When a
// server is given and no mqtt output exists one is created.
func applyMQTT(cfg *Config, m MQTTConfig) {
	if m == (MQTTConfig{}) {
		return
	}
	applied := false
	for i := range cfg.Outputs {
		if cfg.Outputs[i].Type != OutputMQTT {
			continue
		}
		if cfg.Outputs[i].MQTT == nil {
			cfg.Outputs[i].MQTT = &MQTTConfig{}
		}
		mergeMQTT(cfg.Outputs[i].MQTT, m)
		applied = true
	}
	if !applied && m.Server != "" {
		out := OutputConfig{Type: OutputMQTT, MQTT: &MQTTConfig{}}
		mergeMQTT(out.MQTT, m)
		cfg.Outputs = append(cfg.Outputs, out)
	}
}

func mergeMQTT(dst *MQTTConfig, src MQTTConfig) {
	if src.Server != "" {
		dst.Server = src.Server
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.StateTopic != "" {
		dst.StateTopic = src.StateTopic
	}
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	parts := parseCSV(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid value '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
