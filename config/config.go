package config

import (
	"image"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/smartmirror/config.yaml"

type Config struct {
	Camera      Camera      `yaml:"camera"`
	Detector    Detector    `yaml:"detector"`
	Recognition Recognition `yaml:"recognition"`
	Enrollment  Enrollment  `yaml:"enrollment"`
	Paths       Paths       `yaml:"paths"`
	Display     Display     `yaml:"display"`
	Log         Log         `yaml:"log"`
	Timezone    string      `yaml:"timezone"`
	Socket      string      `yaml:"socket"`
	PidFile     string      `yaml:"pid_file"`
}

type Camera struct {
	// Backend is "still" (rpicam-still) or "webcam" (V4L2).
	Backend             string        `yaml:"backend"`
	Binary              string        `yaml:"binary"`
	Scratch             string        `yaml:"scratch"`
	RecognitionExposure time.Duration `yaml:"recognition_exposure"`
	EnrollmentExposure  time.Duration `yaml:"enrollment_exposure"`
	Settle              time.Duration `yaml:"settle"`
	AttemptTimeout      time.Duration `yaml:"attempt_timeout"`
	Retries             int           `yaml:"retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`

	Device     string `yaml:"device"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	MJPEG      bool   `yaml:"mjpeg"`
	BlackLevel bool   `yaml:"black_level"`
}

type Detector struct {
	CascadePaths     []string `yaml:"cascade_paths"`
	RecognitionScale float64  `yaml:"recognition_scale"`
	EnrollmentScale  float64  `yaml:"enrollment_scale"`
	MinNeighbors     int      `yaml:"min_neighbors"`
	MinSize          int      `yaml:"min_size"`
}

type Recognition struct {
	Threshold          float64       `yaml:"threshold"`
	DetectionThreshold int           `yaml:"detection_threshold"`
	StopTimeout        time.Duration `yaml:"stop_timeout"`
	// CPU pins the worker thread to a core; negative leaves it unpinned.
	CPU         *int `yaml:"cpu"`
	EventBuffer int  `yaml:"event_buffer"`
}

type Enrollment struct {
	Samples      int           `yaml:"samples"`
	FaceWidth    int           `yaml:"face_width"`
	FaceHeight   int           `yaml:"face_height"`
	Categories   []string      `yaml:"categories"`
	CompleteHold time.Duration `yaml:"complete_hold"`
}

func (e Enrollment) FaceSize() image.Point {
	return image.Pt(e.FaceWidth, e.FaceHeight)
}

type Paths struct {
	Dataset string `yaml:"dataset"`
	Model   string `yaml:"model"`
	Records string `yaml:"records"`
}

type Display struct {
	// Listen is the web display address; empty disables it.
	Listen       string        `yaml:"listen"`
	Terminal     bool          `yaml:"terminal"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Log struct {
	Level string `yaml:"level"`
}

func (l Log) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads path, applies MIRROR_* environment overrides and fills the
// defaults. A missing or broken file is logged and defaults are used.
func Load(path string) *Config {
	conf, err := loadFromFile(path)
	if err != nil {
		slog.Warn("Failed to load config file", "path", path, "error", err)
	}
	if conf == nil {
		conf = &Config{}
	}
	conf.applyEnv()
	conf.applyDefaults()
	return conf
}

func loadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := &Config{}
	err = yaml.NewDecoder(file).Decode(config)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	return config, nil
}

func (c *Config) applyEnv() {
	c.Camera.Backend = getEnv("MIRROR_CAMERA_BACKEND", c.Camera.Backend)
	c.Camera.Device = getEnv("MIRROR_CAMERA_DEVICE", c.Camera.Device)
	c.Camera.Retries = getEnvAsInt("MIRROR_CAPTURE_RETRIES", c.Camera.Retries)
	c.Recognition.Threshold = getEnvAsFloat("MIRROR_RECOGNITION_THRESHOLD", c.Recognition.Threshold)
	c.Recognition.DetectionThreshold = getEnvAsInt("MIRROR_DETECTION_THRESHOLD", c.Recognition.DetectionThreshold)
	c.Enrollment.Samples = getEnvAsInt("MIRROR_NUM_SAMPLES", c.Enrollment.Samples)
	c.Paths.Dataset = getEnv("MIRROR_DATASET_DIR", c.Paths.Dataset)
	c.Paths.Model = getEnv("MIRROR_MODEL_DIR", c.Paths.Model)
	c.Paths.Records = getEnv("MIRROR_RECORDS_DB", c.Paths.Records)
	c.Display.Listen = getEnv("MIRROR_LISTEN", c.Display.Listen)
	c.Timezone = getEnv("MIRROR_TIMEZONE", c.Timezone)
	c.Log.Level = getEnv("MIRROR_LOG_LEVEL", c.Log.Level)
	c.Socket = getEnv("MIRROR_SOCKET", c.Socket)
	c.PidFile = getEnv("MIRROR_PID_FILE", c.PidFile)
}

func (c *Config) applyDefaults() {
	cam := &c.Camera
	if cam.Backend == "" {
		cam.Backend = "still"
	}
	if cam.Binary == "" {
		cam.Binary = "rpicam-still"
	}
	if cam.Scratch == "" {
		cam.Scratch = "/tmp/capture.jpg"
	}
	if cam.RecognitionExposure == 0 {
		cam.RecognitionExposure = 2 * time.Second
	}
	if cam.EnrollmentExposure == 0 {
		cam.EnrollmentExposure = 500 * time.Millisecond
	}
	if cam.Settle == 0 {
		cam.Settle = 200 * time.Millisecond
	}
	if cam.AttemptTimeout == 0 {
		cam.AttemptTimeout = 10 * time.Second
	}
	if cam.Retries == 0 {
		cam.Retries = 3
	}
	if cam.RetryDelay == 0 {
		cam.RetryDelay = time.Second
	}
	if cam.Device == "" {
		cam.Device = "/dev/video0"
	}
	if cam.Width == 0 {
		cam.Width = 640
	}
	if cam.Height == 0 {
		cam.Height = 480
	}

	det := &c.Detector
	if det.RecognitionScale == 0 {
		det.RecognitionScale = 1.2
	}
	if det.EnrollmentScale == 0 {
		det.EnrollmentScale = 1.3
	}
	if det.MinNeighbors == 0 {
		det.MinNeighbors = 5
	}

	rec := &c.Recognition
	if rec.Threshold == 0 {
		rec.Threshold = 120
	}
	if rec.DetectionThreshold == 0 {
		rec.DetectionThreshold = 5
	}
	if rec.StopTimeout == 0 {
		rec.StopTimeout = time.Second
	}
	if rec.CPU == nil {
		cpu := -1
		rec.CPU = &cpu
	}
	if rec.EventBuffer == 0 {
		rec.EventBuffer = 16
	}

	en := &c.Enrollment
	if en.Samples == 0 {
		en.Samples = 20
	}
	if en.FaceWidth == 0 {
		en.FaceWidth = 200
	}
	if en.FaceHeight == 0 {
		en.FaceHeight = 200
	}
	if len(en.Categories) == 0 {
		en.Categories = []string{"quotes"}
	}
	if en.CompleteHold == 0 {
		en.CompleteHold = 2 * time.Second
	}

	if c.Paths.Dataset == "" {
		c.Paths.Dataset = "/var/lib/smartmirror/dataset"
	}
	if c.Paths.Model == "" {
		c.Paths.Model = "/var/lib/smartmirror/model"
	}
	if c.Paths.Records == "" {
		c.Paths.Records = "/var/lib/smartmirror/records.db"
	}

	if c.Display.PollInterval == 0 {
		c.Display.PollInterval = 100 * time.Millisecond
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Timezone == "" {
		c.Timezone = "US/Eastern"
	}
	if c.Socket == "" {
		c.Socket = "/var/run/smartmirror.sock"
	}
	if c.PidFile == "" {
		c.PidFile = "/var/run/smartmirror.pid"
	}
}

// Validate rejects settings the pipeline can not run with.
func (c *Config) Validate() error {
	switch c.Camera.Backend {
	case "still", "webcam":
	default:
		return errors.Errorf("unknown camera backend %q", c.Camera.Backend)
	}
	if c.Camera.Retries < 1 {
		return errors.New("camera.retries must be at least 1")
	}
	if c.Recognition.Threshold <= 0 {
		return errors.New("recognition.threshold must be positive")
	}
	if c.Recognition.DetectionThreshold < 1 {
		return errors.New("recognition.detection_threshold must be at least 1")
	}
	if c.Enrollment.Samples < 1 {
		return errors.New("enrollment.samples must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	return nil
}

// CaptureBudget is the longest a single Capture call can take with every
// attempt timing out.
func (c *Config) CaptureBudget() time.Duration {
	n := time.Duration(c.Camera.Retries)
	if n < 1 {
		n = 1
	}
	return n*c.Camera.AttemptTimeout + (n-1)*c.Camera.RetryDelay
}

// WorkerStopTimeout bounds a join of the recognition worker. Stop never cuts
// a capture short, so it covers a whole Capture plus the grace period.
func (c *Config) WorkerStopTimeout() time.Duration {
	return c.Recognition.StopTimeout + c.CaptureBudget()
}

// Location returns the configured time zone, falling back to local time.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
