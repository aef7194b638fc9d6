package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	conf := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	if conf.Recognition.Threshold != 120 || conf.Recognition.DetectionThreshold != 5 {
		t.Errorf("recognition = %+v", conf.Recognition)
	}
	if conf.Camera.Retries != 3 || conf.Camera.RetryDelay != time.Second {
		t.Errorf("retry = %d / %v", conf.Camera.Retries, conf.Camera.RetryDelay)
	}
	if conf.Camera.RecognitionExposure != 2*time.Second || conf.Camera.EnrollmentExposure != 500*time.Millisecond {
		t.Errorf("exposure = %v / %v", conf.Camera.RecognitionExposure, conf.Camera.EnrollmentExposure)
	}
	if conf.Enrollment.Samples != 20 || conf.Enrollment.FaceSize() != image.Pt(200, 200) {
		t.Errorf("enrollment = %+v", conf.Enrollment)
	}
	if *conf.Recognition.CPU != -1 {
		t.Errorf("cpu = %d", *conf.Recognition.CPU)
	}
	if conf.Display.PollInterval != 100*time.Millisecond {
		t.Errorf("poll = %v", conf.Display.PollInterval)
	}
	if err := conf.Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
camera:
  backend: webcam
  device: /dev/video2
  retry_delay: 250ms
recognition:
  threshold: 80
  cpu: 0
enrollment:
  samples: 10
  categories: [dad, quotes]
timezone: Europe/Berlin
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIRROR_NUM_SAMPLES", "12")
	t.Setenv("MIRROR_LOG_LEVEL", "debug")

	conf := Load(path)
	if conf.Camera.Backend != "webcam" || conf.Camera.Device != "/dev/video2" {
		t.Errorf("camera = %+v", conf.Camera)
	}
	if conf.Camera.RetryDelay != 250*time.Millisecond {
		t.Errorf("retry delay = %v", conf.Camera.RetryDelay)
	}
	if conf.Recognition.Threshold != 80 || *conf.Recognition.CPU != 0 {
		t.Errorf("recognition = %+v", conf.Recognition)
	}
	if conf.Enrollment.Samples != 12 {
		t.Errorf("samples = %d, want env override", conf.Enrollment.Samples)
	}
	if len(conf.Enrollment.Categories) != 2 || conf.Enrollment.Categories[0] != "dad" {
		t.Errorf("categories = %v", conf.Enrollment.Categories)
	}
	if conf.Log.SlogLevel().String() != "DEBUG" {
		t.Errorf("level = %v", conf.Log.SlogLevel())
	}
	if conf.Location().String() != "Europe/Berlin" {
		t.Errorf("location = %v", conf.Location())
	}
}

func TestValidate(t *testing.T) {
	conf := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	conf.Camera.Backend = "carrier-pigeon"
	if err := conf.Validate(); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestWorkerStopTimeoutCoversCapture(t *testing.T) {
	conf := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	if got, want := conf.CaptureBudget(), 3*10*time.Second+2*time.Second; got != want {
		t.Errorf("capture budget = %v, want %v", got, want)
	}
	inFlight := conf.Camera.RecognitionExposure + conf.Camera.Settle
	if conf.WorkerStopTimeout() <= inFlight {
		t.Errorf("stop timeout %v does not cover an in-flight capture of %v", conf.WorkerStopTimeout(), inFlight)
	}
	if conf.WorkerStopTimeout() <= conf.Recognition.StopTimeout {
		t.Error("stop timeout ignores the capture budget")
	}
}
