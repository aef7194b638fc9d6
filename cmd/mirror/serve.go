package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abihf/smartmirror/app"
	"github.com/abihf/smartmirror/dataset"
	"github.com/abihf/smartmirror/display"
	"github.com/abihf/smartmirror/enroll"
	"github.com/abihf/smartmirror/input"
	"github.com/abihf/smartmirror/presence"
	"github.com/abihf/smartmirror/protocol"
	"github.com/abihf/smartmirror/recognize"
	"github.com/abihf/smartmirror/records"
	"github.com/abihf/smartmirror/utils/thread"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mirror daemon",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if err := conf.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if isAlreadyRun(conf.PidFile) {
		return errors.New("already run")
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := loadDetectors()
	if err != nil {
		return err
	}
	defer det.cascade.Close()

	cams := openCameras(log)
	defer cams.close()

	faceModel := newModel(log)
	defer faceModel.Close()

	recs, err := records.Open(conf.Paths.Records)
	if err != nil {
		return err
	}
	defer recs.Close()

	samples := dataset.New(conf.Paths.Dataset, log.With("component", "dataset"))

	if err := writeLockFile(conf.PidFile); err != nil {
		return errors.Wrap(err, "Can not write pid file")
	}
	defer os.Remove(conf.PidFile)

	events := make(chan presence.Event, conf.Recognition.EventBuffer)
	cmds := make(chan input.Command, 16)

	workerLog := log.With("component", "worker")
	worker := recognize.NewWorker(cams.recognition, det.recognition, faceModel, events, recognize.Options{
		Threshold: conf.Recognition.Threshold,
		Misses:    conf.Recognition.DetectionThreshold,
		OnStart: thread.Pinner(*conf.Recognition.CPU, func(err error) {
			workerLog.Warn("Can not pin worker thread", "error", err)
		}),
		Log: workerLog,
	})

	screen := display.Multi{display.Log{Logger: log.With("component", "display")}}
	var hub *display.Hub
	if conf.Display.Listen != "" {
		hub = display.NewHub(log.With("component", "hub"))
		go hub.Run(ctx)
		screen = append(screen, hub)
	}
	if conf.Display.Terminal {
		screen = append(screen, display.NewTerminal(os.Stdout))
		go func() {
			if err := input.ReadLines(ctx, os.Stdin, cmds); err != nil && ctx.Err() == nil {
				log.Warn("Terminal input closed", "error", err)
			}
		}()
	}

	controller := enroll.New(enroll.Deps{
		Source:   cams.enrollment,
		Detector: det.enrollment,
		Samples:  samples,
		Trainer:  &dataset.Trainer{Dataset: samples, Model: faceModel},
		Names:    enroll.AnyTaken{samples, recs},
		Records:  recs,
		Worker:   worker,
		Display:  screen,
		Log:      log.With("component", "enroll"),
	}, enroll.Options{
		Samples:     conf.Enrollment.Samples,
		FaceSize:    conf.Enrollment.FaceSize(),
		StopTimeout: conf.WorkerStopTimeout(),
		Categories:  conf.Enrollment.Categories,
	})

	mirror := app.New(events, cmds, worker, controller, recs, nil, screen, app.Options{
		PollInterval: conf.Display.PollInterval,
		Location:     conf.Location(),
		CompleteHold: conf.Enrollment.CompleteHold,
		Log:          log.With("component", "app"),
	})

	if hub != nil {
		srv := display.NewServer(conf.Display.Listen, hub, func() map[string]any {
			return mirror.Status().Map()
		}, log.With("component", "web"))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("Display server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	ln, err := listenSocket(conf.Socket)
	if err != nil {
		return err
	}
	defer ln.Close()
	go acceptLoop(ln, mirror, cmds, log.With("component", "socket"))

	daemon.SdNotify(false, daemon.SdNotifyReady)
	err = mirror.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("Shutting down")

	// an in-flight capture runs its whole retry budget before the loop exits
	stopCtx, cancel := context.WithTimeout(context.Background(), conf.WorkerStopTimeout())
	defer cancel()
	if stopErr := worker.Stop(stopCtx); stopErr != nil {
		log.Warn("Recognition worker did not stop", "error", stopErr)
	}
	return err
}

func listenSocket(path string) (net.Listener, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "Listen error")
	}

	os.Chmod(path, 0666)
	return ln, nil
}

func acceptLoop(ln net.Listener, mirror *app.App, cmds chan<- input.Command, log *slog.Logger) {
	for {
		fd, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error("Accept error", "error", err)
			return
		}

		go handle(fd, mirror, cmds, log)
	}
}

func handle(c net.Conn, mirror *app.App, cmds chan<- input.Command, log *slog.Logger) {
	defer c.Close()

	for {
		req, err := protocol.ReadReq(c)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("Can not read request", "error", err)
			}
			return
		}

		switch req.Action {
		case protocol.ActionStatus:
			protocol.WriteSuccessRes(c, statusExtras(mirror.Status()))

		case protocol.ActionKey:
			key := protocol.ToKeyReq(req).Key
			command, ok := input.Translate(key)
			if !ok {
				protocol.WriteErrorRes(c, errors.Errorf("unsupported key %q", key))
				continue
			}
			select {
			case cmds <- command:
				protocol.WriteSuccessRes(c, nil)
			default:
				protocol.WriteErrorRes(c, errors.New("input queue is full"))
			}

		default:
			protocol.WriteErrorRes(c, errors.Errorf("unknown action %q", req.Action))
		}
	}
}

func statusExtras(s app.Status) map[string]string {
	return map[string]string{
		"present":        s.Present,
		"enrolling":      strconv.FormatBool(s.Enrolling),
		"worker_running": strconv.FormatBool(s.WorkerRunning),
		"quote":          s.Quote,
		"enrollments":    strconv.Itoa(s.Enrollments),
	}
}
