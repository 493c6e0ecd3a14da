package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/camtether/internal/config"
	"github.com/cjeanneret/camtether/internal/debug"
	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/hw/gpio"
	"github.com/cjeanneret/camtether/internal/hw/tally"
	"github.com/cjeanneret/camtether/internal/logic/command"
	"github.com/cjeanneret/camtether/internal/logic/session"
	"github.com/cjeanneret/camtether/internal/web"
)

// CLI flags. Zero values mean "use the config file value".
type CLI struct {
	ID                  int    `short:"i" name:"id" default:"-1" help:"Camera index in the device listing (default 0)."`
	Debug               bool   `short:"d" help:"Print status messages."`
	Verbose             bool   `short:"v" help:"Print status and verbose messages."`
	SaveToHost          bool   `short:"s" name:"save-to-host" help:"Save captures to the host instead of the card."`
	Overwrite           bool   `short:"o" help:"Overwrite existing files."`
	ListDevices         bool   `short:"l" name:"list-devices" help:"Print the connected cameras as JSON and exit."`
	DeleteAfterDownload bool   `short:"x" name:"delete-after-download" help:"Delete files from the card once downloaded."`
	DefaultDir          string `short:"r" name:"default-dir" help:"Directory for downloaded files."`
	MaxDuration         int    `short:"m" name:"max-duration" help:"Stop recordings after this many milliseconds (negative disables)."`
	Config              string `name:"config" help:"Path to a YAML config file."`
	Web                 int    `name:"web" help:"Serve the remote control on this port (0 disables)."`
	SimDevices          int    `name:"sim-devices" default:"1" help:"Number of simulated cameras exposed by the built-in transport."`
}

// newTransport builds the device transport. Replaced in tests.
var newTransport = func(n int) camera.Transport {
	return camera.NewSim(n)
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("camtether"),
		kong.Description("Tethered camera control: record, stop, picture, cancel, state, exit."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, &cli, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run wires the process and blocks until exit. It returns the exit code.
func run(ctx context.Context, cli *CLI, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(cli)
	if err != nil {
		fmt.Fprintf(stderr, "load config failed: %v\n", err)
		return 1
	}
	applyOverrides(cfg, cli)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	var broadcaster *web.StatusBroadcaster
	var extra []io.Writer
	if cfg.Web.Port > 0 {
		broadcaster = web.NewStatusBroadcaster()
		extra = append(extra, web.BroadcastWriter(broadcaster))
	}
	log := debug.New(cfg.Defaults.LogLevel, stderr, extra...)

	log.Section("Initialization")
	log.Value("Config path", cli.Config)
	log.Value("Log level", cfg.Defaults.LogLevel)
	log.Value("Camera index", cfg.Camera.Index)
	log.Value("Default dir", cfg.Output.DefaultDir)
	log.Value("Mock GPIO", cfg.Tally.MockGPIO)

	gpioDriver, err := gpio.NewDriver(cfg.Tally.MockGPIO, log)
	if err != nil {
		log.Errorf("init GPIO failed: %v", err)
		return 1
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Errorf("closing GPIO driver failed: %v", err)
		}
	}()
	lamp, err := tally.NewLamp(gpioDriver, cfg.Tally.Pin)
	if err != nil {
		log.Errorf("init tally lamp failed: %v", err)
		return 1
	}

	if !cli.ListDevices {
		if err := os.MkdirAll(cfg.Output.DefaultDir, 0o755); err != nil {
			log.Errorf("create %s: %v", cfg.Output.DefaultDir, err)
			return 1
		}
	}

	queue := command.NewQueue()
	sess, err := session.New(newTransport(cli.SimDevices), queue, sessionConfig(cfg), log,
		session.WithRecordingHook(func(on bool) {
			if err := lamp.Set(on); err != nil {
				log.Errorf("tally lamp: %v", err)
			}
		}),
	)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer sess.Close()

	if cli.ListDevices {
		if err := listDevices(sess, stdout); err != nil {
			log.Error(err)
			return 1
		}
		return 0
	}

	// Everything that can fail is built before the loop goroutine starts.
	var srv *web.Server
	if broadcaster != nil {
		srv, err = web.NewServer(":"+strconv.Itoa(cfg.Web.Port), broadcaster, queue, sess.Downloading, sess.Config(), log)
		if err != nil {
			log.Error(err)
			return 1
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The input actor stays outside the group: a blocked read cannot be interrupted.
	reader := command.NewReader(stdin, queue, log, sess.Downloading)
	go func() {
		err := reader.Run(ctx)
		switch {
		case errors.Is(err, command.ErrExit), errors.Is(err, context.Canceled):
			cancel()
		case err != nil:
			log.Errorf("read input: %v", err)
			cancel()
		case broadcaster != nil:
			log.Status("end of input, remote control still active")
		default:
			cancel()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx, cfg.TickInterval())
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, session.ErrDeviceShutdown):
		log.Status("%v", err)
		return 0
	default:
		log.Error(err)
		return 1
	}
}

func loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config == "" {
		return config.Default(), nil
	}
	return config.Load(cli.Config)
}

// applyOverrides mutates cfg with the flags that were set.
func applyOverrides(cfg *config.Config, cli *CLI) {
	if cli.ID >= 0 {
		cfg.Camera.Index = cli.ID
	}
	if cli.SaveToHost {
		cfg.Camera.SaveToHost = true
	}
	if cli.Overwrite {
		cfg.Output.Overwrite = true
	}
	if cli.DeleteAfterDownload {
		cfg.Output.DeleteAfterDownload = true
	}
	if cli.DefaultDir != "" {
		cfg.Output.DefaultDir = cli.DefaultDir
	}
	if cli.MaxDuration != 0 {
		cfg.Recording.MaxDurationMs = cli.MaxDuration
	}
	if cli.Web > 0 {
		cfg.Web.Port = cli.Web
	}
	if cli.Debug && cfg.Defaults.LogLevel < debug.LevelStatus {
		cfg.Defaults.LogLevel = debug.LevelStatus
	}
	if cli.Verbose {
		cfg.Defaults.LogLevel = debug.LevelVerbose
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		DeviceIndex:         cfg.Camera.Index,
		MaxDuration:         cfg.MaxDuration(),
		DeleteAfterDownload: cfg.Output.DeleteAfterDownload,
		SaveToHost:          cfg.Camera.SaveToHost,
		Overwrite:           cfg.Output.Overwrite,
		DefaultDir:          cfg.Output.DefaultDir,
		KeepaliveInterval:   cfg.KeepaliveInterval(),
	}
}

// listDevices prints the device records as indented JSON.
func listDevices(sess *session.Session, w io.Writer) error {
	recs, err := sess.Devices()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(recs)
}
