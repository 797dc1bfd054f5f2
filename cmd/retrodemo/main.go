package main

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"retrogfx/internal/logger"
	"retrogfx/pkg/config"
	"retrogfx/pkg/engine"
)

func init() {
	// GLFW requires the program to be running on the main thread
	runtime.LockOSThread()
}

func main() {
	app := cli.NewApp()
	app.Name = "retrodemo"
	app.Usage = "retrodemo [options]"
	app.Description = "Showcase for the retrogfx renderer"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to configuration file",
			Value: "config.yaml",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Presentation backend: gl, terminal or headless (overrides the config)",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run (0 = until closed; required for headless)",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save a PNG every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save snapshots (default: temp directory)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides the config)",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "Also write the log to this file (overrides the config)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.NewLogger("error").Errorf("retrodemo: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return err
		}
		// the defaults come back with the error
	}
	if b := c.String("backend"); b != "" {
		cfg.Window.Backend = b
	}
	if l := c.String("log-level"); l != "" {
		cfg.Logging.Level = l
	}
	if f := c.String("log-file"); f != "" {
		cfg.Logging.File = f
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()
	log.Infof("starting %s backend at %dx%d", cfg.Window.Backend, cfg.Display.Width, cfg.Display.Height)

	opts, err := engine.OptionsFromConfig(cfg, log)
	if err != nil {
		return err
	}

	frames := c.Int("frames")
	switch cfg.Window.Backend {
	case "headless":
		if frames <= 0 {
			return errors.New("headless mode requires --frames option with a positive value")
		}
		return runHeadless(cfg, opts, log, frames, c.Int("snapshot-interval"), c.String("snapshot-dir"))
	case "terminal":
		return runTerminal(cfg, opts, log, frames)
	default:
		return runWindow(cfg, opts, log, frames)
	}
}

// newLogger logs to stdout and the configured file. The terminal backend owns
// the screen, so it only gets the file.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	switch {
	case cfg.Window.Backend == "terminal" && cfg.Logging.File == "":
		return logger.NewDiscardLogger(), nil
	case cfg.Window.Backend == "terminal":
		return logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	case cfg.Logging.File != "":
		return logger.NewMultiLogger(cfg.Logging.Level, cfg.Logging.File)
	default:
		return logger.NewLogger(cfg.Logging.Level), nil
	}
}
