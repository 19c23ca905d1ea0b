package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"mrcluster/internal/config"
	"mrcluster/internal/manager"
)

var (
	appName = "mrcluster-manager"
	appSha  = "populated-at-link-time"
)

func main() {
	if err := makeApp().Run(os.Args); err != nil {
		logrus.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "host", Value: "localhost", Usage: "address to bind the control-plane TCP and UDP sockets to"},
		cli.IntFlag{Name: "port", Value: 6000, Usage: "port to bind the control-plane TCP and UDP sockets to"},
		cli.StringFlag{Name: "logfile", Usage: "path to write logs to (defaults to stderr)"},
		cli.StringFlag{Name: "loglevel", Value: "info", Usage: "logrus level: debug, info, warn, error"},
		cli.StringFlag{Name: "shared_dir", Usage: "overrides the OS default location for per-job shared temp directories"},
		cli.StringFlag{Name: "config", Usage: "optional YAML file of flag defaults"},
	}
	app.Action = runMain
	return app
}

func runMain(c *cli.Context) error {
	defaults, err := config.LoadDefaults(c.String("config"))
	if err != nil {
		return err
	}
	host := stringFlag(c, defaults, "host")
	port := c.Int("port")
	logfile := stringFlag(c, defaults, "logfile")
	loglevel := stringFlag(c, defaults, "loglevel")
	sharedDir := stringFlag(c, defaults, "shared_dir")

	log, err := config.NewLogger(logfile, loglevel, logrus.Fields{"role": "manager", "port": port})
	if err != nil {
		return err
	}

	m, err := manager.New(manager.Config{
		Host:      host,
		Port:      port,
		SharedDir: sharedDir,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	go watchSignals(m.Stop, log)

	return m.Run()
}

func watchSignals(stop func(), log *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	log.WithField("signal", s.String()).Info("shutting down due to signal")
	stop()
}

// stringFlag returns the explicitly-set CLI flag value, falling back to
// the YAML defaults file only when the flag was not set on the command
// line, and to the flag's own default when the file has no such key.
func stringFlag(c *cli.Context, defaults map[string]string, name string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if v, ok := defaults[name]; ok {
		return v
	}
	return c.String(name)
}
