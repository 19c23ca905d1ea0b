package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"mrcluster/internal/config"
	"mrcluster/internal/worker"
)

var (
	appName = "mrcluster-worker"
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
		cli.StringFlag{Name: "host", Value: "localhost", Usage: "address to bind this worker's TCP listener to"},
		cli.IntFlag{Name: "port", Value: 6001, Usage: "port to bind this worker's TCP listener to"},
		cli.StringFlag{Name: "manager-host", Value: "localhost", Usage: "manager host to register with"},
		cli.IntFlag{Name: "manager-port", Value: 6000, Usage: "manager port to register with"},
		cli.StringFlag{Name: "logfile", Usage: "path to write logs to (defaults to stderr)"},
		cli.StringFlag{Name: "loglevel", Value: "info", Usage: "logrus level: debug, info, warn, error"},
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
	managerHost := stringFlag(c, defaults, "manager-host")
	managerPort := c.Int("manager-port")
	logfile := stringFlag(c, defaults, "logfile")
	loglevel := stringFlag(c, defaults, "loglevel")

	log, err := config.NewLogger(logfile, loglevel, logrus.Fields{"role": "worker", "port": port})
	if err != nil {
		return err
	}

	w := worker.New(worker.Config{
		Host:        host,
		Port:        port,
		ManagerHost: managerHost,
		ManagerPort: managerPort,
		Logger:      log,
	})

	go watchSignals(w.Stop, log)

	return w.Run()
}

func watchSignals(stop func(), log *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	log.WithField("signal", s.String()).Info("shutting down due to signal")
	stop()
}

func stringFlag(c *cli.Context, defaults map[string]string, name string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if v, ok := defaults[name]; ok {
		return v
	}
	return c.String(name)
}
