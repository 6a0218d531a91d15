package cloudadapter

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gocontext "context"

	"github.com/mihasya/go-metrics-librato"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/config"
	"github.com/travis-ci/cloudadapter/context"
	travismetrics "github.com/travis-ci/cloudadapter/metrics"
	"gopkg.in/urfave/cli.v1"
)

const (
	httpShutdownTimeout = 10 * time.Second
	metricsInterval     = time.Minute
)

var libratoPercentiles = []float64{0.50, 0.75, 0.90, 0.95, 0.99, 0.999, 1.0}

// CLI wires config, logging, metrics and a Session together for one
// cloud-adapter command.
type CLI struct {
	c        *cli.Context
	bootTime time.Time

	ctx    gocontext.Context
	cancel gocontext.CancelFunc
	logger *logrus.Entry

	cmdCtx    gocontext.Context
	cmdCancel gocontext.CancelFunc

	Config  *config.Config
	Session *Session
}

// NewCLI creates a new *CLI from a *cli.Context
func NewCLI(c *cli.Context) *CLI {
	return &CLI{
		c:        c,
		bootTime: time.Now().UTC(),
	}
}

// Setup reads the config and builds the session. It returns false when the
// command must not run: either setup failed (with the error) or the config
// was only echoed.
func (i *CLI) Setup() (bool, error) {
	i.Config = config.FromCLIContext(i.c)

	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	if i.Config.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	i.ctx, i.cancel = gocontext.WithCancel(gocontext.Background())
	if i.Config.RequestTimeout > 0 {
		i.cmdCtx, i.cmdCancel = gocontext.WithTimeout(i.ctx, i.Config.RequestTimeout)
	} else {
		i.cmdCtx, i.cmdCancel = i.ctx, i.cancel
	}
	i.logger = context.LoggerFromContext(i.ctx).WithField("self", "cli")

	if i.c.GlobalBool("echo-config") {
		config.WriteEnvConfig(i.Config, os.Stdout)
		return false, nil
	}

	i.logger.WithField("cfg", i.Config.ProviderConfig.GoString()).Debug("read config")

	if i.Config.SentryDSN != "" {
		if err := InstallSentryHook(i.Config.SentryDSN, i.Config.SentryHookErrors); err != nil {
			i.logger.WithField("err", err).Error("couldn't install sentry hook")
		}
	}
	i.startMetricsReporter()

	session, err := NewSession(i.Config.ProviderName, i.Config.ProviderConfig)
	if err != nil {
		i.logger.WithField("err", err).Error("couldn't create session")
		return false, err
	}
	i.Session = session

	i.logger.WithField("session", session.String()).Debug("session ready")
	return true, nil
}

// Context is the context of a one-shot command. It is done once the request
// timeout passes.
func (i *CLI) Context() gocontext.Context {
	return i.cmdCtx
}

func (i *CLI) Close() {
	if i.cmdCancel != nil {
		i.cmdCancel()
	}
	if i.cancel != nil {
		i.cancel()
	}
}

// Serve runs the HTTP API until SIGINT or SIGTERM. The request timeout does
// not apply to it.
func (i *CLI) Serve() error {
	api := &APIHandler{Session: i.Session, Auth: i.Config.HTTPAPIAuth}
	if api.Auth == "" {
		i.logger.Warn("no http-api-auth configured, every authenticated request will be refused")
	}

	server := &http.Server{
		Addr:    i.Config.HTTPAPIAddr,
		Handler: api.Router(),
	}

	go i.handleSignals()

	errChan := make(chan error, 1)
	go func() {
		i.logger.WithField("addr", server.Addr).Info("serving HTTP API")
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-i.ctx.Done():
	}

	shutdownCtx, cancel := gocontext.WithTimeout(gocontext.Background(), httpShutdownTimeout)
	defer cancel()

	i.logger.WithField("uptime", time.Since(i.bootTime)).Info("shutting down HTTP API")
	return server.Shutdown(shutdownCtx)
}

// startMetricsReporter ships the default registry to Librato when
// credentials are configured, and to stderr otherwise unless silenced.
func (i *CLI) startMetricsReporter() {
	go travismetrics.ReportMemstatsMetrics(i.ctx)

	cfg := i.Config
	switch {
	case cfg.LibratoEmail != "" && cfg.LibratoToken != "" && cfg.LibratoSource != "":
		i.logger.WithField("source", cfg.LibratoSource).Info("reporting metrics to librato")
		go librato.Librato(metrics.DefaultRegistry, metricsInterval,
			cfg.LibratoEmail, cfg.LibratoToken, cfg.LibratoSource,
			libratoPercentiles, time.Millisecond)
	case !cfg.SilenceMetrics:
		i.logger.Debug("logging metrics to stderr")
		go metrics.Log(metrics.DefaultRegistry, metricsInterval,
			log.New(os.Stderr, "metrics: ", log.Lmicroseconds))
	}
}

func (i *CLI) handleSignals() {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
	defer signal.Stop(signalChan)

	for {
		select {
		case <-i.ctx.Done():
			return
		case sig := <-signalChan:
			if sig == syscall.SIGUSR1 {
				i.dumpInfo()
				continue
			}
			i.logger.WithField("signal", sig).Info("shutting down")
			i.cancel()
			return
		}
	}
}

func (i *CLI) dumpInfo() {
	i.logger.WithFields(logrus.Fields{
		"version":   VersionString,
		"revision":  RevisionString,
		"generated": GeneratedString,
		"boot_time": i.bootTime.String(),
		"uptime":    time.Since(i.bootTime),
		"session":   i.Session.String(),
	}).Info("SIGUSR1 received, dumping info")
}
