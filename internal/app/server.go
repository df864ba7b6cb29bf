package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/suxatcode/fsgraph/fstree"
	"github.com/suxatcode/fsgraph/internal/controller"
	"github.com/suxatcode/fsgraph/middleware"
	"github.com/suxatcode/fsgraph/render"
	"github.com/suxatcode/fsgraph/source"
)

type Config struct {
	Production bool `env:"PRODUCTION" envDefault:"false"`
	// Levels are {trace, debug, info, warn, error, fatal, panic}.
	// See github.com/rs/zerolog@v1.19.0/log.go for possible values.
	LogLevel string `env:"LOGLEVEL" envDefault:"debug"`
	// HTTP timeouts (read and write)
	HTTPTimeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
	HTTPAddr    string        `env:"HTTP_ADDR" envDefault:":8080"`
	// Root is the directory tree to visualize.
	Root       string `env:"FSGRAPH_ROOT" envDefault:"."`
	TuningFile string `env:"FSGRAPH_TUNING" envDefault:""`
	// FrameRate is the step/build cadence; IdleFrameRate is used once the
	// simulation converged, until the next perturbation.
	FrameRate     int `env:"FSGRAPH_FRAMERATE" envDefault:"60"`
	IdleFrameRate int `env:"FSGRAPH_IDLE_FRAMERATE" envDefault:"10"`
	// MaxVertices caps the vertex buffer at the device limit (0 = none).
	MaxVertices int     `env:"FSGRAPH_MAX_VERTICES" envDefault:"0"`
	ViewWidth   float64 `env:"FSGRAPH_VIEW_WIDTH" envDefault:"1200"`
	ViewHeight  float64 `env:"FSGRAPH_VIEW_HEIGHT" envDefault:"800"`
}

func GetEnvConfig() Config {
	conf := Config{}
	env.Parse(&conf)
	return conf
}

func RetryAtIntervals(fn func() error, intervals []time.Duration) {
	var err error
	err = fn()
	i := 0
	for err != nil {
		time.Sleep(intervals[i])
		if i < len(intervals)-1 {
			i++
		}
		err = fn()
	}
}

func setupLogging(conf Config) {
	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		println("failed to parse LogLevel: '" + conf.LogLevel + "', setting to debug")
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if !conf.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// statsHandler exposes the engine state as JSON for debugging and the
// presentation layer's overlay.
func statsHandler(engine controller.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.Stats()); err != nil {
			log.Ctx(r.Context()).Error().Msgf("encoding stats: %v", err)
		}
	})
}

// frameHandler renders the current frame with the CPU shader reference and
// returns it as PNG. Debug surface, not the production draw path. CopyFrame
// keeps the encoder off the run loop's double-buffer pair.
func frameHandler(engine controller.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, uniforms := engine.CopyFrame(nil)
		w.Header().Set("Content-Type", "image/png")
		if err := render.WritePNG(w, buf, engine.Camera(), uniforms); err != nil {
			log.Ctx(r.Context()).Error().Msgf("rendering frame: %v", err)
		}
	})
}

func pickHandler(engine controller.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id, ok := engine.Pick(req.X, req.Y)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			ID  string `json:"id,omitempty"`
			Hit bool   `json:"hit"`
		}{ID: id, Hit: ok})
	})
}

func newHandler(engine controller.Engine) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/stats", statsHandler(engine))
	mux.Handle("/frame.png", frameHandler(engine))
	mux.Handle("/pick", pickHandler(engine))
	return middleware.AddAll(mux)
}

// loopTiming derives the step size and tick intervals from the configured
// rates, treating anything below one frame per second as one.
func loopTiming(conf Config) (dt float64, active, idle time.Duration) {
	rate := max(conf.FrameRate, 1)
	dt = 1.0 / float64(rate)
	active = time.Second / time.Duration(rate)
	idle = time.Second / time.Duration(max(conf.IdleFrameRate, 1))
	return dt, active, idle
}

// runLoop is the single simulation/render loop: one step, then one frame
// build, per tick. It drops to the idle rate once the simulation converged
// and resumes full rate on the next perturbation.
func runLoop(ctx context.Context, engine controller.Engine, conf Config) {
	dt, active, idle := loopTiming(conf)
	timer := time.NewTimer(active)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		engine.Step(dt)
		engine.Frame()
		if engine.Stats().Converged {
			timer.Reset(idle)
		} else {
			timer.Reset(active)
		}
	}
}

func watchAndApply(ctx context.Context, engine controller.Engine, conf Config, initial *fstree.Snapshot) {
	watcher, err := source.NewWatcher(conf.Root, initial)
	if err != nil {
		log.Error().Msgf("cannot watch %q: %v", conf.Root, err)
		return
	}
	go watcher.Run(ctx)
	for diff := range watcher.Diffs() {
		if err := engine.ApplyDiff(diff); err != nil {
			log.Error().Msgf("applying diff: %v", err)
		}
	}
}

// Run wires everything together and blocks until ctx is done or the HTTP
// server fails.
func Run(ctx context.Context) error {
	conf := GetEnvConfig()
	setupLogging(conf)
	log.Info().Msgf("Config: %#v", conf)

	simConf, err := LoadTuning(conf.TuningFile)
	if err != nil {
		log.Warn().Msgf("tuning file ignored: %v", err)
	}
	engine := controller.NewGraphEngine(controller.Config{
		Simulation:  simConf,
		Width:       conf.ViewWidth,
		Height:      conf.ViewHeight,
		MaxVertices: conf.MaxVertices,
	})

	var initial *fstree.Snapshot
	RetryAtIntervals(func() error {
		var scanErr error
		initial, scanErr = source.Scan(conf.Root)
		if scanErr != nil {
			log.Error().Msgf("failed to scan %q: %v", conf.Root, scanErr)
		}
		return scanErr
	}, []time.Duration{
		1 * time.Second,
		5 * time.Second,
		5 * time.Second,
		10 * time.Second,
	})
	if err := engine.ApplySnapshot(initial); err != nil {
		return err
	}
	log.Info().Int("nodes", len(initial.Nodes)).Msgf("initial scan of %q done", conf.Root)

	go runLoop(ctx, engine, conf)
	go watchAndApply(ctx, engine, conf, initial)

	server := http.Server{
		Addr:         conf.HTTPAddr,
		Handler:      newHandler(engine),
		ReadTimeout:  conf.HTTPTimeout,
		WriteTimeout: conf.HTTPTimeout,
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	log.Info().Msgf("serving stats and metrics on %s", conf.HTTPAddr)
	return server.ListenAndServe()
}
