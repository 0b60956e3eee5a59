package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kmoncr/horibactl/generichttp"
	"github.com/kmoncr/horibactl/generichttp/spectro"
	"github.com/kmoncr/horibactl/icl"
	"github.com/kmoncr/horibactl/optosigma"
	"github.com/kmoncr/horibactl/server"
	"github.com/kmoncr/horibactl/server/middleware/locker"
	"github.com/kmoncr/horibactl/spectrometer"
	"github.com/kmoncr/horibactl/stage"
	"github.com/kmoncr/horibactl/thorlabs"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"
	"goji.io"
	"golang.org/x/time/rate"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "spectro-http.yml"
	k              = koanf.New(".")
)

type stageConfig struct {
	// Kind selects the rotation stage driver, "gsc01", "k10cr2" or ""
	// for a bench without one
	Kind string `yaml:"Kind"`

	// Port is the serial port the stage controller answers on
	Port string `yaml:"Port"`
}

type scanConfig struct {
	// Count is how many acquisitions the scan subcommand takes
	Count int `yaml:"Count"`

	// PerSecond paces the scan loop
	PerSecond float64 `yaml:"PerSecond"`
}

type config struct {
	Addr         string                          `yaml:"Addr"`
	Root         string                          `yaml:"Root"`
	ICLAddr      string                          `yaml:"ICLAddr"`
	ExcitationNm float64                         `yaml:"ExcitationNm"`
	Sim          bool                            `yaml:"Sim"`
	Stage        stageConfig                     `yaml:"Stage"`
	Scan         scanConfig                      `yaml:"Scan"`
	Acquisition  spectrometer.AcquisitionRequest `yaml:"Acquisition"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:         ":8000",
		Root:         "/spectro",
		ICLAddr:      icl.DefaultAddr,
		ExcitationNm: 532,
		Stage:        stageConfig{},
		Scan:         scanConfig{Count: 10, PerSecond: 0.5},
		Acquisition: spectrometer.AcquisitionRequest{
			Grating:            spectrometer.Grating600,
			CenterWavelengthNm: 550,
			SlitWidthMm:        0.1,
			ExposureSec:        1,
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `spectro-http exposes control of a Horiba spectrometer over HTTP.
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	spectro-http <command>

Commands:
	run
	scan
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `spectro-http is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  The command mkconf
generates the configuration file with the default values.

The server talks to the mono and CCD through Horiba's instrument control layer
(the ICL), which must already be running; ICLAddr points at it.  Stage Kind
selects the optional rotation stage driver, gsc01 for an OptoSigma GSC-01
controller or k10cr2 for a Thorlabs cage rotator, with Port naming its serial
port.  A blank Kind means the bench has no rotation stage and the rotation
routes become no-ops.

Sim: true replaces all hardware with simulations, useful for client
development away from the bench.

The scan subcommand takes Scan.Count acquisitions with the settings in the
Acquisition block, paced at Scan.PerSecond, and reports timing.  Use it to
soak test the bench after an alignment.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("spectro-http version %v\n", Version)
}

// buildStage resolves the stage config to a wrapper, nil for a bench
// without one
func buildStage(cfg config) *stage.Stage {
	if cfg.Sim {
		return stage.New(stage.KindOptoSigma, &stage.MockRotator{})
	}
	switch strings.ToLower(cfg.Stage.Kind) {
	case "":
		return nil
	case "gsc01":
		return stage.New(stage.KindOptoSigma, optosigma.NewGSC01(cfg.Stage.Port))
	case "k10cr2":
		return stage.New(stage.KindThorlabsK10CR2, thorlabs.NewK10CR2(cfg.Stage.Port))
	}
	log.Fatalf("unknown stage kind %q, want gsc01 or k10cr2", cfg.Stage.Kind)
	return nil
}

// buildController assembles the full bench from the config
func buildController(cfg config) *spectrometer.Controller {
	st := buildStage(cfg)
	if cfg.Sim {
		dm := spectrometer.NewMockManager(spectrometer.NewMockMono(), spectrometer.NewMockCCD())
		return spectrometer.NewController(dm, st)
	}
	dm := spectrometer.ICLManager{DeviceManager: icl.NewDeviceManager(cfg.ICLAddr)}
	return spectrometer.NewController(dm, st)
}

// connectWithSpinner brings the bench up with terminal feedback; the mono
// can take minutes when it has to home
func connectWithSpinner(ctl *spectrometer.Controller) error {
	scfg := yacspin.Config{
		Frequency:     100 * time.Millisecond,
		CharSet:       yacspin.CharSets[59],
		Suffix:        " connecting to spectrometer",
		StopCharacter: "OK",
		StopColors:    []string{"fgGreen"},
	}
	spinner, err := yacspin.New(scfg)
	if err != nil {
		// cosmetics only, connect without it
		return ctl.ConnectHardware()
	}
	spinner.Start()
	err = ctl.ConnectHardware()
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}
	spinner.Stop()
	return nil
}

// buildRouter binds the device route table into a goji mux guarded by the
// lock middleware and mounts it under stem on a chi root router.  goji
// matches the full request path, so the stem is peeled off with
// StripPrefix before requests reach it.
func buildRouter(w server.HTTPer, l *locker.Locker, root string) http.Handler {
	mux := goji.NewMux()
	mux.Use(l.Check)
	w.RT().Bind(mux)
	stem := generichttp.MountStem(root)
	if stem == "/" {
		return mux
	}
	rootR := chi.NewRouter()
	rootR.Mount(stem, http.StripPrefix(stem, mux))
	return rootR
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)
	ctl := buildController(cfg)
	if err := connectWithSpinner(ctl); err != nil {
		log.Fatalf("connect: %v", err)
	}

	w := spectro.NewHTTPWrapper(ctl, cfg.ExcitationNm)
	l := locker.New()
	locker.Inject(w, l)
	handler := buildRouter(w, l, cfg.Root)

	// put the hardware away on ctrl-c
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Print("shutting down")
		if err := ctl.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
		os.Exit(0)
	}()

	log.Println("now listening for requests at", cfg.Addr+generichttp.MountStem(cfg.Root))
	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}

// scan soak tests the bench, taking repeated acquisitions at a fixed pace
func scan() {
	cfg := config{}
	k.Unmarshal("", &cfg)
	ctl := buildController(cfg)
	if err := connectWithSpinner(ctl); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() {
		if err := ctl.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	lim := rate.NewLimiter(rate.Limit(cfg.Scan.PerSecond), 1)
	ctx := context.Background()
	for i := 0; i < cfg.Scan.Count; i++ {
		if err := lim.Wait(ctx); err != nil {
			log.Fatal(err)
		}
		start := time.Now()
		res, err := ctl.AcquireSpectrum(cfg.Acquisition)
		if err != nil {
			log.Fatalf("acquisition %d: %v", i+1, err)
		}
		log.Printf("acquisition %d/%d: %d samples in %v", i+1, cfg.Scan.Count, len(res.Wavelengths), time.Since(start).Round(time.Millisecond))
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "version":
		pversion()
		return
	case "run":
		run()
		return
	case "scan":
		scan()
		return
	default:
		root()
	}
}
