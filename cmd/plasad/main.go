package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/viper"

	"plasa/consensus/conductor"
	"plasa/facts"
	"plasa/messaging/viewserver"
	"plasa/plasa"
)

func main() {
	delve := false
	deadlock.Opts.DisableLockOrderDetection = true
	deadlock.Opts.DeadlockTimeout = time.Millisecond * 30000

	conf := viper.New()
	plasa.InitConfig(conf)
	config := plasa.LoadConfig(conf)
	plasa.SetLogLevel(config.LogLevel)
	if config.Registry == "" {
		plasa.LogCLI("no registry address configured, set registry in "+config.RootDir+"config.yaml", 0)
	}

	// the terminator channel blocks until shutdown, anything requiring a clean shutdown should
	// wait on this channel and clean up when it stops blocking.
	terminator := make(chan struct{})
	wg := &sync.WaitGroup{}

	// interrupt: see cliListener
	interrupt := make(chan struct{})

	c := startServices(terminator, wg, config)
	if delve {
		deadlock.Opts.Disable = true
	} else {
		go cliListener(interrupt, c)
	}

	plasa.LogCLI("Waiting for terminate signal, press q to quit", 4)
	<-interrupt
	close(terminator)
	wg.Wait()
	os.Exit(0)
}

// startServices loads the fact source and starts everything that runs during
// normal operation.
func startServices(terminator chan struct{}, wg *sync.WaitGroup, config plasa.Config) *conductor.Conductor {
	path := config.FactsFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(config.RootDir, path)
	}
	ledger, err := facts.LoadLedger(path)
	if err != nil {
		plasa.LogCLI(fmt.Sprintf("could not load facts from %s: %s", path, err), 0)
	}
	src, err := facts.NewCache(ledger, config.FactCacheSize)
	if err != nil {
		plasa.LogCLI(err.Error(), 0)
	}
	c := conductor.New(src, config)
	c.Start(terminator, wg, config.PollInterval)
	viewserver.New(c).Start(config.ListenAddr, terminator, wg)
	return c
}
