package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/karlmutch/errors"

	logxi "github.com/mgutz/logxi/v1" // Using a forked copy of this package results in build issues

	"github.com/karlmutch/envflag" // Forked copy of https://github.com/GoBike/envflag

	"github.com/tristanseifert/lichtenstein-server/command"
	"github.com/tristanseifert/lichtenstein-server/config"
	"github.com/tristanseifert/lichtenstein-server/model"
	"github.com/tristanseifert/lichtenstein-server/output"
	"github.com/tristanseifert/lichtenstein-server/render"
	"github.com/tristanseifert/lichtenstein-server/store"
	"github.com/tristanseifert/lichtenstein-server/version"
)

var (
	logger = logxi.New("lichtenstein")

	cfgPath = flag.String("config", "lichtenstein.yaml", "Path to the server configuration file")
	verbose = flag.Bool("v", false, "When enabled will print internal logging for this tool")
)

func usage() {
	fmt.Fprintln(os.Stderr, path.Base(os.Args[0]))
	fmt.Fprintln(os.Stderr, "usage: ", os.Args[0], "[options]       addressable lighting controller      ", version.GitHash, "    ", version.BuildTime)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "lichtenstein-server renders effect routines into a shared framebuffer and")
	fmt.Fprintln(os.Stderr, "delivers slices of it to OPC output nodes driving LED strips")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment Variables:")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options can also be extracted from environment variables by changing dashes '-' to underscores and using upper case.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "log levels are handled by the LOGXI env variables, these are documented at https://github.com/mgutz/logxi")
}

func init() {
	flag.Usage = usage
}

func main() {

	// Parse the CLI flags
	if !flag.Parsed() {
		envflag.Parse()
	}

	if *verbose {
		logger.SetLevel(logxi.LevelDebug)
	}

	logger.Debug(fmt.Sprintf("%s built at %s, against commit id %s", os.Args[0], version.BuildTime, version.GitHash))

	if err := config.Load(*cfgPath); err != nil {
		logger.Error("could not read configuration", "error", err.Error())
		os.Exit(-1)
	}

	st, err := store.Open(config.GetString("store.path", "lichtenstein.db"))
	if err != nil {
		logger.Error("could not open data store", "error", err.Error())
		os.Exit(-1)
	}

	if err := render.Start(); err != nil {
		logger.Error("could not start render pipeline", "error", err.Error())
		st.Close()
		os.Exit(-1)
	}

	restoreMappings(st)

	quitC := make(chan struct{})
	errorC := make(chan errors.Error, 5)
	go errorWatch(errorC, quitC)

	if err := output.Start(st, render.Shared().Framebuffer(), errorC, quitC); err != nil {
		logger.Warn("output workers could not be started", "error", err.Error())
	}

	cmdSrv := command.NewServer(config.GetString("command.listen", ":7420"), st)
	if err := cmdSrv.Start(); err != nil {
		logger.Error("could not start command server", "error", err.Error())
		render.Stop()
		st.Close()
		os.Exit(-1)
	}

	// Wait for a signal and then unwind everything: output workers first,
	// then the command server, the pipeline and the store
	stopC := make(chan os.Signal, 1)
	signal.Notify(stopC, os.Interrupt, syscall.SIGTERM)
	<-stopC

	logger.Debug("server shutting down")

	close(quitC)

	if err := cmdSrv.Stop(); err != nil {
		logger.Warn(err.Error())
	}

	render.Stop()

	if err := st.Close(); err != nil {
		logger.Warn(err.Error())
	}
}

// restoreMappings re-adds the effect mapping of every enabled group that had
// a routine installed when the server last shut down.
func restoreMappings(st *store.Store) {
	groups, err := st.AllGroups()
	if err != nil {
		logger.Warn("could not restore mappings", "error", err.Error())
		return
	}

	pipeline := render.Shared()

	// groups sharing a routine come back as one multi group mapping
	byRoutine := map[int][]model.Group{}
	for _, g := range groups {
		if !g.Enabled || g.CurrentRoutine == 0 {
			continue
		}
		byRoutine[g.CurrentRoutine] = append(byRoutine[g.CurrentRoutine], g)
	}

	for routineID, members := range byRoutine {
		routine, err := st.GetRoutine(routineID)
		if err != nil {
			logger.Warn("stored mapping references a missing routine", "routine", routineID)
			continue
		}

		numPixels := 0
		for i := range members {
			numPixels += members[i].NumPixels()
		}

		renderable, err := render.NewEffect(routine.Effect, routine.Params, numPixels)
		if err != nil {
			logger.Warn("stored mapping references a bad effect", "routine", routineID, "error", err.Error())
			continue
		}

		if len(members) == 1 {
			_, err = pipeline.AddGroup(renderable, members[0])
		} else {
			_, err = pipeline.AddGroups(renderable, members)
		}
		if err != nil {
			logger.Warn("could not restore mapping", "routine", routineID, "error", err.Error())
			continue
		}

		logger.Debug("mapping restored", "routine", routineID, "groups", len(members))
	}
}

// errorWatch relays asynchronous errors from the output workers to the log.
func errorWatch(errorC <-chan errors.Error, quitC <-chan struct{}) {
	// collapse repeated failures so a dead node does not flood the log
	var lastMsg string
	var lastAt time.Time

	for {
		select {
		case err := <-errorC:
			if err == nil {
				continue
			}
			if err.Error() == lastMsg && time.Since(lastAt) < 30*time.Second {
				continue
			}
			lastMsg = err.Error()
			lastAt = time.Now()

			logger.Warn(err.Error())
		case <-quitC:
			return
		}
	}
}
