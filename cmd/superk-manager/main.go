// The superk-manager command starts the network manager process that the
// equipment services register with. Remote callers reach every service
// through this one address.
//
// Usage:
//
//	superk-manager /path/to/config.xml
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
	"github.com/MSLNZ/pr-superk-mono/internal/manager"
)

// promptExit reports a startup failure to the operator, waits for an ENTER
// keypress so the message is not lost when the console window closes, and
// exits with a non-zero status.
func promptExit(format string, args ...interface{}) {
	fmt.Printf(format, args...)
	fmt.Print("\n\nPress <ENTER> to exit ...")
	bufio.NewReader(os.Stdin).ReadString('\n')
	os.Exit(1)
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		promptExit("You must specify the path to a config.xml file")
	}
	path := flag.Arg(0)
	if _, err := os.Stat(path); err != nil {
		promptExit("File not found: %s", path)
	}

	cfg, err := equipment.Load(path)
	if err != nil {
		promptExit("%v", err)
	}

	m := manager.New(manager.WithDebug(cfg.Manager.Debug))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Manager.Port),
		Handler: m.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		if cfg.Manager.DisableTLS {
			log.Printf("manager listening on %s", server.Addr)
			errc <- server.ListenAndServe()
		} else {
			log.Printf("manager listening on %s (TLS)", server.Addr)
			errc <- server.ListenAndServeTLS(cfg.Manager.CertFile, cfg.Manager.KeyFile)
		}
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			promptExit("%v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down the manager")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down cleanly: %v", err)
		}
	}
}
