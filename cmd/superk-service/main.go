// The superk-service command starts one equipment service and registers it
// with the network manager. The equipment alias selects which device wrapper
// to run.
//
// Usage:
//
//	superk-service [-dev] [-listen addr] [-advertise host] /path/to/config.xml <alias>
//
// With -dev the service runs against a simulated device, which is useful for
// exercising the RPC surface without the hardware attached.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
	"github.com/MSLNZ/pr-superk-mono/internal/filterwheel"
	"github.com/MSLNZ/pr-superk-mono/internal/httputil"
	"github.com/MSLNZ/pr-superk-mono/internal/monochromator"
	"github.com/MSLNZ/pr-superk-mono/internal/nkt"
	"github.com/MSLNZ/pr-superk-mono/internal/serialport"
	"github.com/MSLNZ/pr-superk-mono/internal/service"
	"github.com/MSLNZ/pr-superk-mono/internal/superk"
)

var (
	devMode   = flag.Bool("dev", false, "run against a simulated device")
	listen    = flag.String("listen", "localhost:0", "listen address for the RPC surface")
	advertise = flag.String("advertise", "", "host to advertise to the manager (default: the listen host)")
)

func promptExit(format string, args ...interface{}) {
	fmt.Printf(format, args...)
	fmt.Print("\n\nPress <ENTER> to exit ...")
	bufio.NewReader(os.Stdin).ReadString('\n')
	os.Exit(1)
}

// serialOptions builds the serial connection parameters from the connection
// properties of an equipment record.
func serialOptions(record *equipment.Record) serialport.Options {
	return serialport.Options{
		BaudRate: record.IntProperty("baud_rate", 0),
		DataBits: record.IntProperty("data_bits", 0),
		StopBits: record.IntProperty("stop_bits", 0),
		Parity:   record.StringProperty("parity", ""),
	}
}

// disconnecter is the shutdown surface shared by the device wrappers.
type disconnecter interface {
	Disconnect() error
}

// buildService constructs the wrapper matching the equipment alias and binds
// it to the RPC layer.
func buildService(record *equipment.Record, dev bool) (*service.Base, disconnecter, error) {
	switch record.Alias {
	case "superk":
		var conn superk.Connection
		if dev {
			conn = nkt.NewSimulator(nkt.ModuleTypeFianiumG3, record.Serial)
		} else {
			c, err := nkt.Dial(record.Connection.Address, serialOptions(record))
			if err != nil {
				return nil, nil, err
			}
			conn = c
		}
		laser, err := superk.New(record, conn)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return service.NewSuperK(laser), laser, nil

	case "mono-hrs":
		var ctrl monochromator.Controller
		if dev {
			ctrl = monochromator.NewSimController()
		} else {
			c, err := monochromator.DialController(record.Connection.Address, serialOptions(record))
			if err != nil {
				return nil, nil, err
			}
			ctrl = c
		}
		mono, err := monochromator.New(record, ctrl)
		if err != nil {
			ctrl.Close()
			return nil, nil, err
		}
		return service.NewHRS(mono), mono, nil

	case "nd-wheel":
		var ctrl filterwheel.Controller
		if dev {
			ctrl = filterwheel.NewSim()
		} else {
			c, err := filterwheel.DialController(record.Connection.Address, serialOptions(record))
			if err != nil {
				return nil, nil, err
			}
			ctrl = c
		}
		wheel, err := filterwheel.New(record, ctrl)
		if err != nil {
			ctrl.Close()
			return nil, nil, err
		}
		return service.NewFW212C(wheel), wheel, nil
	}

	return nil, nil, fmt.Errorf("unhandled equipment alias %q", record.Alias)
}

// managerURL builds the base URL of the manager from the configuration.
func managerURL(cfg *equipment.ManagerConfig) string {
	scheme := "https"
	if cfg.DisableTLS {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// managerHTTPClient returns the client used to talk to the manager. The
// manager runs with a lab-local self-signed certificate when TLS is on.
func managerHTTPClient(cfg *equipment.ManagerConfig) httputil.HTTPClient {
	if cfg.DisableTLS {
		return httputil.NewStandardClient(nil)
	}
	return httputil.NewStandardClient(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		promptExit("You must specify the path to a config.xml file")
	}
	if flag.NArg() < 2 {
		promptExit("You must specify an equipment alias")
	}
	path, alias := flag.Arg(0), flag.Arg(1)
	if _, err := os.Stat(path); err != nil {
		promptExit("File not found: %s", path)
	}

	cfg, err := equipment.Load(path)
	if err != nil {
		promptExit("%v", err)
	}

	record, err := cfg.Find(alias)
	if err != nil {
		promptExit("%v", err)
	}

	svc, device, err := buildService(record, *devMode)
	if err != nil {
		promptExit("%v", err)
	}

	listener, err := net.Listen("tcp", *listen)
	if err != nil {
		device.Disconnect()
		promptExit("failed to listen on %s: %v", *listen, err)
	}

	host := *advertise
	if host == "" {
		if host, _, err = net.SplitHostPort(*listen); err != nil || host == "" {
			host = "localhost"
		}
	}
	port := listener.Addr().(*net.TCPAddr).Port
	address := fmt.Sprintf("http://%s:%d", host, port)

	mc := service.NewManagerClient(managerURL(&cfg.Manager), managerHTTPClient(&cfg.Manager))
	if err := mc.WaitForManager(10 * time.Second); err != nil {
		device.Disconnect()
		promptExit("%v", err)
	}

	linkID, err := mc.Register(svc.Name(), address)
	if err != nil {
		device.Disconnect()
		promptExit("%v", err)
	}
	log.Printf("service %q serving %s at %s", svc.Name(), record, address)

	server := &http.Server{Handler: svc.ServeMux()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- server.Serve(listener) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down service %q", svc.Name())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down cleanly: %v", err)
		}
	}

	if err := mc.Unregister(svc.Name(), linkID); err != nil {
		log.Printf("%v", err)
	}
	if err := device.Disconnect(); err != nil {
		log.Printf("failed to disconnect from %s: %v", record.Alias, err)
	}
}
