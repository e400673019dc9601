// Command target is a local HTTP server for exercising ratebench by hand.
//
//	/                 200 OK
//	/status/{code}    responds with the given status code
//	/slow?ms=N        sleeps N milliseconds, then 200 OK
//	/reset            aborts the connection with a TCP RST
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"

	"github.com/torosent/ratebench/internal/logging"
)

func main() {
	addr := pflag.String("addr", "127.0.0.1:8080", "Listening address")
	logLevel := pflag.String("log-level", "info", "Log level")
	pflag.Parse()

	logger, err := logging.New(os.Stderr, logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	level.Info(logger).Log("msg", "target server listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err)
		os.Exit(1)
	}
}

func newMux(logger log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "invalid status code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
	})
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		ms, _ := strconv.Atoi(r.URL.Query().Get("ms"))
		time.Sleep(time.Duration(ms) * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /reset", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "hijacking not supported", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			level.Warn(logger).Log("msg", "hijack failed", "err", err)
			return
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		conn.Close()
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
