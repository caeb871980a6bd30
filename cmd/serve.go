package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alantheprice/yardcheck/pkg/webui"
)

var (
	serveAddr     string
	serveFindPort bool
	serveRunLogs  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and JSON API",
	Long: `Starts the HTTP server that backs the browser UI. Endpoints:
  POST /analyze_landscaping    initial project report
  POST /generate_final_report  final verification report
  POST /suggest_tasks          task ideas from the before photo
  POST /chat_query             follow-up questions
  GET  /ws                     progress events and chat frames`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices()
		if err != nil {
			return err
		}

		addr := svc.cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if serveFindPort {
			addr = freeAddr(addr)
		}

		ctx, cancel := signalContext()
		defer cancel()

		if serveRunLogs {
			stop := svc.recordRun("serve")
			defer stop()
		}

		server := webui.NewWebServer(webui.Options{
			Pipeline: svc.pipeline,
			Chat:     svc.chat,
			Events:   svc.events,
			Logger:   svc.logger,
			Addr:     addr,
		})
		if err := server.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("Yardcheck listening on http://%s (vision: %s, text: %s)\n", server.Addr(), svc.cfg.VisionModel, svc.cfg.TextModel)

		<-ctx.Done()
		return server.Shutdown()
	},
}

// freeAddr moves addr to the next free port when its port is taken.
func freeAddr(addr string) string {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 || webui.CheckPortAvailable(port) {
		return addr
	}
	return net.JoinHostPort(host, strconv.Itoa(webui.FindAvailablePort(port)))
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr from config)")
	serveCmd.Flags().BoolVar(&serveFindPort, "find-port", false, "use the next free port if the configured one is taken")
	serveCmd.Flags().BoolVar(&serveRunLogs, "run-log", false, "record progress events to a JSONL run log")
}
