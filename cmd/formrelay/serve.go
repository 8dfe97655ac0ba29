package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/formrelay/internal/page"
	"github.com/muurk/formrelay/internal/server"
	"github.com/muurk/formrelay/internal/submit"
	"github.com/muurk/formrelay/internal/ui"
)

// Server command flags
var (
	serveHost        string
	servePort        int
	serveAdvertise   bool
	serveServiceName string
	serveTLSCert     string
	serveTLSKey      string
)

var serveCmd = &cobra.Command{
	Use:   "serve <page.html>",
	Short: "Serve a page and relay its form submissions",
	Long: `Serve the page over HTTP and relay posts to its forms.

Browsers post to /forms/{id}; the relay submits to the provider, updates
the page's regions and redirects back to /. Clients that send
Accept: application/json get the resulting state as JSON instead. Every
state change is pushed to websocket subscribers of /forms/{id}/events, and
Prometheus metrics are exposed on /metrics.

Flags override the server section of the config file. Pass both --tls-cert
and --tls-key to serve HTTPS.`,
	Example: `  # Serve on the configured address (default 127.0.0.1:8080)
  formrelay serve index.html

  # Listen on all interfaces and announce over mDNS
  formrelay serve index.html --host 0.0.0.0 --advertise

  # HTTPS
  formrelay serve index.html --port 8443 --tls-cert cert.pem --tls-key key.pem`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Announce the relay over mDNS")
	serveCmd.Flags().StringVar(&serveServiceName, "service-name", "", "mDNS instance name (overrides server.service_name)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "Path to TLS private key file")

	rootCmd.AddCommand(serveCmd)
}

// serverConfig merges the config file's server section with the flags the
// user actually set.
func serverConfig(cmd *cobra.Command) (*server.Config, error) {
	sc := &server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Advertise:   cfg.Server.Advertise,
		ServiceName: cfg.Server.ServiceName,
		TLSCert:     cfg.Server.TLSCert,
		TLSKey:      cfg.Server.TLSKey,
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		sc.Host = serveHost
	}
	if flags.Changed("port") {
		sc.Port = servePort
	}
	if flags.Changed("advertise") {
		sc.Advertise = serveAdvertise
	}
	if flags.Changed("service-name") {
		sc.ServiceName = serveServiceName
	}
	if flags.Changed("tls-cert") || flags.Changed("tls-key") {
		sc.TLSCert = serveTLSCert
		sc.TLSKey = serveTLSKey
	}

	if (sc.TLSCert == "") != (sc.TLSKey == "") {
		return nil, fmt.Errorf("both --tls-cert and --tls-key must be provided together")
	}
	if sc.Port < 0 || sc.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", sc.Port)
	}
	return sc, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	sc, err := serverConfig(cmd)
	if err != nil {
		return err
	}

	doc, err := page.ParseFile(args[0])
	if err != nil {
		return err
	}

	ctrl := submit.NewController(submit.OptionsFromConfig(cfg))
	regs := ctrl.Attach(doc)

	srv, err := server.New(sc, doc, ctrl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	scheme := "http"
	if sc.TLSCert != "" {
		scheme = "https"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader(ui.NewHeader("Form Relay", "formrelay serve",
		ui.Param{Key: "Page", Value: args[0]},
		ui.Param{Key: "Forms", Value: strconv.Itoa(len(regs))},
		ui.Param{Key: "Listen", Value: fmt.Sprintf("%s://%s:%d", scheme, sc.Host, sc.Port)},
		ui.Param{Key: "mDNS", Value: strconv.FormatBool(sc.Advertise)},
	))

	cmd.SilenceUsage = true
	return srv.Start(cmd.Context())
}
