package cli

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/firmadoc/pdfmerge/config"
	"github.com/firmadoc/pdfmerge/merge"
	"github.com/firmadoc/pdfmerge/server"
)

func ServeCommand() {
	serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)

	var configPath string
	var listenAddr string

	serveFlags.StringVar(&configPath, "config", "", "Path to the TOML config file")
	serveFlags.StringVar(&listenAddr, "listen", "", "Listen address, overrides the config file")

	serveFlags.Usage = func() {
		fmt.Printf("Usage: %s serve [options]\n\n", os.Args[0])
		fmt.Println("Run the HTTP merge service")
		fmt.Println("\nOptions:")
		serveFlags.PrintDefaults()
	}

	if err := serveFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse serve flags: %v", err)
		osExit(1)
	}

	// A .env file may carry the config location.
	_ = godotenv.Load()

	config.Settings = config.Default()
	if configPath == "" {
		configPath = os.Getenv("PDFMERGE_CONFIG")
	}
	if configPath != "" {
		if err := config.Read(configPath); err != nil {
			log.Println(err)
			osExit(1)
			return
		}
	}
	if listenAddr != "" {
		config.Settings.ListenAddr = listenAddr
	}

	Serve(config.Settings)
}

// Serve is a variable so tests can intercept it.
var Serve = serveImpl

func serveImpl(settings config.Config) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	merger := merge.New()
	merger.Logger = logger
	merger.CompressLevel = settings.CompressLevel
	merger.MaxImagePixels = settings.MaxImagePixels
	merger.MinBoxWidth = settings.MinBoxWidth
	merger.MinBoxHeight = settings.MinBoxHeight

	handler := server.New(logger, merger, settings.MaxUploadBytes)

	logger.WithField("addr", settings.ListenAddr).Info("listening")
	if err := http.ListenAndServe(settings.ListenAddr, handler); err != nil {
		logger.WithError(err).Error("server stopped")
		osExit(1)
	}
}
