package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	log.SetFlags(0)

	listenHost := flag.String("listen-host", "", "Address to listen on. Overrides the default and any configuration file.")
	listenPort := flag.String("listen-port", "", "Port to listen on. Overrides the default and any configuration file.")
	confFile := flag.String("conf", "", "Configuration file. Optional; flags and defaults apply if omitted.")
	flag.Parse()

	config := defaultConfig()

	if *confFile != "" {
		var err error
		config, err = loadConfigFile(*confFile, config)
		if err != nil {
			log.Fatalf("unable to load configuration file: %s", err)
		}
	}

	if *listenHost != "" {
		config.ListenHost = *listenHost
	}
	if *listenPort != "" {
		config.ListenPort = *listenPort
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("received %s, shutting down", sig)
		cancel()
	}()

	server := NewServer(config)
	if err := server.Serve(ctx); err != nil {
		log.Fatalf("server error: %s", err)
	}

	log.Printf("Server shutdown cleanly.")
}
