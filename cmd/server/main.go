package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"redisserver/internal/config"
	"redisserver/internal/server"
)

func main() {
	dir := flag.String("dir", ".", "snapshot directory")
	dbfilename := flag.String("dbfilename", "dump.rdb", "snapshot file name")
	port := flag.Int("port", 6379, "listen port")
	replicaof := flag.String("replicaof", "", "upstream master as \"<host> <port>\"")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Default()
	cfg.Dir = *dir
	cfg.DBFilename = *dbfilename
	cfg.Port = *port

	if *replicaof != "" {
		host, portStr, err := splitReplicaof(*replicaof)
		if err != nil {
			log.WithError(err).Fatal("invalid --replicaof")
		}
		masterPort, err := strconv.Atoi(portStr)
		if err != nil {
			log.WithError(err).Fatal("invalid --replicaof port")
		}
		cfg.Role = config.RoleReplica
		cfg.MasterHost = host
		cfg.MasterPort = masterPort
	}

	srv := server.New(cfg, log)
	srv.LoadSnapshot()

	if err := srv.Listen(); err != nil {
		log.WithError(err).Error("failed to bind listener")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

// splitReplicaof parses the single whitespace-separated "<host> <port>"
// token spec.md §6 mandates for --replicaof.
func splitReplicaof(raw string) (host, port string, err error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return "", "", errors.New(`--replicaof must be "<host> <port>"`)
	}
	return fields[0], fields[1], nil
}
