package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type config struct {
	host            string
	port            int
	dir             string
	strict          bool
	sync            bool
	archive         bool
	retention       time.Duration
	cleanInterval   time.Duration
	tokenHash       string
	hashToken       string
	shutdownTimeout time.Duration
}

func (cfg config) addr() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func parseFlags(args []string, output io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("jsonsink", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.host, "host", "127.0.0.1", "Host to listen on")
	fs.IntVar(&cfg.port, "port", 5000, "HTTP port to listen on")
	fs.StringVar(&cfg.dir, "dir", "logs", "Directory to store log files")
	fs.BoolVar(&cfg.strict, "strict", false, "Reject payloads that are not valid JSON")
	fs.BoolVar(&cfg.sync, "sync", false, "fsync the log file after every append")
	fs.BoolVar(&cfg.archive, "archive", false, "Compress finalized logs from previous runs at startup")
	fs.DurationVar(&cfg.retention, "retention", 0, "Delete log files older than this (e.g. 168h, 0 disables)")
	fs.DurationVar(&cfg.cleanInterval, "clean-interval", time.Hour, "How often the retention cleaner runs")
	fs.StringVar(&cfg.tokenHash, "token-hash", "", "bcrypt hash of the bearer token required by clients")
	fs.StringVar(&cfg.hashToken, "hash-token", "", "Print the bcrypt hash of this token and exit")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Deadline for draining requests on shutdown")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if err := cfg.validate(fs); err != nil {
		fmt.Fprintln(output, err)
		return config{}, err
	}
	return cfg, nil
}

func (cfg config) validate(fs *flag.FlagSet) error {
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.port < 0 || cfg.port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.port)
	}
	if cfg.retention < 0 {
		return fmt.Errorf("invalid retention %v", cfg.retention)
	}
	if cfg.retention > 0 && cfg.cleanInterval <= 0 {
		return fmt.Errorf("invalid clean interval %v", cfg.cleanInterval)
	}
	return nil
}
