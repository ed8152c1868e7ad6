package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"github.com/deevus/clinic-tui/app"
	"github.com/deevus/clinic-tui/config"
	"github.com/deevus/clinic-tui/nav"
	"github.com/deevus/clinic-tui/source"
	"github.com/deevus/clinic-tui/source/kafka"
	"github.com/deevus/clinic-tui/source/postgres"
	"github.com/spf13/pflag"
)

func main() {
	clinicFlag := pflag.String("clinic", "", "clinic profile name from config")
	configFlag := pflag.String("config", config.DefaultPath(), "path to config file")
	logFlag := pflag.String("log-file", config.DefaultLogPath(), "path to log file")
	pflag.Parse()

	cfg, err := config.LoadFrom(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	clinicName := *clinicFlag
	if clinicName == "" {
		names := cfg.ClinicNames()
		if len(names) == 1 {
			clinicName = names[0]
		} else {
			fmt.Fprintf(os.Stderr, "Multiple clinics configured. Use --clinic flag.\nAvailable: %v\n", names)
			os.Exit(1)
		}
	}

	clinic, ok := cfg.Clinics[clinicName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: clinic %q not found in config\n", clinicName)
		os.Exit(1)
	}

	loc, err := clinic.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logFile, err := openLog(*logFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	scanCtx, cancelScan := context.WithTimeout(context.Background(), 5*time.Second)
	tunnel, err := tunnelConfig(scanCtx, clinicName, clinic.SSH, postgres.ScanHostKey)
	cancelScan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	root := app.New(app.Params{
		Connect: func(ctx context.Context) (source.Source, io.Closer, error) {
			return connect(ctx, clinic, tunnel)
		},
		ClinicName:  clinicName,
		StaffName:   clinic.StaffName,
		DefaultView: nav.ViewID(clinic.DefaultView),
		Location:    loc,
	})

	vxApp, err := vxfw.NewApp(vaxis.Options{})
	if err != nil {
		log.Fatal(err)
	}
	root.SetPostEvent(vxApp.PostEvent)

	runErr := vxApp.Run(root)
	if err := root.Close(); err != nil {
		log.Printf("closing %s: %v", clinicName, err)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// connect opens the clinic database, through the SSH tunnel when one is
// configured, and picks the change feed transport.
func connect(ctx context.Context, clinic config.ClinicConfig, tunnel *postgres.SSHConfig) (source.Source, io.Closer, error) {
	var closers closeAll
	pgCfg := postgres.Config{DSN: clinic.Database.DSN()}

	if tunnel != nil {
		client, err := postgres.DialSSH(*tunnel)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, client)
		pgCfg.Dialer = postgres.TunnelDialer{Client: client}
	}

	db, err := postgres.Open(ctx, pgCfg)
	if err != nil {
		closers.Close()
		return nil, nil, fmt.Errorf("connecting to %s: %w", clinic.Database.Host, err)
	}
	closers = append(closers, db)

	if clinic.ChangeFeed != config.FeedKafka {
		log.Printf("connected to %s, change feed: postgres", clinic.Database.Host)
		return db, closers, nil
	}

	feed, err := kafka.NewFeed(kafka.Config{
		Brokers:     clinic.Kafka.Brokers,
		TopicPrefix: clinic.Kafka.TopicPrefix,
	})
	if err != nil {
		closers.Close()
		return nil, nil, err
	}
	log.Printf("connected to %s, change feed: kafka %v", clinic.Database.Host, clinic.Kafka.Brokers)
	return source.Combine(db, feed), closers, nil
}

// closeAll closes its members last first.
type closeAll []io.Closer

func (c closeAll) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
