package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ali-hajj/youware-source-code/internal/license"
)

const defaultSerial = "ABC123-XYZ789"

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		logrus.Fatal(failureMessage(err))
	}
}

// failureMessage renders the line printed before exiting non-zero.
func failureMessage(err error) string {
	var licErr *license.Error
	if errors.As(err, &licErr) {
		return fmt.Sprintf("license verification failed: %v", err)
	}
	return fmt.Sprintf("licensecheck: %v", err)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("licensecheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		endpoint = fs.String("endpoint", "", "License check URL (env LICENSE_ENDPOINT)")
		timeout  = fs.Duration("timeout", 0, "Request timeout (env LICENSE_TIMEOUT, default 5s)")
		verbose  = fs.Bool("v", false, "Enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("expected at most one serial, got %d arguments", fs.NArg())
	}

	serial := defaultSerial
	if fs.NArg() == 1 {
		serial = fs.Arg(0)
	}

	if err := loadEnvDefaults(endpoint, timeout); err != nil {
		return err
	}

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	checker := license.NewChecker(license.Config{
		Endpoint: *endpoint,
		Timeout:  *timeout,
		Output:   stdout,
	})
	logrus.WithFields(logrus.Fields{
		"endpoint": checker.Endpoint(),
		"serial":   strings.TrimSpace(serial),
	}).Debug("verifying license")

	_, err := checker.Verify(ctx, serial)
	return err
}

func loadEnvDefaults(endpoint *string, timeout *time.Duration) error {
	if strings.TrimSpace(*endpoint) == "" {
		if v := strings.TrimSpace(os.Getenv("LICENSE_ENDPOINT")); v != "" {
			*endpoint = v
		} else {
			*endpoint = license.DefaultEndpoint
		}
	}
	if *timeout <= 0 {
		*timeout = license.DefaultTimeout
		if v := strings.TrimSpace(os.Getenv("LICENSE_TIMEOUT")); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse LICENSE_TIMEOUT: %w", err)
			}
			*timeout = d
		}
	}
	return nil
}
