package flags

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/tarium/godds/pkg/version"
)

// ConfigureAndParse adds flags that are common to all go processes. This
// func parses args with the given FlagSet, so it should be called after
// all other flags have been configured.
func ConfigureAndParse(cmd *pflag.FlagSet, args []string) error {
	logLevel := cmd.String("log-level", log.InfoLevel.String(),
		"log level, must be one of: panic, fatal, error, warn, info, debug")
	printVersion := cmd.Bool("version", false, "print version and exit")

	if err := cmd.Parse(args); err != nil {
		return err
	}

	SetLogLevel(*logLevel)
	maybePrintVersionAndExit(*printVersion)
	return nil
}

// SetLogLevel applies a logrus level by name, aborting on an unknown
// level.
func SetLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("invalid log-level: %s", logLevel)
	}
	log.SetLevel(level)
}

func maybePrintVersionAndExit(printVersion bool) {
	if printVersion {
		fmt.Println(version.Version)
		os.Exit(0)
	}
	log.Infof("running version %s", version.Version)
}
