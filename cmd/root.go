/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/uart"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modemlink",
	Short: "Talk to a cellular modem over its AT serial port",
	Long: `modemlink drives the serial transport a modem protocol layer sits on.

It opens the modem's UART through one of three line backends, pumps received
data through the transport's drain thread and sends with bounded waits.

Backends:
  termios  Linux termios with hardware flow control (default)
  bugst    portable go.bug.st/serial line, no flow control
  sim      in-process modem answering basic AT commands

Settings come from flags, MODEMLINK_* environment variables and
$HOME/.modemlink.yaml or ./modemlink.yaml, in that order of precedence.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := modemlink.DefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.modemlink.yaml or ./modemlink.yaml)")
	pf.StringP("device", "d", "/dev/ttyUSB2", "Modem AT port")
	pf.String("backend", "termios", "Line backend: termios, bugst, sim")
	pf.IntP("baud", "b", defaults.Line.BaudRate, "Baud rate")
	pf.StringP("flow-control", "f", defaults.Line.FlowControl.String(), "Flow control: none, rts, cts, rtscts")
	pf.Int("rx-timeout", defaults.RxTimeout, "Receive idle timeout in symbol times (0 disables)")
	pf.String("close-mode", defaults.CloseMode.String(), "Close mode: graceful, forced")
	pf.Duration("close-timeout", defaults.CloseTimeout, "Longest a graceful close waits for the drain thread")
	pf.Duration("send-timeout", time.Second, "Longest a send waits for the line to drain")

	for _, name := range []string{"device", "backend", "baud", "flow-control", "rx-timeout", "close-mode", "close-timeout", "send-timeout"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			glog.Fatalf("binding flag %s: %v", name, err)
		}
	}

	// glog registers -v, -logtostderr and friends on the Go flag set.
	pf.AddGoFlagSet(flag.CommandLine)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil && fileExists(filepath.Join(home, ".modemlink.yaml")) {
		viper.SetConfigFile(filepath.Join(home, ".modemlink.yaml"))
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("modemlink")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MODEMLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			glog.Warningf("reading config: %v", err)
		}
		return
	}
	glog.V(1).Infof("using config file %s", viper.ConfigFileUsed())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// deviceArg lets an optional positional argument override --device.
func deviceArg(args []string) {
	if len(args) > 0 && args[0] != "" {
		viper.Set("device", args[0])
	}
}

// portErrorHint explains the failures users most often hit when opening.
func portErrorHint(err error) string {
	switch {
	case errors.Is(err, uart.ErrUnsupported):
		return "the selected backend does not support these line settings; try --backend termios or --flow-control none"
	case errors.Is(err, os.ErrPermission):
		return "permission denied; add yourself to the dialout group"
	case errors.Is(err, os.ErrNotExist):
		return "device not found; see 'modemlink list'"
	default:
		return ""
	}
}
