package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nsyszr/pushbridge/config"
	"github.com/nsyszr/pushbridge/pkg/cmd/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var c = new(config.Config)
var cmdHandler = cli.NewHandler(c)

var (
	Version   = "dev-master"
	BuildTime = "undefined"
	GitHash   = "undefined"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pushbridge",
	Short: "Bridge between push notification gateways and backend services",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

// Execute runs the pushbridge and is called by main.main()
func Execute() {
	c.BuildTime = BuildTime
	c.BuildVersion = Version
	c.BuildHash = GitHash

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// defaults holds every setting with its default value. The keys are the
// environment variable names.
var defaults = map[string]interface{}{
	"PORT":                   8080,
	"HOST":                   "",
	"DATABASE_URL":           "memory",
	"NATS_URL":               "nats://nats:4222",
	"LOG_LEVEL":              "info",
	"TRANSPORT":              "nats",
	"SUBJECT_PREFIX":         "pushbridge.v1",
	"WEBSOCKET_PATH":         "/push/v1",
	"DEFAULT_BRIDGE":         0,
	"POLL_INTERVAL":          "5s",
	"MAX_RECONNECT_ATTEMPTS": 3,
	"SESSION_SWEEP_INTERVAL": "1m",
	"PING_SWEEP_INTERVAL":    "5m",
	"PING_CLEANUP_INTERVAL":  "1h",
	"PING_CLEANUP_LIMIT":     10000,
	"RPC_TIMEOUT":            "0s",
	"RPC_OPERATIONS":         []string{},
	"OAUTH_CLIENT_ID":        "",
	"AUTHORITY_ENABLED":      false,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pushbridge.yml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	} else {
		path := absPathify("$HOME")
		if _, err := os.Stat(filepath.Join(path, ".pushbridge.yml")); err != nil {
			_, _ = os.Create(filepath.Join(path, ".pushbridge.yml"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".pushbridge") // name of config file (without extension)
		viper.AddConfigPath("$HOME")      // adding home directory as first search path
	}
	viper.AutomaticEnv() // read in environment variables that match

	// Fetch settings
	for key, value := range defaults {
		viper.BindEnv(key)
		viper.SetDefault(key, value)
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf(`Config file not found because "%s"`, err)
		fmt.Println("")
	}

	if err := viper.Unmarshal(c); err != nil {
		log.Fatal(fmt.Sprintf("Could not read config because %s.", err))
	}
}

func absPathify(inPath string) string {
	if strings.HasPrefix(inPath, "$HOME") {
		inPath = userHomeDir() + inPath[5:]
	}

	if strings.HasPrefix(inPath, "$") {
		end := strings.Index(inPath, string(os.PathSeparator))
		inPath = os.Getenv(inPath[1:end]) + inPath[end:]
	}

	if filepath.IsAbs(inPath) {
		return filepath.Clean(inPath)
	}

	p, err := filepath.Abs(inPath)
	if err == nil {
		return filepath.Clean(p)
	}
	return ""
}

func userHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		return home
	}
	return os.Getenv("HOME")
}
