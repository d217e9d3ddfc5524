package cmd

import (
	"os"
	"unicode"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type rootOptions struct {
	configFile  string
	sessionPath string
	cli         *viper.Viper
}

// apiURL is the server the client commands talk to. EXPENSE_API_URL
// overrides the flag default.
func (o *rootOptions) apiURL() string {
	return o.cli.GetString("api_url")
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{cli: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "expense-api",
		Short:         "Personal expense tracker API and client",
		Long:          `expense-api serves the expense tracker HTTP API and includes a small client for it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "set the config file path")
	rootCmd.PersistentFlags().String("api-url", "http://localhost:8080", "base URL of the API (client commands)")
	rootCmd.PersistentFlags().StringVar(&opts.sessionPath, "session", "", "session file path (client commands)")

	opts.cli.SetEnvPrefix("EXPENSE")
	opts.cli.AutomaticEnv()
	_ = opts.cli.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newSignupCmd(opts))
	rootCmd.AddCommand(newLoginCmd(opts))
	rootCmd.AddCommand(newLogoutCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newAddCmd(opts))
	rootCmd.AddCommand(newDeleteCmd(opts))
	rootCmd.AddCommand(newSummaryCmd(opts))

	return rootCmd
}

func Execute() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	if err := NewRootCmd().Execute(); err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
