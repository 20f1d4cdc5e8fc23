package arg

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/BlockWarden/internal/ipc"
)

const callTimeout = 30 * time.Second

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "bwctl",
	Short: "bwctl is the command line tool for BlockWarden",
	Long: `bwctl talks to the blockwardend daemon over the session bus.
Use it to inspect the blocking session, manage schedules, and start or stop blocking.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON replies")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient dials the daemon and runs fn with a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *ipc.Client) error) error {
	c, err := ipc.Dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	return fn(ctx, c)
}
