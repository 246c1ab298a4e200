package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:12212"

// cli holds the global flags shared by every subcommand
type cli struct {
	serverURL string
	jsonMode  bool
}

func (c *cli) client() *apiClient {
	return newAPIClient(c.serverURL)
}

// emitJSON writes v indented when --json is set and reports whether it did
func (c *cli) emitJSON(w io.Writer, v interface{}) (bool, error) {
	if !c.jsonMode {
		return false, nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return true, nil
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "printbridge-cli",
		Short: "Manage printers and print receipts through a printbridge server",
		Example: `  printbridge-cli printers list
  printbridge-cli printers create --name Front --transport network --address 192.168.1.50
  printbridge-cli printers default 2
  printbridge-cli print test --printer 2
  printbridge-cli print receipt ./order.json
  printbridge-cli -s http://10.0.0.5:12212 jobs list`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.serverURL, "server", "s", defaultServerURL, "Server URL")
	root.PersistentFlags().BoolVar(&c.jsonMode, "json", false, "Print raw JSON responses")

	root.AddCommand(
		newPrintersCmd(c),
		newPrintCmd(c),
		newJobsCmd(c),
		newExecCmd(c),
	)
	return root
}

func newExecCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>",
		Short: "Run a server text command, e.g. \"printer probe 2\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res map[string]interface{}
			_, err := c.client().do(cmd.Context(), "POST", "/command",
				map[string]string{"command": strings.Join(args, " ")}, &res, 400)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if done, err := c.emitJSON(out, res); done {
				return err
			}

			if ok, _ := res["success"].(bool); !ok {
				msg, _ := res["error"].(string)
				return fmt.Errorf("%s", msg)
			}
			if msg, _ := res["message"].(string); msg != "" {
				printSuccess(out, msg)
			}
			keys := make([]string, 0, len(res))
			for k := range res {
				if k != "success" && k != "message" {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				data, _ := json.MarshalIndent(res[k], "", "  ")
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render(k+":"), data)
			}
			return nil
		},
	}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		printFailure(os.Stderr, err.Error())
		os.Exit(1)
	}
}
