package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
)

func newPrintCmd(c *cli) *cobra.Command {
	var printerID uint

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print receipts and test pages",
	}
	cmd.PersistentFlags().UintVarP(&printerID, "printer", "p", 0, "Printer ID (default printer when omitted)")

	target := func() *uint {
		if printerID == 0 {
			return nil
		}
		id := printerID
		return &id
	}

	var paper, outFile string
	preview := &cobra.Command{
		Use:   "preview <receipt.json>",
		Short: "Render a receipt to a PNG image without printing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := receiptformat.ParseFile(args[0])
			if err != nil {
				return err
			}
			body, err := payload.ToJSON()
			if err != nil {
				return err
			}
			return c.savePreview(cmd, body, paper, outFile)
		},
	}
	preview.Flags().StringVar(&paper, "paper", "80mm", "Paper width: 58mm, 80mm or 112mm")
	preview.Flags().StringVarP(&outFile, "out", "o", "receipt.png", "Output PNG file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "test",
			Short: "Print a test page",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				body := map[string]interface{}{}
				if id := target(); id != nil {
					body["printer_id"] = *id
				}
				return c.print(cmd, "/test-print", body)
			},
		},
		&cobra.Command{
			Use:   "receipt <receipt.json>",
			Short: "Print a receipt from a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				payload, err := receiptformat.ParseFile(args[0])
				if err != nil {
					return err
				}
				return c.print(cmd, "/print-receipt", struct {
					*receiptformat.Payload
					PrinterID *uint `json:"printer_id,omitempty"`
				}{payload, target()})
			},
		},
		&cobra.Command{
			Use:   "sample",
			Short: "Write the sample receipt JSON to stdout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := receiptformat.Sample().ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			},
		},
		preview,
	)
	return cmd
}

func (c *cli) print(cmd *cobra.Command, path string, body interface{}) error {
	var res printResult
	if _, err := c.client().do(cmd.Context(), "POST", path, body, &res, printStatuses...); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if done, err := c.emitJSON(out, res); done {
		return err
	}
	return reportResult(out, res)
}

// savePreview posts the receipt to the preview endpoint and writes the PNG
func (c *cli) savePreview(cmd *cobra.Command, receipt []byte, paper, outFile string) error {
	client := c.client()
	u := client.baseURL + "/receipts/preview?paper=" + url.QueryEscape(paper)

	req, err := http.NewRequestWithContext(cmd.Context(), "POST", u, bytes.NewReader(receipt))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return &apiError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Preview written to "+outFile)
	return nil
}

// reportResult prints a print result and turns a failure into an error
func reportResult(w io.Writer, res printResult) error {
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = res.Error
		}
		if res.Code != "" {
			msg += mutedStyle.Render(" (" + res.Code + ")")
		}
		return fmt.Errorf("%s", msg)
	}

	printSuccess(w, res.Message)
	if res.JobID != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Job ID:"), res.JobID)
	}
	if res.PrinterID != 0 {
		fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Printer:"), res.PrinterID)
	}
	return nil
}

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect recent print jobs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recent print jobs, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var res struct {
					Jobs []printJob `json:"jobs"`
				}
				if _, err := c.client().do(cmd.Context(), "GET", "/jobs", nil, &res); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if done, err := c.emitJSON(out, res); done {
					return err
				}
				writeJobTable(out, res.Jobs, time.Now())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <job-id>",
			Short: "Show one print job",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var job printJob
				if _, err := c.client().do(cmd.Context(), "GET", "/job/"+url.PathEscape(args[0]), nil, &job); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if done, err := c.emitJSON(out, job); done {
					return err
				}
				fmt.Fprintln(out, jobCard(job))
				return nil
			},
		},
	)
	return cmd
}

func writeJobTable(w io.Writer, jobs []printJob, now time.Time) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No print jobs yet"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-8s %-7s %-20s %-12s %-10s %s", "ID", "KIND", "PRINTER", "ORDER", "STATUS", "AGE")))
	for _, j := range jobs {
		printer := "-"
		if j.PrinterName != "" {
			printer = fmt.Sprintf("#%d %s", j.PrinterID, j.PrinterName)
		}
		// pad before coloring so escape codes do not break the columns
		status := statusText(j.Status)
		if pad := 10 - len(j.Status); pad > 0 {
			status += strings.Repeat(" ", pad)
		}
		fmt.Fprintf(w, "%-8s %-7s %-20s %-12s %s %s\n",
			truncate(j.ID, 8), j.Kind, truncate(printer, 20), truncate(j.OrderNumber, 12), status,
			mutedStyle.Render(now.Sub(j.CreatedAt).Truncate(time.Second).String()))
	}
}

func jobCard(j printJob) string {
	finished := ""
	if j.FinishedAt != nil {
		finished = j.FinishedAt.Local().Format("2006-01-02 15:04:05")
	}
	printer := ""
	if j.PrinterID != 0 {
		printer = fmt.Sprintf("#%d %s", j.PrinterID, j.PrinterName)
	}
	return fields("Job "+j.ID,
		[2]string{"Kind", j.Kind},
		[2]string{"Status", statusText(j.Status)},
		[2]string{"Printer", printer},
		[2]string{"Order", j.OrderNumber},
		[2]string{"Code", j.Code},
		[2]string{"Error", j.Error},
		[2]string{"Created", j.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		[2]string{"Finished", finished},
	)
}
