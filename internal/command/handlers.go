package command

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
)

// handlePrint handles print commands
// Usage: print test [printer-id] | print receipt <path-or-url> [printer-id]
func (e *Executor) handlePrint(ctx context.Context, args []string) *Result {
	if len(args) == 0 {
		return failure("usage: print <test|receipt> ...")
	}

	switch args[0] {
	case "test":
		target, err := optionalID(args, 1)
		if err != nil {
			return failure("%v", err)
		}
		return fromPrintResult(e.orchestrator.TestPrint(ctx, target))

	case "receipt":
		if len(args) < 2 {
			return failure("usage: print receipt <path-or-url> [printer-id]")
		}
		target, err := optionalID(args, 2)
		if err != nil {
			return failure("%v", err)
		}

		var payload *receiptformat.Payload
		source := args[1]
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			payload, err = loadReceiptFromURL(ctx, source)
		} else {
			payload, err = receiptformat.ParseFile(source)
		}
		if err != nil {
			return failure("failed to load receipt: %v", err)
		}
		return fromPrintResult(e.orchestrator.PrintReceipt(ctx, payload, target))

	default:
		return failure("unknown print subcommand: %s. Use: test, receipt", args[0])
	}
}

func fromPrintResult(res PrintResult) *Result {
	out := &Result{
		Success: res.Success,
		Data: map[string]interface{}{
			"job_id": res.JobID,
		},
	}
	if res.PrinterID != 0 {
		out.Data["printer_id"] = res.PrinterID
	}
	if res.Success {
		out.Message = res.Message
	} else {
		out.Error = res.Message
		out.Data["code"] = res.Code
	}
	return out
}

// handlePrinter handles printer commands
// Usage: printer list | get <id> | default [id] | probe [id] | add-network <name> <host> [port] [kind] |
// add-usb <name> [vid:pid] [kind] | rename <id> <name> | remove <id>
func (e *Executor) handlePrinter(ctx context.Context, args []string) *Result {
	if len(args) == 0 {
		return failure("usage: printer <list|get|default|probe|add-network|add-usb|rename|remove>")
	}

	subcommand := args[0]

	switch subcommand {
	case "list":
		profiles, err := e.profiles.List(ctx)
		if err != nil {
			return failure("failed to list printers: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d printer(s)", len(profiles)),
			Data: map[string]interface{}{
				"printers": profiles,
			},
		}

	case "get":
		id, err := requiredID(args, 1, "usage: printer get <id>")
		if err != nil {
			return failure("%v", err)
		}
		p, err := e.profiles.Get(ctx, id)
		if err != nil {
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: p.Label(),
			Data:    map[string]interface{}{"printer": p},
		}

	case "default":
		if len(args) < 2 {
			p, err := e.profiles.GetDefault(ctx)
			if err != nil {
				return failure("%s", MsgNoPrinter)
			}
			return &Result{
				Success: true,
				Message: "Default printer: " + p.Label(),
				Data:    map[string]interface{}{"printer": p},
			}
		}
		id, err := requiredID(args, 1, "usage: printer default [id]")
		if err != nil {
			return failure("%v", err)
		}
		p, err := e.profiles.SetDefault(ctx, id)
		if err != nil {
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: "Default printer set to " + p.Label(),
			Data:    map[string]interface{}{"printer": p},
		}

	case "add-network":
		if len(args) < 3 {
			return failure("usage: printer add-network <name> <host> [port] [kind]")
		}
		profile := registry.Profile{
			Name:           args[1],
			TransportKind:  registry.TransportNetwork,
			NetworkAddress: args[2],
			NetworkPort:    registry.DefaultNetworkPort,
		}
		if len(args) >= 4 {
			port, err := strconv.Atoi(args[3])
			if err != nil {
				return failure("invalid port: %s", args[3])
			}
			profile.NetworkPort = port
		}
		if len(args) >= 5 {
			profile.Kind = registry.Kind(args[4])
		}
		return e.createPrinter(ctx, profile)

	case "add-usb":
		if len(args) < 2 {
			return failure("usage: printer add-usb <name> [vid:pid] [kind]")
		}
		profile := registry.Profile{
			Name:          args[1],
			TransportKind: registry.TransportUSB,
		}
		if len(args) >= 3 {
			vid, pid, ok := strings.Cut(args[2], ":")
			if !ok {
				return failure("invalid usb id %q, expected vid:pid", args[2])
			}
			profile.VendorID, profile.ProductID = vid, pid
		}
		if len(args) >= 4 {
			profile.Kind = registry.Kind(args[3])
		}
		return e.createPrinter(ctx, profile)

	case "probe":
		target, err := optionalID(args, 1)
		if err != nil {
			return failure("%v", err)
		}
		res := e.orchestrator.Probe(ctx, target)
		out := fromPrintResult(res)
		delete(out.Data, "job_id")
		return out

	case "rename":
		if len(args) < 3 {
			return failure("usage: printer rename <id> <name>")
		}
		id, err := requiredID(args, 1, "usage: printer rename <id> <name>")
		if err != nil {
			return failure("%v", err)
		}
		name := args[2]
		p, err := e.profiles.Update(ctx, id, registry.Patch{Name: &name})
		if err != nil {
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Renamed printer %d to %s", id, p.Name),
		}

	case "remove":
		id, err := requiredID(args, 1, "usage: printer remove <id>")
		if err != nil {
			return failure("%v", err)
		}
		if err := e.profiles.Delete(ctx, id); err != nil {
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Removed printer %d", id),
		}

	default:
		return failure("unknown printer subcommand: %s. Use: list, get, default, probe, add-network, add-usb, rename, remove", subcommand)
	}
}

func (e *Executor) createPrinter(ctx context.Context, profile registry.Profile) *Result {
	p, err := e.profiles.Create(ctx, profile)
	if err != nil {
		return failure("%v", err)
	}
	return &Result{
		Success: true,
		Message: "Added printer " + p.Label(),
		Data: map[string]interface{}{
			"printer_id": p.ID,
			"printer":    p,
		},
	}
}

// handleJob handles job commands
// Usage: job list | status <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: job <list|status|clear>")
	}

	jobs := e.orchestrator.Jobs()
	subcommand := args[0]

	switch subcommand {
	case "list":
		all := jobs.GetAllJobs()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(all)),
			Data: map[string]interface{}{
				"jobs": all,
			},
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: job status <id>")
		}
		jobID := args[1]
		job := jobs.GetJob(jobID)
		if job == nil {
			return failure("job not found: %s", jobID)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Job %s is %s", job.ID, job.Status),
			Data: map[string]interface{}{
				"job": job,
			},
		}

	case "clear":
		n := jobs.ClearFinished()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished job(s)", n),
		}

	default:
		return failure("unknown job subcommand: %s. Use: list, status, clear", subcommand)
	}
}

// handleHelp handles help command
func (e *Executor) handleHelp() *Result {
	helpText := `Available Commands:

  print test [printer-id]
    Print the sample receipt on a printer (default printer if omitted)

  print receipt <path-or-url> [printer-id]
    Print a receipt JSON file or URL

  printer list
    List all printer profiles, default first

  printer get <id>
    Show one printer profile

  printer default [id]
    Show the default printer, or make <id> the default

  printer probe [id]
    Connect to a printer and check its status without printing

  printer add-network <name> <host> [port] [kind]
    Add a network printer (default port: 9100, kind: EPSON)

  printer add-usb <name> [vid:pid] [kind]
    Add a USB printer; <name> is the device product name or path

  printer rename <id> <name>
    Rename a printer

  printer remove <id>
    Delete a printer profile

  job list
    List recent print jobs

  job status <id>
    Get status of a specific job

  job clear
    Clear finished jobs from the history

  help
    Show this help message

Examples:
  printer add-network "Kitchen" 192.168.1.100 9100 STAR
  printer add-usb /dev/usb/lp0
  printer default 2
  print receipt ./order.json
  print test 2
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}

func requiredID(args []string, i int, usage string) (uint, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%s", usage)
	}
	id, err := strconv.ParseUint(args[i], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid printer id: %s", args[i])
	}
	return uint(id), nil
}

func optionalID(args []string, i int) (*uint, error) {
	if len(args) <= i {
		return nil, nil
	}
	id, err := requiredID(args, i, "")
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// loadReceiptFromURL loads a receipt from a URL
func loadReceiptFromURL(ctx context.Context, url string) (*receiptformat.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt URL: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch receipt: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt from URL: %w", err)
	}

	return receiptformat.Parse(data)
}
