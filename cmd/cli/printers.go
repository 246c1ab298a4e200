package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thereceipt/printbridge/internal/registry"
)

func newPrintersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "printers",
		Aliases: []string{"printer"},
		Short:   "Manage printer profiles",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List printer profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var res struct {
					Printers []registry.Profile `json:"printers"`
				}
				if _, err := c.client().do(cmd.Context(), "GET", "/printers", nil, &res); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if done, err := c.emitJSON(out, res); done {
					return err
				}
				writeProfileTable(out, res.Printers)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one printer profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.showProfile(cmd, "GET", fmt.Sprintf("/printers/%d", id), nil, "")
			},
		},
		&cobra.Command{
			Use:   "default [id]",
			Short: "Show the default printer, or make <id> the default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					return c.showProfile(cmd, "GET", "/printers/default", nil, "")
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.showProfile(cmd, "POST", fmt.Sprintf("/printers/%d/default", id), nil, "Default printer set")
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a printer profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if _, err := c.client().do(cmd.Context(), "DELETE", fmt.Sprintf("/printers/%d", id), nil, nil); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Printer %d deleted", id))
				return nil
			},
		},
		&cobra.Command{
			Use:   "probe <id>",
			Short: "Connect to a printer and check that it answers, without printing",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.runPrinterCommand(cmd.Context(), cmd.OutOrStdout(), fmt.Sprintf("printer probe %d", id))
			},
		},
		newCreatePrinterCmd(c),
		newUpdatePrinterCmd(c),
	)
	return cmd
}

// profileFlags are the editable profile fields shared by create and update
type profileFlags struct {
	name      string
	kind      string
	transport string
	address   string
	port      int
	usbID     string
	vendorID  string
	productID string
	isDefault bool
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name; for USB printers also the device selector")
	cmd.Flags().StringVar(&f.kind, "kind", string(registry.KindEpson), "Command dialect: EPSON, STAR or GENERIC")
	cmd.Flags().StringVar(&f.transport, "transport", string(registry.TransportUSB), "Transport: USB or NETWORK")
	cmd.Flags().StringVar(&f.address, "address", "", "Network host or IP")
	cmd.Flags().IntVar(&f.port, "port", registry.DefaultNetworkPort, "Network port")
	cmd.Flags().StringVar(&f.usbID, "usb-id", "", "USB device identifier")
	cmd.Flags().StringVar(&f.vendorID, "vendor", "", "USB vendor ID (hex)")
	cmd.Flags().StringVar(&f.productID, "product", "", "USB product ID (hex)")
	cmd.Flags().BoolVar(&f.isDefault, "default", false, "Make this the default printer")
}

func (f *profileFlags) profile() registry.Profile {
	return registry.Profile{
		Name:           f.name,
		Kind:           registry.Kind(strings.ToUpper(f.kind)),
		TransportKind:  registry.TransportKind(strings.ToUpper(f.transport)),
		USBIdentifier:  f.usbID,
		VendorID:       f.vendorID,
		ProductID:      f.productID,
		NetworkAddress: f.address,
		NetworkPort:    f.port,
		IsDefault:      f.isDefault,
	}
}

// patch carries only the flags given on the command line
func (f *profileFlags) patch(cmd *cobra.Command) registry.Patch {
	var p registry.Patch
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = &f.name
	}
	if changed("kind") {
		kind := registry.Kind(strings.ToUpper(f.kind))
		p.Kind = &kind
	}
	if changed("transport") {
		transport := registry.TransportKind(strings.ToUpper(f.transport))
		p.TransportKind = &transport
	}
	if changed("address") {
		p.NetworkAddress = &f.address
	}
	if changed("port") {
		p.NetworkPort = &f.port
	}
	if changed("usb-id") {
		p.USBIdentifier = &f.usbID
	}
	if changed("vendor") {
		p.VendorID = &f.vendorID
	}
	if changed("product") {
		p.ProductID = &f.productID
	}
	if changed("default") {
		p.IsDefault = &f.isDefault
	}
	return p
}

func newCreatePrinterCmd(c *cli) *cobra.Command {
	var flags profileFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a printer profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.showProfile(cmd, "POST", "/printers", flags.profile(), "Printer created")
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUpdatePrinterCmd(c *cli) *cobra.Command {
	var flags profileFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a printer profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.showProfile(cmd, "PUT", fmt.Sprintf("/printers/%d", id), flags.patch(cmd), "Printer updated")
		},
	}
	flags.register(cmd)
	return cmd
}

// showProfile sends a request answered with one profile and prints it
func (c *cli) showProfile(cmd *cobra.Command, method, path string, body interface{}, done string) error {
	var p registry.Profile
	if _, err := c.client().do(cmd.Context(), method, path, body, &p); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := c.emitJSON(out, p); ok {
		return err
	}
	if done != "" {
		printSuccess(out, done)
	}
	fmt.Fprintln(out, profileCard(p))
	return nil
}

func (c *cli) runPrinterCommand(ctx context.Context, out io.Writer, command string) error {
	var res printResult
	_, err := c.client().do(ctx, "POST", "/command", map[string]string{"command": command}, &res, 400)
	if err != nil {
		return err
	}
	if done, err := c.emitJSON(out, res); done {
		return err
	}
	return reportResult(out, res)
}

func writeProfileTable(w io.Writer, profiles []registry.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No printers configured"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-3s %-5s %-24s %-8s %-9s %s", "", "ID", "NAME", "KIND", "TRANSPORT", "TARGET")))
	for _, p := range profiles {
		marker := " "
		if p.IsDefault {
			marker = defaultMarker.String()
		}
		fmt.Fprintf(w, " %s  %-5d %-24s %-8s %-9s %s\n",
			marker, p.ID, truncate(p.Name, 24), p.Kind, p.TransportKind, mutedStyle.Render(profileTarget(p)))
	}
}

func profileTarget(p registry.Profile) string {
	if p.TransportKind == registry.TransportNetwork {
		return fmt.Sprintf("%s:%d", p.NetworkAddress, p.NetworkPort)
	}
	if p.VendorID != "" || p.ProductID != "" {
		return fmt.Sprintf("usb %s:%s", p.VendorID, p.ProductID)
	}
	if p.USBIdentifier != "" {
		return "usb " + p.USBIdentifier
	}
	return "usb " + p.Name
}

func profileCard(p registry.Profile) string {
	def := "no"
	if p.IsDefault {
		def = defaultMarker.String() + " yes"
	}
	port := ""
	if p.TransportKind == registry.TransportNetwork {
		port = strconv.Itoa(p.NetworkPort)
	}
	return fields(fmt.Sprintf("Printer #%d", p.ID),
		[2]string{"Name", p.Name},
		[2]string{"Kind", string(p.Kind)},
		[2]string{"Transport", string(p.TransportKind)},
		[2]string{"Address", p.NetworkAddress},
		[2]string{"Port", port},
		[2]string{"USB ID", p.USBIdentifier},
		[2]string{"Vendor ID", p.VendorID},
		[2]string{"Product ID", p.ProductID},
		[2]string{"Default", def},
	)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid printer id %q", s)
	}
	return uint(id), nil
}
