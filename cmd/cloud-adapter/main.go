package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	gocontext "context"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter"
	"github.com/travis-ci/cloudadapter/config"
	"github.com/travis-ci/cloudadapter/resource"
	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "cloud-adapter"
	app.Usage = "Manage instances, networks and CDN containers on EC2 and Nova clouds"
	app.Version = cloudadapter.VersionString
	app.Author = "Travis CI GmbH"
	app.Email = "contact+cloud-adapter@travis-ci.com"

	app.Flags = config.Flags
	app.Commands = []cli.Command{
		{
			Name:   "dialects",
			Usage:  "list the supported wire dialects and their provider settings",
			Action: listDialects,
		},
		{
			Name:  "products",
			Usage: "list catalog products",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "arch", Value: string(resource.ArchitectureI64), Usage: "I32 or I64"},
			},
			Action: withSession(listProducts),
		},
		{
			Name:   "vms",
			Usage:  "list virtual machines",
			Action: withSession(listVMs),
		},
		{
			Name:      "vm",
			Usage:     "show one virtual machine",
			ArgsUsage: "ID",
			Action:    withSession(showVM),
		},
		{
			Name:  "launch",
			Usage: "launch a virtual machine and wait for its zone",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "image", Usage: "image id"},
				cli.StringFlag{Name: "product", Usage: "product id"},
				cli.StringFlag{Name: "data-center", Usage: "data center (availability zone)"},
				cli.StringFlag{Name: "name", Usage: "instance name"},
				cli.StringFlag{Name: "description", Usage: "instance description"},
				cli.StringFlag{Name: "keypair", Usage: "keypair id, required for password retrieval"},
				cli.StringFlag{Name: "vlan", Usage: "VLAN id"},
				cli.StringFlag{Name: "subnet", Usage: "subnet id"},
				cli.StringSliceFlag{Name: "firewall", Usage: "firewall id, may be repeated"},
				cli.StringSliceFlag{Name: "tag", Usage: "key=value, may be repeated"},
			},
			Action: withSession(launch),
		},
		{
			Name:      "password",
			Usage:     "retrieve the root passwords of instances",
			ArgsUsage: "ID...",
			Action:    withSession(passwords),
		},
		vmActionCommand("boot", "start a stopped virtual machine", (*cloudadapter.Session).Boot),
		vmActionCommand("pause", "stop a running virtual machine", (*cloudadapter.Session).Pause),
		vmActionCommand("reboot", "reboot a virtual machine", (*cloudadapter.Session).Reboot),
		vmActionCommand("terminate", "terminate a virtual machine", (*cloudadapter.Session).Terminate),
		{
			Name:      "console",
			Usage:     "print the console output of a virtual machine",
			ArgsUsage: "ID",
			Action:    withSession(consoleOutput),
		},
		{
			Name:   "vlans",
			Usage:  "list VLANs",
			Action: withSession(listVlans),
		},
		{
			Name:  "create-vlan",
			Usage: "create a VLAN",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "cidr", Usage: "VLAN CIDR"},
				cli.StringFlag{Name: "name", Usage: "VLAN name"},
				cli.StringFlag{Name: "description", Usage: "VLAN description"},
				cli.StringFlag{Name: "domain", Usage: "DNS domain"},
				cli.StringSliceFlag{Name: "dns", Usage: "DNS server, may be repeated"},
				cli.StringSliceFlag{Name: "ntp", Usage: "NTP server, may be repeated"},
			},
			Action: withSession(createVlan),
		},
		{
			Name:      "remove-vlan",
			Usage:     "remove a VLAN",
			ArgsUsage: "ID",
			Action:    withSession(removeVlan),
		},
		{
			Name:      "subnets",
			Usage:     "list the subnets of a VLAN",
			ArgsUsage: "VLAN-ID",
			Action:    withSession(listSubnets),
		},
		{
			Name:      "create-subnet",
			Usage:     "create a subnet inside a VLAN",
			ArgsUsage: "VLAN-ID CIDR",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "name", Usage: "subnet name"},
				cli.StringFlag{Name: "description", Usage: "subnet description"},
			},
			Action: withSession(createSubnet),
		},
		{
			Name:  "cdn",
			Usage: "list CDN enabled containers",
			Subcommands: []cli.Command{
				{
					Name:      "enable",
					ArgsUsage: "CONTAINER",
					Flags: []cli.Flag{
						cli.IntFlag{Name: "ttl", Value: cloudadapter.DefaultCDNTTL, Usage: "cache TTL in seconds"},
					},
					Action: withSession(enableCDN),
				},
				{
					Name:      "disable",
					ArgsUsage: "CONTAINER",
					Action:    withSession(disableCDN),
				},
			},
			Action: withSession(listCDN),
		},
		{
			Name:   "inventory",
			Usage:  "dump every virtual machine and VLAN as JSON",
			Action: withSession(inventory),
		},
		{
			Name:   "subscribed",
			Usage:  "check that the credentials can use the cloud",
			Action: withSession(subscribed),
		},
		{
			Name:  "serve",
			Usage: "run the HTTP API",
			Action: func(c *cli.Context) error {
				adapterCLI := cloudadapter.NewCLI(c)
				ok, err := adapterCLI.Setup()
				if !ok {
					return err
				}
				defer adapterCLI.Close()
				return adapterCLI.Serve()
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithField("err", err).Fatal("command failed")
	}
}

// withSession runs f with a set up CLI. A false Setup without an error
// (e.g. --echo-config) ends the command quietly.
func withSession(f func(*cloudadapter.CLI, *cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		adapterCLI := cloudadapter.NewCLI(c)
		ok, err := adapterCLI.Setup()
		if !ok {
			return err
		}
		defer adapterCLI.Close()
		return f(adapterCLI, c)
	}
}

func vmActionCommand(name, usage string, action func(*cloudadapter.Session, gocontext.Context, string) error) cli.Command {
	return cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "ID",
		Action: withSession(func(ac *cloudadapter.CLI, c *cli.Context) error {
			id, err := requireArg(c, 0, "ID")
			if err != nil {
				return err
			}
			return action(ac.Session, ac.Context(), id)
		}),
	}
}

func requireArg(c *cli.Context, i int, name string) (string, error) {
	arg := c.Args().Get(i)
	if arg == "" {
		return "", errors.Errorf("missing %s argument", name)
	}
	return arg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listDialects(c *cli.Context) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	printHelp := func(help map[string]string) {
		keys := []string{}
		for key := range help {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "  %s\t%s\n", key, help[key])
		}
	}

	cloudadapter.EachDialect(func(d *cloudadapter.Dialect) {
		fmt.Fprintf(w, "%s: %s\n", d.Alias, d.HumanReadableName)
		printHelp(d.Help)
	})

	fmt.Fprintln(w, "all dialects:")
	printHelp(cloudadapter.SessionHelp)
	return nil
}

func listProducts(ac *cloudadapter.CLI, c *cli.Context) error {
	arch := resource.Architecture(strings.ToUpper(c.String("arch")))
	if arch != resource.ArchitectureI32 && arch != resource.ArchitectureI64 {
		return errors.Errorf("unknown architecture %q", c.String("arch"))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tCPUS\tRAM\tDISK\tNAME")
	for _, p := range ac.Session.Products(arch) {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", p.ID, p.CPUCount,
			humanize.IBytes(uint64(p.RAMMb)*humanize.MiByte),
			humanize.IBytes(uint64(p.DiskGb)*humanize.GiByte),
			p.Name)
	}
	return nil
}

func listVMs(ac *cloudadapter.CLI, c *cli.Context) error {
	vms, err := ac.Session.ListVirtualMachines(ac.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSTATE\tZONE\tPRODUCT\tNAME\tAGE")
	for _, vm := range vms {
		product := ""
		if vm.Product != nil {
			product = vm.Product.ID
		}
		age := ""
		if !vm.CreationTime.IsZero() {
			age = humanize.Time(vm.CreationTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", vm.ID, vm.State, vm.DataCenterID, product, vm.Name, age)
	}
	return nil
}

func showVM(ac *cloudadapter.CLI, c *cli.Context) error {
	id, err := requireArg(c, 0, "ID")
	if err != nil {
		return err
	}

	vm, err := ac.Session.GetVirtualMachine(ac.Context(), id)
	if err != nil {
		return err
	}
	if vm == nil {
		return errors.Errorf("no virtual machine %q", id)
	}
	return printJSON(vm)
}

func launch(ac *cloudadapter.CLI, c *cli.Context) error {
	tags := map[string]string{}
	for _, tag := range c.StringSlice("tag") {
		parts := strings.SplitN(tag, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return errors.Errorf("invalid tag %q, expected key=value", tag)
		}
		tags[parts[0]] = parts[1]
	}

	vm, err := ac.Session.Launch(ac.Context(), &cloudadapter.LaunchOptions{
		ImageID:      c.String("image"),
		ProductID:    c.String("product"),
		DataCenterID: c.String("data-center"),
		Name:         c.String("name"),
		Description:  c.String("description"),
		KeypairID:    c.String("keypair"),
		VlanID:       c.String("vlan"),
		SubnetID:     c.String("subnet"),
		FirewallIDs:  c.StringSlice("firewall"),
		Tags:         tags,
	})
	if err != nil {
		return err
	}
	if vm == nil {
		return errors.New("no instance was launched")
	}
	return printJSON(vm)
}

func passwords(ac *cloudadapter.CLI, c *cli.Context) error {
	ids := []string(c.Args())
	if len(ids) == 0 {
		return errors.New("missing ID argument")
	}

	results, err := ac.Session.RetrievePasswords(ac.Context(), ids)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func consoleOutput(ac *cloudadapter.CLI, c *cli.Context) error {
	id, err := requireArg(c, 0, "ID")
	if err != nil {
		return err
	}

	out, err := ac.Session.ConsoleOutput(ac.Context(), id)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func listVlans(ac *cloudadapter.CLI, c *cli.Context) error {
	vlans, err := ac.Session.ListVlans(ac.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSTATE\tCIDR\tNAME\tDNS")
	for _, vlan := range vlans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", vlan.ID, vlan.State, vlan.CIDR, vlan.Name, strings.Join(vlan.DNSServers, ","))
	}
	return nil
}

func createVlan(ac *cloudadapter.CLI, c *cli.Context) error {
	vlan, err := ac.Session.CreateVlan(ac.Context(), &cloudadapter.VLANOptions{
		CIDR:        c.String("cidr"),
		Name:        c.String("name"),
		Description: c.String("description"),
		Domain:      c.String("domain"),
		DNSServers:  c.StringSlice("dns"),
		NTPServers:  c.StringSlice("ntp"),
	})
	if err != nil {
		return err
	}
	return printJSON(vlan)
}

func removeVlan(ac *cloudadapter.CLI, c *cli.Context) error {
	id, err := requireArg(c, 0, "ID")
	if err != nil {
		return err
	}
	return ac.Session.RemoveVlan(ac.Context(), id)
}

func listSubnets(ac *cloudadapter.CLI, c *cli.Context) error {
	vlanID, err := requireArg(c, 0, "VLAN-ID")
	if err != nil {
		return err
	}

	subnets, err := ac.Session.ListSubnets(ac.Context(), vlanID)
	if err != nil {
		return err
	}
	return printJSON(subnets)
}

func createSubnet(ac *cloudadapter.CLI, c *cli.Context) error {
	vlanID, err := requireArg(c, 0, "VLAN-ID")
	if err != nil {
		return err
	}
	cidr, err := requireArg(c, 1, "CIDR")
	if err != nil {
		return err
	}

	subnet, err := ac.Session.CreateSubnet(ac.Context(), &cloudadapter.SubnetOptions{
		VlanID:      vlanID,
		CIDR:        cidr,
		Name:        c.String("name"),
		Description: c.String("description"),
	})
	if err != nil {
		return err
	}
	return printJSON(subnet)
}

func listCDN(ac *cloudadapter.CLI, c *cli.Context) error {
	containers, err := ac.Session.CDNContainers(ac.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tENABLED\tTTL\tURI")
	for _, container := range containers {
		fmt.Fprintf(w, "%s\t%v\t%d\t%s\n", container.Name, container.Enabled, container.TTL, container.URI)
	}
	return nil
}

func enableCDN(ac *cloudadapter.CLI, c *cli.Context) error {
	name, err := requireArg(c, 0, "CONTAINER")
	if err != nil {
		return err
	}
	return ac.Session.EnableCDN(ac.Context(), name, c.Int("ttl"))
}

func disableCDN(ac *cloudadapter.CLI, c *cli.Context) error {
	name, err := requireArg(c, 0, "CONTAINER")
	if err != nil {
		return err
	}
	return ac.Session.DisableCDN(ac.Context(), name)
}

func inventory(ac *cloudadapter.CLI, c *cli.Context) error {
	inv, err := ac.Session.Inventory(ac.Context())
	if err != nil {
		return err
	}
	return printJSON(inv)
}

func subscribed(ac *cloudadapter.CLI, c *cli.Context) error {
	ok, err := ac.Session.IsSubscribed(ac.Context())
	if err != nil {
		return err
	}
	fmt.Println(ok)
	if !ok {
		return errors.New("credentials are not subscribed to this cloud")
	}
	return nil
}
