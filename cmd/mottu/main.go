// Command mottu is the yard operator's client: it signs in against the
// identity provider, holds the backend session and manages the fleet.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codecraftes/mottu-yard/internal/common/locale"
	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
	"github.com/codecraftes/mottu-yard/internal/domain/fleet"
	"github.com/codecraftes/mottu-yard/internal/domain/session"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

type cli struct {
	app     *app
	envFile string
	in      *bufio.Reader
	out     io.Writer

	// readPassword reads without echo; nil when stdin is not a terminal.
	readPassword func() ([]byte, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		c.readPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	err := c.root().ExecuteContext(ctx)
	if c.app != nil {
		c.app.close()
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "mottu",
		Short:         "Mottu yard client",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.app != nil {
				return nil
			}
			a, err := newApp(cmd.Context(), c.envFile)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Optional file of environment variables")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.statusCmd(),
		c.passwdCmd(),
		c.profileCmd(),
		c.localeCmd(),
		c.branchCmd(),
		c.yardCmd(),
		c.vehicleCmd(),
		c.mapCmd(),
	)
	return root
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// secret returns the flag value, or reads one from stdin when it is empty.
// A terminal gets a prompt with echo off; piped input is read a line at a time.
func (c *cli) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(os.Stderr, prompt+": ")
	if c.readPassword != nil {
		raw, err := c.readPassword()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", prompt, err)
		}
		return string(raw), nil
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", prompt, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type credentials struct {
	email    string
	password string
}

func (cr *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cr.email, "email", "", "Account email")
	cmd.Flags().StringVar(&cr.password, "password", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
}

func (c *cli) registerCmd() *cobra.Command {
	var cr credentials
	var name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.secret(cr.password, "password")
			if err != nil {
				return err
			}
			user, err := c.app.session.Register(cmd.Context(), cr.email, password, name)
			if err != nil {
				return err
			}
			return c.print(user)
		},
	}
	cr.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Display name (nome social)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var cr credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and open a backend session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.login(cmd.Context(), cr)
			if err != nil {
				return err
			}
			return c.print(user)
		},
	}
	cr.bind(cmd)
	return cmd
}

func (c *cli) login(ctx context.Context, cr credentials) (session.User, error) {
	password, err := c.secret(cr.password, "password")
	if err != nil {
		return session.User{}, err
	}
	return c.app.session.Login(ctx, cr.email, password)
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.session.Logout(cmd.Context())
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what this device holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.app.session.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(st)
		},
	}
}

// passwdCmd signs in again before changing the password; the provider
// session does not outlive a process.
func (c *cli) passwdCmd() *cobra.Command {
	var cr credentials
	var newPassword string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.login(cmd.Context(), cr)
			if err != nil {
				return err
			}
			next, err := c.secret(newPassword, "new password")
			if err != nil {
				return err
			}
			return c.app.session.ChangePassword(cmd.Context(), user.Identity, next)
		},
	}
	cr.bind(cmd)
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New password (read from stdin when omitted)")
	return cmd
}

func (c *cli) profileCmd() *cobra.Command {
	var cr credentials
	var name, photo string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update display name or photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update session.ProfileUpdate
			if cmd.Flags().Changed("name") {
				update.DisplayName = &name
			}
			if cmd.Flags().Changed("photo-url") {
				update.PhotoURL = &photo
			}
			if update.DisplayName == nil && update.PhotoURL == nil {
				return errors.New("nothing to update: pass --name or --photo-url")
			}

			user, err := c.login(cmd.Context(), cr)
			if err != nil {
				return err
			}
			return c.app.session.UpdateProfile(cmd.Context(), user.Identity, update)
		},
	}
	cr.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&photo, "photo-url", "", "New photo URL")
	return cmd
}

// systemLocales reads the POSIX locale variables in priority order.
func systemLocales() []string {
	var tags []string
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		tags = append(tags, v)
	}
	return tags
}

func (c *cli) localeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locale",
		Short: "Show or choose the interface language",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "get",
			Args: cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				stored, _, err := c.app.state.Locale()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, locale.Resolve(stored, systemLocales()...))
				return nil
			},
		},
		&cobra.Command{
			Use:  "set <tag>",
			Args: cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if !locale.Supported(args[0]) {
					return fmt.Errorf("unsupported locale %q", args[0])
				}
				tag := locale.Resolve(args[0])
				if err := c.app.state.SetLocale(tag); err != nil {
					return err
				}
				fmt.Fprintln(c.out, tag)
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) branchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "filial",
		Aliases: []string{"branch"},
		Short:   "Manage branches",
	}

	var form fleet.BranchForm
	var openedOn string
	bindForm := func(sub *cobra.Command) {
		sub.Flags().StringVar(&form.Name, "nome", "", "Branch name")
		sub.Flags().StringVar(&form.CNPJ, "cnpj", "", "CNPJ")
		sub.Flags().StringVar(&form.CountryCode, "pais", "BR", "Country code")
	}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			branches, err := c.app.fleet.ListBranches(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(branches)
		},
	}
	create := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.fleet.CreateBranch(cmd.Context(), form)
		},
	}
	bindForm(create)
	update := &cobra.Command{
		Use:  "update <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.app.fleet.UpdateBranch(cmd.Context(), fleet.ID(args[0]), form, openedOn)
			if err != nil {
				return err
			}
			return c.print(b)
		},
	}
	bindForm(update)
	update.Flags().StringVar(&openedOn, "abertura", "", "Opening date (YYYY-MM-DD)")
	_ = update.MarkFlagRequired("abertura")

	cmd.AddCommand(list, create, update, c.deleteCmd(c.deleteBranch))
	return cmd
}

func (c *cli) yardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patio",
		Aliases: []string{"yard"},
		Short:   "Manage yards",
	}

	var form fleet.YardForm
	bindForm := func(sub *cobra.Command) {
		sub.Flags().StringVar(&form.Name, "nome", "", "Yard name")
		sub.Flags().StringVar(&form.Description, "descricao", "", "Description")
		sub.Flags().StringVar((*string)(&form.BranchID), "filial", "", "Branch id")
	}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yards, err := c.app.fleet.ListYards(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(yards)
		},
	}
	create := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			y, err := c.app.fleet.CreateYard(cmd.Context(), form)
			if err != nil {
				return err
			}
			return c.print(y)
		},
	}
	bindForm(create)
	update := &cobra.Command{
		Use:  "update <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			y, err := c.app.fleet.UpdateYard(cmd.Context(), fleet.ID(args[0]), form)
			if err != nil {
				return err
			}
			return c.print(y)
		},
	}
	bindForm(update)

	cmd.AddCommand(list, create, update, c.deleteCmd(c.deleteYard))
	return cmd
}

func (c *cli) vehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "moto",
		Aliases: []string{"vehicle"},
		Short:   "Manage vehicles",
	}

	var form fleet.VehicleForm
	bindForm := func(sub *cobra.Command) {
		sub.Flags().StringVar(&form.Plate, "placa", "", "License plate")
		sub.Flags().StringVar(&form.Model, "modelo", "", "Model, e.g. MOTTUPOP")
		sub.Flags().StringVar(&form.Chassis, "chassi", "", "Chassis number")
		sub.Flags().StringVar((*string)(&form.Status), "status", string(fleet.StatusFree), "LIVRE, PROBLEMA or MANUTENCAO")
		sub.Flags().StringVar((*string)(&form.Sector), "setor", string(fleet.SectorA), "Sector A to D")
		sub.Flags().StringVar((*string)(&form.YardID), "patio", "", "Yard id")
	}

	var yard string
	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var vehicles []fleet.Vehicle
			var err error
			if yard != "" {
				vehicles, err = c.app.fleet.ListVehiclesByYard(cmd.Context(), fleet.ID(yard))
			} else {
				vehicles, err = c.app.fleet.ListVehicles(cmd.Context())
			}
			if err != nil {
				return err
			}
			return c.print(vehicles)
		},
	}
	list.Flags().StringVar(&yard, "patio", "", "Only vehicles of this yard")

	create := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := c.app.fleet.CreateVehicle(cmd.Context(), form)
			if err != nil {
				return err
			}
			return c.print(v)
		},
	}
	bindForm(create)
	update := &cobra.Command{
		Use:  "update <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.app.fleet.UpdateVehicle(cmd.Context(), fleet.ID(args[0]), form)
			if err != nil {
				return err
			}
			return c.print(v)
		},
	}
	bindForm(update)

	setStatus := &cobra.Command{
		Use:   "status <id> <LIVRE|PROBLEMA|MANUTENCAO>",
		Short: "Change only the status of a vehicle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicles, err := c.app.fleet.ListVehicles(cmd.Context())
			if err != nil {
				return err
			}
			v, err := findVehicle(vehicles, fleet.ID(args[0]))
			if err != nil {
				return err
			}
			updated, err := c.app.fleet.ChangeVehicleStatus(cmd.Context(), v, fleet.VehicleStatus(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			return c.print(updated)
		},
	}

	cmd.AddCommand(list, create, update, setStatus, c.deleteCmd(c.deleteVehicle))
	return cmd
}

func findVehicle(vehicles []fleet.Vehicle, id fleet.ID) (fleet.Vehicle, error) {
	for _, v := range vehicles {
		if v.ID == id {
			return v, nil
		}
	}
	return fleet.Vehicle{}, apperrors.NewNotFoundError(fmt.Sprintf("vehicle %s not found", id))
}

func (c *cli) mapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map <yard-id>",
		Short: "Show the occupancy of a yard by sector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicles, err := c.app.fleet.ListVehiclesByYard(cmd.Context(), fleet.ID(args[0]))
			if err != nil {
				return err
			}
			writeOccupancy(c.out, fleet.Occupancy(vehicles))
			return nil
		},
	}
}

func writeOccupancy(w io.Writer, sectors []fleet.SectorOccupancy) {
	for _, s := range sectors {
		fmt.Fprintf(w, "Setor %s: %d", s.Sector, len(s.Vehicles))
		for _, st := range fleet.Statuses {
			fmt.Fprintf(w, "  %s=%d", st, s.ByStatus[st])
		}
		fmt.Fprintln(w)
		for _, v := range s.Vehicles {
			fmt.Fprintf(w, "  %-10s %-10s %s\n", v.Plate, v.Model, v.Status)
		}
	}
}

func (c *cli) deleteCmd(del func(context.Context, fleet.ID) error) *cobra.Command {
	return &cobra.Command{
		Use:  "delete <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return del(cmd.Context(), fleet.ID(args[0]))
		},
	}
}

func (c *cli) deleteBranch(ctx context.Context, id fleet.ID) error {
	return c.app.fleet.DeleteBranch(ctx, id)
}

func (c *cli) deleteYard(ctx context.Context, id fleet.ID) error {
	return c.app.fleet.DeleteYard(ctx, id)
}

func (c *cli) deleteVehicle(ctx context.Context, id fleet.ID) error {
	return c.app.fleet.DeleteVehicle(ctx, id)
}
