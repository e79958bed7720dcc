package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oneclickvirt/console/src/apierror"
	"github.com/oneclickvirt/console/src/client/api"
)

var (
	provider      string
	createRequest api.CreateInstanceRequest
	stopOnError   bool
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the providers available to you",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := run(cmd.Context(), app, app.api.Providers, apierror.ExecOptions{})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), list, func(tw *tabwriter.Writer) {
			if len(list) == 0 {
				fmt.Fprintln(tw, "No providers")
				return
			}
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Type, orDash(p.Status))
			}
		})
	},
}

var instancesCmd = &cobra.Command{
	Use:     "instances",
	Aliases: []string{"instance", "vm"},
	Short:   "Manage instances on a provider",
}

var instancesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := run(cmd.Context(), app, func(ctx context.Context) ([]api.Instance, error) {
			return app.api.Instances(ctx, provider)
		}, apierror.ExecOptions{})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), list, func(tw *tabwriter.Writer) {
			if len(list) == 0 {
				fmt.Fprintln(tw, "No instances")
				return
			}
			fmt.Fprintln(tw, "NAME\tSTATUS\tTYPE\tIMAGE\tIP\tCPU\tMEMORY\tDISK")
			for _, in := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					in.Name, in.Status, orDash(in.Type), orDash(in.Image), orDash(in.IP),
					orDash(in.CPU), orDash(in.Memory), orDash(in.Disk))
			}
		})
	},
}

var instancesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := createRequest
		req.Name = args[0]
		_, err := run(cmd.Context(), app, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, app.api.CreateInstance(ctx, provider, req)
		}, apierror.ExecOptions{SuccessMessage: fmt.Sprintf("Instance %s created", req.Name)})
		return err
	},
}

var instancesDeleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Delete one or more instances",
	Long: `Delete instances after confirmation. Every name is attempted; the
summary lists the ones that failed. Use --yes to skip the question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeleteInstances(cmd, args)
	},
}

// instanceAction builds start/stop commands
func instanceAction(use, short, done string, fn func(*api.Client, context.Context, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(cmd.Context(), app, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, fn(app.api, ctx, provider, args[0])
			}, apierror.ExecOptions{SuccessMessage: fmt.Sprintf("Instance %s %s", args[0], done)})
			return err
		},
	}
}

var imagesCmd = &cobra.Command{
	Use:     "images",
	Aliases: []string{"image"},
	Short:   "Manage images on a provider",
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := run(cmd.Context(), app, func(ctx context.Context) ([]api.Image, error) {
			return app.api.Images(ctx, provider)
		}, apierror.ExecOptions{})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), list, func(tw *tabwriter.Writer) {
			if len(list) == 0 {
				fmt.Fprintln(tw, "No images")
				return
			}
			fmt.Fprintln(tw, "NAME\tTAG\tSIZE\tDESCRIPTION")
			for _, im := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", im.Name, orDash(im.Tag), orDash(im.Size), orDash(im.Description))
			}
		})
	},
}

var imagesPullCmd = &cobra.Command{
	Use:   "pull <image>",
	Short: "Pull an image onto the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := run(cmd.Context(), app, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, app.api.PullImage(ctx, provider, args[0])
		}, apierror.ExecOptions{SuccessMessage: fmt.Sprintf("Image %s pulled", args[0])})
		return err
	},
}

var imagesDeleteCmd = &cobra.Command{
	Use:   "delete <image>",
	Short: "Delete an image from the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := apierror.Delete(cmd.Context(), app.handler, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, app.api.DeleteImage(ctx, provider, args[0])
		}, apierror.ExecOptions{})
		return resultErr(res.Success, res.Cancelled)
	},
}

func init() {
	for _, c := range []*cobra.Command{instancesCmd, imagesCmd} {
		c.PersistentFlags().StringVarP(&provider, "provider", "p", "", "provider id (required)")
		c.MarkPersistentFlagRequired("provider")
	}

	f := instancesCreateCmd.Flags()
	f.StringVar(&createRequest.Image, "image", "", "image to boot (required)")
	f.StringVar(&createRequest.CPU, "cpu", "", "cpu cores")
	f.StringVar(&createRequest.Memory, "memory", "", "memory, e.g. 512MB")
	f.StringVar(&createRequest.Disk, "disk", "", "disk, e.g. 10GB")
	f.StringVar(&createRequest.InstanceType, "type", "", "container or vm")
	instancesCreateCmd.MarkFlagRequired("image")

	instancesDeleteCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "stop at the first failed delete")

	instancesCmd.AddCommand(
		instancesListCmd,
		instancesCreateCmd,
		instancesDeleteCmd,
		instanceAction("start", "Start an instance", "started", (*api.Client).StartInstance),
		instanceAction("stop", "Stop an instance", "stopped", (*api.Client).StopInstance),
	)
	imagesCmd.AddCommand(imagesListCmd, imagesPullCmd, imagesDeleteCmd)
}

func runDeleteInstances(cmd *cobra.Command, names []string) error {
	res := apierror.Batch(cmd.Context(), app.handler, names, func(ctx context.Context, name string, _ int) (struct{}, error) {
		return struct{}{}, app.api.DeleteInstance(ctx, provider, name)
	}, apierror.BatchOptions{
		ExecOptions: apierror.ExecOptions{
			ConfirmMessage: fmt.Sprintf("Delete %d instance(s) on provider %s? This cannot be undone.", len(names), provider),
		},
		ContinueOnError: !stopOnError,
	})
	if res.Cancelled {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
		return nil
	}

	report := res.Data
	out := cmd.OutOrStdout()
	for _, item := range report.Errors {
		fmt.Fprintf(out, "%s: %s\n", item.Item, item.Error.Message)
	}
	fmt.Fprintf(out, "Deleted %d of %d instance(s)\n", report.SuccessCount, report.Total)
	if !res.Success || report.ErrorCount > 0 {
		return ErrReported
	}
	return nil
}

// resultErr maps an action outcome to the command error
func resultErr(success, cancelled bool) error {
	if success || cancelled {
		return nil
	}
	return ErrReported
}
