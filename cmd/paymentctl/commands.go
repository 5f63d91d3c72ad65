package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/dmehra2102/payment-console/internal/payment/application"
	"github.com/dmehra2102/payment-console/internal/payment/domain"
)

type console struct {
	svc  *application.Service
	link func(publicID string) string
}

type opener func(ctx context.Context) (*console, func(), error)

func newRootCmd(open opener) *cobra.Command {
	var asJSON bool

	root := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Create and manage payment links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	run := func(fn func(ctx context.Context, c *console, out io.Writer) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, closeFn, err := open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			v, err := fn(ctx, c, cmd.OutOrStdout())
			if err != nil || v == nil {
				return err
			}
			return render(cmd.OutOrStdout(), c, v, asJSON)
		}
	}

	root.AddCommand(createCmd(run), listCmd(run), showCmd(run), transitionCmd(run, "pay"), transitionCmd(run, "cancel"), linkCmd(run))
	return root
}

type runFunc func(fn func(ctx context.Context, c *console, out io.Writer) (any, error)) func(*cobra.Command, []string) error

func createCmd(run runFunc) *cobra.Command {
	var amount, currency, order string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending payment",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(func(ctx context.Context, c *console, _ io.Writer) (any, error) {
		minor, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil {
			return nil, &domain.ValidationError{Field: "amount", Reason: "Invalid amount"}
		}
		return c.svc.CreatePayment(ctx, application.CreatePaymentInput{
			Amount:          minor,
			Currency:        domain.Currency(currency),
			MerchantOrderID: order,
		})
	})
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount in minor units (100 = 1.00)")
	cmd.Flags().StringVarP(&currency, "currency", "c", string(domain.DefaultCurrency), "Currency (EGP, USD, EUR)")
	cmd.Flags().StringVarP(&order, "order", "o", "", "Merchant order id")
	return cmd
}

func listCmd(run runFunc) *cobra.Command {
	var q application.ListQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payments, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(func(ctx context.Context, c *console, _ io.Writer) (any, error) {
		return c.svc.List(ctx, q)
	})
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "Case-insensitive merchant order id substring")
	cmd.Flags().StringVar(&q.Status, "status", domain.StatusAll, "pending, paid, canceled or all")
	return cmd
}

func showCmd(run runFunc) *cobra.Command {
	var public bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *console, _ io.Writer) (any, error) {
			if public {
				return c.svc.GetByPublicID(ctx, args[0])
			}
			return c.svc.Get(ctx, args[0])
		})(cmd, args)
	}
	cmd.Flags().BoolVar(&public, "public", false, "Look up by public id")
	return cmd
}

func transitionCmd(run runFunc, verb string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   verb + " <publicId>",
		Short: "Mark a pending payment as paid",
		Args:  cobra.ExactArgs(1),
	}
	if verb == "cancel" {
		cmd.Short = "Cancel a pending payment"
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *console, _ io.Writer) (any, error) {
			if verb == "cancel" {
				return c.svc.MarkCanceled(ctx, args[0])
			}
			return c.svc.MarkPaid(ctx, args[0])
		})(cmd, args)
	}
	return cmd
}

func linkCmd(run runFunc) *cobra.Command {
	var qrPath string
	cmd := &cobra.Command{
		Use:   "link <id>",
		Short: "Print the shareable payment link",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *console, out io.Writer) (any, error) {
			p, err := c.svc.Get(ctx, args[0])
			if err != nil {
				return nil, err
			}
			link := c.link(p.PublicID)
			if qrPath != "" {
				if err := qrcode.WriteFile(link, qrcode.Medium, 256, qrPath); err != nil {
					return nil, fmt.Errorf("write qr: %w", err)
				}
			}
			_, err = fmt.Fprintln(out, link)
			return nil, err
		})(cmd, args)
	}
	cmd.Flags().StringVar(&qrPath, "qr", "", "Also write a QR code PNG to this path")
	return cmd
}

type paymentOut struct {
	domain.Payment
	PaymentLink string `json:"paymentLink"`
}

func render(w io.Writer, c *console, v any, asJSON bool) error {
	switch v := v.(type) {
	case domain.Payment:
		if asJSON {
			return writeJSON(w, paymentOut{Payment: v, PaymentLink: c.link(v.PublicID)})
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "id:\t%s\n", v.ID)
		fmt.Fprintf(tw, "public id:\t%s\n", v.PublicID)
		fmt.Fprintf(tw, "amount:\t%s\n", v.DisplayAmount())
		fmt.Fprintf(tw, "status:\t%s\n", v.Status)
		fmt.Fprintf(tw, "order:\t%s\n", v.MerchantOrderID)
		fmt.Fprintf(tw, "created:\t%s\n", v.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(tw, "updated:\t%s\n", v.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(tw, "link:\t%s\n", c.link(v.PublicID))
		return tw.Flush()
	case []domain.Payment:
		if asJSON {
			out := make([]paymentOut, 0, len(v))
			for _, p := range v {
				out = append(out, paymentOut{Payment: p, PaymentLink: c.link(p.PublicID)})
			}
			return writeJSON(w, out)
		}
		if len(v) == 0 {
			_, err := fmt.Fprintln(w, "No payments found")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tORDER\tAMOUNT\tSTATUS\tCREATED")
		for _, p := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.MerchantOrderID, p.DisplayAmount(), p.Status, p.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("cannot render %T", v)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
