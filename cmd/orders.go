package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/pailas/app"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Plan production orders",
}

var eligibleCmd = &cobra.Command{
	Use:   "eligible <order-id>",
	Short: "List the vessels an order may run on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseOrderID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			vessels, err := svc.Resolver.Resolve(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, vessels)
		})
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <order-id> <vessel-id>",
	Short: "Assign an order to a vessel, splitting off a remainder if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseOrderID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			res, err := svc.Engine.Assign(ctx, id, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var unassignCmd = &cobra.Command{
	Use:   "unassign <order-id>",
	Short: "Release the vessel of an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseOrderID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			o, err := svc.Engine.Unassign(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		})
	},
}

var (
	scheduleStart string
	scheduleEnd   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <order-id>",
	Short: "Set the time window of an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseOrderID(args[0])
		if err != nil {
			return err
		}
		start, err := parseTimeFlag("start", scheduleStart)
		if err != nil {
			return err
		}
		end, err := parseTimeFlag("end", scheduleEnd)
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			o, err := svc.Engine.Schedule(ctx, id, start, end)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <order-id>",
	Short: "Show an order and its remainders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseOrderID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			node, err := svc.Engine.Tree(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, node)
		})
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleStart, "start", "", "window start (RFC3339)")
	scheduleCmd.Flags().StringVar(&scheduleEnd, "end", "", "window end (RFC3339); derived from the total duration when omitted")
	ordersCmd.AddCommand(eligibleCmd, assignCmd, unassignCmd, scheduleCmd, treeCmd)
	rootCmd.AddCommand(ordersCmd)
}

func parseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return id, nil
}

func parseTimeFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}
