package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type clientFactory func() (*apiClient, error)

func newReindexCmd(newClient clientFactory) *cobra.Command {
	var ids []int64

	cmd := &cobra.Command{
		Use:   "reindex <type>",
		Short: "Rebuild full-text index records for objects of one type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			body := map[string]any{"type": args[0], "ids": ids}
			if err := client.post("/v1/reindex", body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d %s objects\n", len(ids), args[0])
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "object ids to reindex")
	cmd.MarkFlagRequired("ids")
	return cmd
}

func newIssuesCmd(newClient clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "Bulk ticket synchronization",
	}
	cmd.AddCommand(newIssuesSyncCmd(newClient, "generate", "/v1/issues/bulk-generate",
		"Create tracker tickets for unlinked objects"))
	cmd.AddCommand(newIssuesSyncCmd(newClient, "update", "/v1/issues/bulk-update",
		"Push local state to existing tracker tickets"))
	cmd.AddCommand(newIssuesChildrenCmd(newClient))
	return cmd
}

// newIssuesSyncCmd builds the generate/update subcommands, which differ
// only in endpoint. Objects are given as TYPE:ID arguments.
func newIssuesSyncCmd(newClient clientFactory, use, path, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <type:id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objects := make([]map[string]any, 0, len(args))
			for _, arg := range args {
				objectType, id, err := parseObjectRef(arg)
				if err != nil {
					return err
				}
				objects = append(objects, map[string]any{"type": objectType, "id": id})
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			var resp bulkResponse
			if err := client.post(path, map[string]any{"objects": objects}, &resp); err != nil {
				return err
			}
			return printBulkResult(cmd, len(args), resp)
		},
	}
}

func newIssuesChildrenCmd(newClient clientFactory) *cobra.Command {
	var childType string

	cmd := &cobra.Command{
		Use:   "generate-children <parent-type:id>",
		Short: "Create tracker tickets for all unlinked children of a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentType, parentID, err := parseObjectRef(args[0])
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			body := map[string]any{
				"parent_type": parentType,
				"parent_id":   parentID,
				"child_type":  childType,
			}
			var resp bulkResponse
			if err := client.post("/v1/issues/bulk-child-generate", body, &resp); err != nil {
				return err
			}
			return printBulkResult(cmd, 0, resp)
		},
	}
	cmd.Flags().StringVar(&childType, "child-type", "Assessment", "child object type to generate tickets for")
	return cmd
}

func parseObjectRef(arg string) (string, int64, error) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid object reference %q, expected TYPE:ID", arg)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid object id in %q: %w", arg, err)
	}
	return parts[0], id, nil
}

func printBulkResult(cmd *cobra.Command, total int, resp bulkResponse) error {
	for _, itemErr := range resp.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d: %s\n", itemErr.Type, itemErr.ID, itemErr.Message)
	}
	if total > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d of %d objects\n", total-len(resp.Errors), total)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "done, %d failures\n", len(resp.Errors))
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("%d objects failed to sync", len(resp.Errors))
	}
	return nil
}
