package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/head"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/providers/boltprovider"
	"github.com/epicenter-hq/core/pkg/workspace"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Inspect and recover a single workspace",
}

var workspaceEpochCmd = &cobra.Command{
	Use:   "epoch <workspace-id>",
	Short: "Print a workspace's current epoch and per-client proposals",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceEpoch,
}

var workspaceDumpCmd = &cobra.Command{
	Use:   "dump <workspace-id>",
	Short: "Dump a workspace's data document at its current (or given) epoch as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceDump,
}

var workspaceRollbackCmd = &cobra.Command{
	Use:   "rollback <workspace-id> <epoch>",
	Short: "Force this client's epoch proposal for a workspace back to an earlier epoch",
	Long: `rollback sets this client's epoch proposal for a workspace to the
given epoch via ForceSetEpoch, without requiring it to be greater than the
current max. The head's epoch is the max of every client's proposal, so it
drops to the given epoch only when no other client proposes a higher one;
the epoch printed afterwards is the resulting head epoch.
Writes made at abandoned epochs are not deleted — only unreachable
through the head — so this is always safe to attempt twice.`,
	Args: cobra.ExactArgs(2),
	RunE: runWorkspaceRollback,
}

var dumpEpochFlag int

func init() {
	workspaceDumpCmd.Flags().IntVar(&dumpEpochFlag, "epoch", -1, "epoch to dump (defaults to the workspace's current epoch)")

	workspaceCmd.AddCommand(workspaceEpochCmd)
	workspaceCmd.AddCommand(workspaceDumpCmd)
	workspaceCmd.AddCommand(workspaceRollbackCmd)
}

func attachHead(ctx context.Context, workspaceID string) (db closer, h *head.Head, cleanup func(), err error) {
	bdb, err := boltprovider.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	doc := crdt.NewDoc(workspaceID+":head", cfg.ClientID)
	lc, err := boltprovider.Attach(doc, bdb, boltprovider.Config{
		DataDir: cfg.DataDir,
		Bucket:  fmt.Sprintf("workspaces/%s/head", workspaceID),
	})
	if err != nil {
		bdb.Close()
		return nil, nil, nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := lifecycle.Wait(waitCtx, lc); err != nil {
		lc.Destroy()
		bdb.Close()
		return nil, nil, nil, fmt.Errorf("workspace %q: load head: %w", workspaceID, err)
	}
	return bdb, head.New(doc), func() { lc.Destroy(); bdb.Close() }, nil
}

// closer is the subset of *bolt.DB this file needs, kept unexported so
// callers don't have to import go.etcd.io/bbolt directly.
type closer interface{ Close() error }

func runWorkspaceEpoch(cmd *cobra.Command, args []string) error {
	workspaceID := args[0]
	_, h, cleanup, err := attachHead(cmd.Context(), workspaceID)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("epoch: %d\n", h.GetEpoch())
	fmt.Println("proposals:")
	for client, epoch := range h.GetEpochProposals() {
		fmt.Printf("  %s: %d\n", client, epoch)
	}
	return nil
}

func runWorkspaceDump(cmd *cobra.Command, args []string) error {
	workspaceID := args[0]
	epoch := dumpEpochFlag
	if epoch < 0 {
		_, h, cleanup, err := attachHead(cmd.Context(), workspaceID)
		if err != nil {
			return err
		}
		epoch = h.GetEpoch()
		cleanup()
	}

	bdb, err := boltprovider.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer bdb.Close()

	doc := crdt.NewDoc(workspace.DocID(workspaceID, epoch), cfg.ClientID)
	lc, err := boltprovider.Attach(doc, bdb, boltprovider.Config{
		DataDir: cfg.DataDir,
		Bucket:  fmt.Sprintf("workspaces/%s/%d/data", workspaceID, epoch),
	})
	if err != nil {
		return err
	}
	defer lc.Destroy()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := lifecycle.Wait(ctx, lc); err != nil {
		return fmt.Errorf("workspace %q epoch %d: load data: %w", workspaceID, epoch, err)
	}

	out, err := json.MarshalIndent(doc.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runWorkspaceRollback(cmd *cobra.Command, args []string) error {
	workspaceID := args[0]
	target, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rollback: %q is not a valid epoch: %w", args[1], err)
	}

	_, h, cleanup, err := attachHead(cmd.Context(), workspaceID)
	if err != nil {
		return err
	}
	defer cleanup()

	before := h.GetEpoch()
	if err := h.ForceSetEpoch(target); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Printf("workspace %q head moved from epoch %d to %d\n", workspaceID, before, h.GetEpoch())
	return nil
}
