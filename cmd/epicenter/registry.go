package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/providers/boltprovider"
	"github.com/epicenter-hq/core/pkg/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the workspace registry",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every workspace ID known to the registry",
	RunE:  runRegistryList,
}

func init() {
	registryCmd.AddCommand(registryListCmd)
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	db, err := boltprovider.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	doc := crdt.NewDoc("registry", cfg.ClientID)
	lc, err := boltprovider.Attach(doc, db, boltprovider.Config{DataDir: cfg.DataDir, Bucket: "registry"})
	if err != nil {
		return err
	}
	defer lc.Destroy()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := lifecycle.Wait(ctx, lc); err != nil {
		return fmt.Errorf("registry: load from disk: %w", err)
	}

	reg := registry.New(doc, nil)
	ids := reg.GetWorkspaceIDs()
	if len(ids) == 0 {
		fmt.Println("(no workspaces registered)")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
