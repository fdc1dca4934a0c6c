package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/definition"
	"github.com/epicenter-hq/core/pkg/head"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/providers/boltprovider"
	"github.com/epicenter-hq/core/pkg/schema"
	"github.com/epicenter-hq/core/pkg/workspace"
)

var workspaceSchemaCmd = &cobra.Command{
	Use:   "schema <workspace-id>",
	Short: "Export or import a workspace's table/KV schema as YAML",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export <workspace-id>",
	Short: "Print a workspace's current table/KV definitions as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaExport,
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <workspace-id> <file>",
	Short: "Merge table/KV definitions read from a YAML file into a workspace",
	Long: `import reads a file previously written by "schema export" (or
hand-edited to the same shape) and merges its tables and kv entries into
the workspace's current-epoch data document. An entry deep-equal to what
is already stored is left untouched; anything else overwrites the stored
definition. This does not touch row data or run any migrator — it only
changes what Current looks like going forward.`,
	Args: cobra.ExactArgs(2),
	RunE: runSchemaImport,
}

func init() {
	workspaceSchemaCmd.AddCommand(schemaExportCmd)
	workspaceSchemaCmd.AddCommand(schemaImportCmd)
	workspaceCmd.AddCommand(workspaceSchemaCmd)
}

// schemaFile is the on-disk YAML shape for a workspace's exported schema.
type schemaFile struct {
	Tables map[string]schema.TableDefYAML `yaml:"tables,omitempty"`
	KV     map[string]schema.KvDefYAML    `yaml:"kv,omitempty"`
}

func attachData(ctx context.Context, workspaceID string) (db closer, def *definition.Definition, cleanup func(), err error) {
	bdb, err := boltprovider.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	headDoc := crdt.NewDoc(workspaceID+":head", cfg.ClientID)
	headLC, err := boltprovider.Attach(headDoc, bdb, boltprovider.Config{
		DataDir: cfg.DataDir,
		Bucket:  fmt.Sprintf("workspaces/%s/head", workspaceID),
	})
	if err != nil {
		bdb.Close()
		return nil, nil, nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := lifecycle.Wait(waitCtx, headLC); err != nil {
		cancel()
		headLC.Destroy()
		bdb.Close()
		return nil, nil, nil, fmt.Errorf("workspace %q: load head: %w", workspaceID, err)
	}
	cancel()
	epoch := head.New(headDoc).GetEpoch()
	headLC.Destroy()

	dataDoc := crdt.NewDoc(workspace.DocID(workspaceID, epoch), cfg.ClientID)
	dataLC, err := boltprovider.Attach(dataDoc, bdb, boltprovider.Config{
		DataDir: cfg.DataDir,
		Bucket:  fmt.Sprintf("workspaces/%s/%d/data", workspaceID, epoch),
	})
	if err != nil {
		bdb.Close()
		return nil, nil, nil, err
	}
	waitCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := lifecycle.Wait(waitCtx, dataLC); err != nil {
		dataLC.Destroy()
		bdb.Close()
		return nil, nil, nil, fmt.Errorf("workspace %q epoch %d: load data: %w", workspaceID, epoch, err)
	}

	return bdb, definition.New(dataDoc), func() { dataLC.Destroy(); bdb.Close() }, nil
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	workspaceID := args[0]
	_, def, cleanup, err := attachData(cmd.Context(), workspaceID)
	if err != nil {
		return err
	}
	defer cleanup()

	var out schemaFile
	tables := def.Tables().GetAll()
	if len(tables) > 0 {
		out.Tables = make(map[string]schema.TableDefYAML, len(tables))
		for name, td := range tables {
			out.Tables[name] = schema.ExportTableDef(td)
		}
	}
	kvs := def.KV().GetAll()
	if len(kvs) > 0 {
		out.KV = make(map[string]schema.KvDefYAML, len(kvs))
		for name, kd := range kvs {
			out.KV[name] = schema.ExportKvDef(kd)
		}
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("schema export: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runSchemaImport(cmd *cobra.Command, args []string) error {
	workspaceID, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema import: %w", err)
	}
	var in schemaFile
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("schema import: parse %q: %w", path, err)
	}

	tables := make(map[string]schema.TableDef, len(in.Tables))
	for name, ty := range in.Tables {
		tables[name] = schema.ImportTableDef(ty)
	}
	kv := make(map[string]schema.KvDef, len(in.KV))
	for name, ky := range in.KV {
		kv[name] = schema.ImportKvDef(ky)
	}

	_, def, cleanup, err := attachData(cmd.Context(), workspaceID)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := definition.MergeSchema(def, tables, kv); err != nil {
		return fmt.Errorf("schema import: %w", err)
	}
	fmt.Printf("imported %d table(s) and %d kv entry(ies) into workspace %q\n", len(tables), len(kv), workspaceID)
	return nil
}
