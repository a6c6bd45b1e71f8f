package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/snapshot"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/pkg/resource"
)

// appFactory is replaced in tests.
var appFactory = newApp

func withApp(cmd *cobra.Command) (context.Context, *app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := appFactory(ctx)
	return ctx, a, err
}

func (a *app) binding(name string) (domain.Binding, error) {
	b, ok := a.reg.Binding(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q (try: %s)", name, strings.Join(a.reg.Names(), ", "))
	}
	return b, nil
}

func resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the collections the console manages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPATH\tACCESS")
			for _, name := range a.reg.Names() {
				b, _ := a.reg.Binding(name)
				access := "read-write"
				if b.ReadOnly() {
					access = "read-only"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, b.Container().Descriptor().Path, access)
			}
			return w.Flush()
		},
	}
}

func listCmd() *cobra.Command {
	var filters []string
	cmd := &cobra.Command{
		Use:   "list <name>",
		Short: "Fetch a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(filters)
			if err != nil {
				return err
			}
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			b, err := a.binding(args[0])
			if err != nil {
				return err
			}
			items, err := b.Container().FetchAll(ctx, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value, repeatable")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name> <id>",
		Short: "Fetch a single entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			b, err := a.binding(args[0])
			if err != nil {
				return err
			}
			e, err := b.Container().FetchOne(ctx, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
}

type bodyFlags struct {
	data  string
	files []string
}

func (f *bodyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.data, "data", "", "entity as a JSON object, or @file")
	cmd.Flags().StringArrayVar(&f.files, "file", nil, "attachment as part=path, repeatable")
}

func (f *bodyFlags) read() (resource.Entity, []gateway.File, error) {
	raw := f.data
	if strings.HasPrefix(raw, "@") {
		b, err := os.ReadFile(raw[1:])
		if err != nil {
			return nil, nil, err
		}
		raw = string(b)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil, fmt.Errorf("--data is required")
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var e resource.Entity
	if err := dec.Decode(&e); err != nil || e == nil {
		return nil, nil, fmt.Errorf("--data must be a JSON object")
	}
	files, err := parseFiles(f.files)
	if err != nil {
		return nil, nil, err
	}
	return e, files, nil
}

func createCmd() *cobra.Command {
	var body bodyFlags
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Validate and create an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, files, err := body.read()
			if err != nil {
				return err
			}
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			b, err := a.binding(args[0])
			if err != nil {
				return err
			}
			if err := b.CreateEntity(ctx, e, files); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Container().Status(store.OpCreate).Message)
			return nil
		},
	}
	body.register(cmd)
	return cmd
}

func updateCmd() *cobra.Command {
	var body bodyFlags
	cmd := &cobra.Command{
		Use:   "update <name> <id>",
		Short: "Validate and update an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, files, err := body.read()
			if err != nil {
				return err
			}
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			b, err := a.binding(args[0])
			if err != nil {
				return err
			}
			if err := b.UpdateEntity(ctx, args[1], e, files); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Container().Status(store.OpUpdate).Message)
			return nil
		},
	}
	body.register(cmd)
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name> <id>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			b, err := a.binding(args[0])
			if err != nil {
				return err
			}
			if b.ReadOnly() {
				return domain.ErrReadOnly
			}
			if _, err := b.Container().Delete(ctx, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Container().Status(store.OpDelete).Message)
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save or inspect offline snapshots",
	}

	var names []string
	save := &cobra.Command{
		Use:   "save",
		Short: "Fetch collections and store them in the snapshot backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			st, err := snapshot.Open(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := a.reg.Hub.LoadAll(ctx, names...); err != nil {
				return err
			}
			snaps := a.reg.Hub.Snapshot()
			if len(names) > 0 {
				snaps = only(snaps, names)
			}
			if err := st.Save(ctx, snaps); err != nil {
				return err
			}
			for _, s := range snaps {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d items)\n", s.Name, len(s.Items))
			}
			return nil
		},
	}
	save.Flags().StringSliceVar(&names, "only", nil, "collections to save (default all)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print what the snapshot backend holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := withApp(cmd)
			if err != nil {
				return err
			}
			st, err := snapshot.Open(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			snaps, err := st.Load(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tITEMS\tCURRENT")
			for _, s := range snaps {
				cur := "-"
				if id, ok := s.Current.ID(resource.DefaultIDField); ok {
					cur = id
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, len(s.Items), cur)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(save, show)
	return cmd
}

func only(snaps []store.Snapshot, names []string) []store.Snapshot {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	out := snaps[:0]
	for _, s := range snaps {
		if keep[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func parseFilter(pairs []string) (url.Values, error) {
	filter := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q: want key=value", p)
		}
		filter.Add(k, v)
	}
	return filter, nil
}

func parseFiles(args []string) ([]gateway.File, error) {
	files := make([]gateway.File, 0, len(args))
	for _, s := range args {
		part, path, ok := strings.Cut(s, "=")
		if !ok || part == "" || path == "" {
			return nil, fmt.Errorf("file %q: want part=path", s)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, gateway.File{
			Field:       part,
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		})
	}
	return files, nil
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", raw)
	return err
}
