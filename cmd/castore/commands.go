package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/castore"
	"github.com/unkn0wn-root/castore/kind"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report backend availability and whether the store is initialized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:     %s\n", s.store.Describe())
			available := s.store.IsAvailable(s.ctx)
			fmt.Fprintf(out, "available:   %t\n", available)
			if !available {
				return nil
			}
			inited, err := s.store.IsInitialized(s.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "initialized: %t\n", inited)
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <key>",
		Short: "Print one stored item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			it, ok, err := s.store.Get(s.ctx, kind.JSON(args[0]), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s %q not found", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(it.Data))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "Print every stored item of a kind as a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			all, err := s.store.GetAll(s.ctx, kind.JSON(args[0]))
			if err != nil {
				return err
			}
			doc := make(map[string]json.RawMessage, len(all))
			for k, it := range all {
				doc[k] = it.Data
			}
			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <file.json>",
		Short: "Replace the whole data set with the contents of a file",
		Long: `Replace everything under the prefix with the data set in file.
The file maps kind names to objects of key => item, e.g.

  {"features": {"my-flag": {"key": "my-flag", "version": 3, "on": true}}}

Items must carry a numeric "version" and may set "deleted": true.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDataSet(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.store.Init(s.ctx, data); err != nil {
				return err
			}
			n := 0
			for _, c := range data {
				n += len(c.Items)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %d items in %d kinds\n", n, len(data))
			return nil
		},
	}
}

func newUpsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upsert <kind> <key> <item.json>",
		Short: "Write one item unless a same or newer version is stored",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			k := kind.JSON(args[0])
			it, err := kind.Raw(k, raw)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[2], err)
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			applied, err := s.store.Upsert(s.ctx, k, args[1], it)
			if err != nil {
				return err
			}
			if applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied version %d\n", it.Version)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped: stored version is %d or newer\n", it.Version)
			}
			return nil
		},
	}
}

// readDataSet loads {"kind": {"key": item}}. Kinds and keys are sorted so
// repeated runs emit identical transactions.
func readDataSet(path string) (castore.FullDataSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make(castore.FullDataSet, 0, len(names))
	for _, name := range names {
		k := kind.JSON(name)
		items := doc[name]
		ks := make([]string, 0, len(items))
		for key := range items {
			ks = append(ks, key)
		}
		sort.Strings(ks)

		c := castore.Collection{Kind: k, Items: make([]castore.KeyedItem, 0, len(ks))}
		for _, key := range ks {
			it, err := kind.Raw(k, items[key])
			if err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", name, key, err)
			}
			c.Items = append(c.Items, castore.KeyedItem{Key: key, Item: it})
		}
		data = append(data, c)
	}
	return data, nil
}
