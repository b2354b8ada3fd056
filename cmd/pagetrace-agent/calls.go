package main

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newCallsCommand(a *app) *cobra.Command {
	var (
		clientID string
		limit    int
		output   string
	)
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List recorded analytics calls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(a.cfg.Database.Path, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			calls, err := db.ListCalls(clientID, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch output {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(calls)
			case "yaml":
				out, err := yaml.Marshal(calls)
				if err != nil {
					return err
				}
				_, err = w.Write(out)
				return err
			case "text":
				for _, call := range calls {
					fmt.Fprintf(w, "%s  %-10s %-7s %-24s %v\n", call.TSISO, call.ClientID, call.Command, call.Target, call.Params)
				}
				return nil
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "only calls for this tab")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of calls")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml)")
	return cmd
}
