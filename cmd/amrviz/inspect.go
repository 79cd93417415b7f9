package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/amrviz/internal/client"
	"github.com/aretw0/amrviz/internal/presentation/tui"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a stored .pvd or .vtu file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		scalar, _ := cmd.Flags().GetString("scalar")
		remote, _ := cmd.Flags().GetString("remote")
		asJSON, _ := cmd.Flags().GetBool("json")

		var geo *service.Geometry
		if remote != "" {
			c, err := client.New(remote, client.WithSession(sessionID))
			if err != nil {
				return err
			}
			if geo, err = c.Geometry(cmd.Context(), args[0], scalar); err != nil {
				return err
			}
		} else {
			_, _, engine, cleanup, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()
			if geo, err = engine.Geometry(cmd.Context(), sessionID, args[0], scalar); err != nil {
				return err
			}
		}

		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(geo)
		}
		out, err := tui.NewRenderer()(tui.GeometryMarkdown(geo))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("session", domain.DefaultSessionID, "Session namespace")
	inspectCmd.Flags().String("scalar", "", "Array to summarize (default: solution)")
	inspectCmd.Flags().String("remote", "", "Base URL of a running amrviz server")
	inspectCmd.Flags().Bool("json", false, "Print the full geometry as JSON")
}
