package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/amrviz/internal/cli"
	"github.com/aretw0/amrviz/internal/client"
	"github.com/aretw0/amrviz/internal/config"
	"github.com/aretw0/amrviz/internal/presentation/tui"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run one solve-and-refine request",
	Long: `Solves an obstacle problem and writes solution_<i>.pvd files into the
storage directory, or into a running server with --remote.

Parameters come from --params (YAML or JSON with the keys of POST /solve),
overridden by the individual flags.`,
	Example: `  amrviz solve --problem Spiral --iterations 3 --method UDO --neighbors 2
  amrviz solve --params params.yaml --remote http://localhost:5000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := solveParams(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		remote, _ := cmd.Flags().GetString("remote")
		asJSON, _ := cmd.Flags().GetBool("json")

		switch mode, _ := cmd.Flags().GetString("profile"); mode {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		default:
			return fmt.Errorf("unknown profile mode %q (want cpu or mem)", mode)
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		var res *domain.SolveResult
		if remote != "" {
			c, err := client.New(remote, client.WithSession(sessionID))
			if err != nil {
				return err
			}
			res, err = c.Solve(sc, params)
			if err != nil {
				return cli.HandleExecutionError(os.Stderr, err, sc.Signal())
			}
		} else {
			_, _, engine, cleanup, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()
			res, err = engine.Solve(sc, sessionID, params)
			if err != nil {
				return cli.HandleExecutionError(os.Stderr, err, sc.Signal())
			}
		}
		return printResult(res, asJSON)
	},
}

// solveParams merges the --params file with the flags that were set.
func solveParams(cmd *cobra.Command) (domain.SolveParams, error) {
	p := domain.DefaultSolveParams()
	if path, _ := cmd.Flags().GetString("params"); path != "" {
		var err error
		if p, err = config.LoadParams(path); err != nil {
			return p, err
		}
	}
	f := cmd.Flags()
	if f.Changed("problem") {
		v, _ := f.GetString("problem")
		p.Problem = domain.ProblemType(v)
	}
	if f.Changed("tri-height") {
		p.InitTriHeight, _ = f.GetFloat64("tri-height")
	}
	if f.Changed("iterations") {
		p.MaxIterations, _ = f.GetInt("iterations")
	}
	if f.Changed("method") {
		v, _ := f.GetString("method")
		p.Method = domain.Method(v)
	}
	if f.Changed("bracket") {
		p.Bracket, _ = f.GetFloat64Slice("bracket")
	}
	if f.Changed("neighbors") {
		p.Neighbors, _ = f.GetInt("neighbors")
	}
	return p.Normalize()
}

func printResult(res *domain.SolveResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	out, err := tui.NewRenderer()(tui.ResultMarkdown(res))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func init() {
	rootCmd.AddCommand(solveCmd)
	d := domain.DefaultSolveParams()
	f := solveCmd.Flags()
	f.String("params", "", "YAML or JSON file with the solve parameters")
	f.String("problem", string(d.Problem), "Problem: Sphere or Spiral")
	f.Float64("tri-height", d.InitTriHeight, "Initial triangle height")
	f.IntP("iterations", "n", d.MaxIterations, "Number of solve-and-refine iterations")
	f.String("method", string(d.Method), "Refinement method: VCES or UDO")
	f.Float64Slice("bracket", d.Bracket, "VCES bracket lower,upper")
	f.Int("neighbors", d.Neighbors, "UDO neighborhood depth")
	f.String("session", domain.DefaultSessionID, "Session namespace")
	f.String("remote", "", "Base URL of a running amrviz server")
	f.String("profile", "", "Write a cpu or mem profile to the working directory")
	f.Bool("json", false, "Print the result as JSON")
}
