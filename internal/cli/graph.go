package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/compiler"
	"github.com/roach88/fcrcheck/internal/diag"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Dispatch string
}

// GraphComponent is one SCC of the condensation.
type GraphComponent struct {
	Functions []string `json:"functions"`
	Recursive bool     `json:"recursive"`
	Calls     []string `json:"calls,omitempty"`
}

// GraphResult is the condensation in solver processing order.
type GraphResult struct {
	Functions   int                   `json:"functions"`
	Edges       int                   `json:"edges"`
	Components  []GraphComponent      `json:"components"`
	Recursions  []callgraph.Recursion `json:"recursions,omitempty"`
	Diagnostics []diag.Diagnostic     `json:"diagnostics,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <path>",
		Short: "Print the call graph condensation",
		Long: `Build the call graph of the manifests and print its strongly connected
components in the order the effect solver processes them: every component
appears after all components it calls into.

Unresolved call sites are listed after the components.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("dispatch") {
				opts.Dispatch = opts.Config.Dispatch
			}
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dispatch, "dispatch", "", "dispatch mode (strict|conservative)")

	return cmd
}

func runGraph(opts *GraphOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	mode, err := callgraph.ParseDispatchMode(opts.Dispatch)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --dispatch", err)
	}

	loaded, errs := compiler.Load(path)
	if len(errs) > 0 {
		return formatter.LoadErrors(errs)
	}

	g, ds := callgraph.Build(loaded.Program, callgraph.Options{Dispatch: mode})
	diag.Sort(ds)
	result := condense(g)
	result.Diagnostics = ds

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Call graph: %d function(s), %d edge(s), %d component(s)\n\n",
		result.Functions, result.Edges, len(result.Components))
	for i, c := range result.Components {
		marker := ""
		if c.Recursive {
			marker = " (recursive)"
		}
		fmt.Fprintf(w, "%3d. %s%s\n", i+1, strings.Join(c.Functions, ", "), marker)
		if len(c.Calls) > 0 {
			fmt.Fprintf(w, "     calls: %s\n", strings.Join(c.Calls, ", "))
		}
	}
	if len(ds) > 0 {
		fmt.Fprintln(w)
		if err := diag.WriteText(w, ds); err != nil {
			return err
		}
	}
	return nil
}

// condense groups g's functions by SCC and lists, for each component,
// the functions outside it that it calls.
func condense(g *callgraph.Graph) GraphResult {
	result := GraphResult{
		Functions:  len(g.Funcs),
		Edges:      len(g.Edges),
		Components: []GraphComponent{},
		Recursions: g.Recursions(),
	}

	for _, scc := range g.SCCs() {
		members := make(map[callgraph.FuncID]bool, len(scc))
		for _, f := range scc {
			members[f] = true
		}

		c := GraphComponent{Recursive: len(scc) > 1 || g.HasSelfLoop(scc[0])}
		seen := make(map[string]bool)
		for _, f := range scc {
			c.Functions = append(c.Functions, g.Funcs[f].Name)
			for _, s := range g.Successors(f) {
				name := g.Funcs[s].Name
				if !members[s] && !seen[name] {
					seen[name] = true
					c.Calls = append(c.Calls, name)
				}
			}
		}
		result.Components = append(result.Components, c)
	}
	return result
}
