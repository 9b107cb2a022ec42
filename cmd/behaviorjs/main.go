// Command behaviorjs runs JavaScript files against a demo behavior registry.
// It exists to exercise the bridge from the command line: scripts get the
// registry's classes and buses as globals, plus log().
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rbnpontes/behaviorjs"
	"github.com/rbnpontes/behaviorjs/behavior"
)

type config struct {
	MemoryLimit uint32   `yaml:"memory_limit"`
	Scope       string   `yaml:"scope"`
	Scripts     []string `yaml:"scripts"`
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c *config) scope() (behavior.Scope, error) {
	switch c.Scope {
	case "", "launcher":
		return behavior.ScopeLauncher, nil
	case "automation":
		return behavior.ScopeAutomation, nil
	}
	return 0, fmt.Errorf("unknown scope %q", c.Scope)
}

type vector3 struct {
	X, Y, Z float64
}

func (v *vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v *vector3) Normalize() {
	l := v.Length()
	if l == 0 {
		return
	}
	v.X, v.Y, v.Z = v.X/l, v.Y/l, v.Z/l
}

// demoRegistry is the registry scripts run against: a small vector class and
// a tick bus the REPL signals after every evaluated line.
func demoRegistry() (*behavior.Registry, *behavior.LocalBus, error) {
	reg := behavior.NewRegistry()
	cl, err := behavior.Bind(vector3{}, behavior.WithName("Vector3"))
	if err != nil {
		return nil, nil, err
	}
	if err := reg.AddClass(cl); err != nil {
		return nil, nil, err
	}
	tick := behavior.NewLocalBus("TickBus",
		behavior.Event{Name: "onTick", Params: []behavior.Parameter{
			{Name: "count", Type: behavior.TypeFloat64},
		}},
	)
	if err := reg.AddBus(tick.Bus()); err != nil {
		return nil, nil, err
	}
	return reg, tick, nil
}

func main() {
	var (
		configPath  string
		verbose     bool
		interactive bool
	)

	root := &cobra.Command{
		Use:          "behaviorjs",
		Short:        "Run scripts against the behavior bridge",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	run := &cobra.Command{
		Use:   "run [script.js ...]",
		Short: "Evaluate script files, then the OnActivate hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			scope, err := cfg.scope()
			if err != nil {
				return err
			}

			reg, tick, err := demoRegistry()
			if err != nil {
				return err
			}
			opts := []behaviorjs.Option{
				behaviorjs.WithLogger(logger),
				behaviorjs.WithScope(scope),
			}
			if cfg.MemoryLimit > 0 {
				opts = append(opts, behaviorjs.WithMemoryLimit(cfg.MemoryLimit))
			}
			ctx, err := behaviorjs.New(reg, opts...)
			if err != nil {
				return err
			}
			defer ctx.Close()

			for _, path := range append(cfg.Scripts, args...) {
				src, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := ctx.RunScript(string(src)); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			ctx.CallActivate()
			defer ctx.CallDeactivate()

			if interactive && term.IsTerminal(int(os.Stdin.Fd())) {
				repl(ctx, tick)
			}
			return nil
		},
	}
	run.Flags().BoolVarP(&interactive, "interactive", "i", false, "drop into a REPL after the scripts")
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func repl(ctx *behaviorjs.Context, tick *behavior.LocalBus) {
	fmt.Println("behaviorjs repl, .exit to quit")
	scanner := bufio.NewScanner(os.Stdin)
	count := 0.0
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			return
		}
		v, err := ctx.Eval(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(render(v))
		count++
		tick.Signal("onTick", count)
		ctx.RunGC()
	}
}

func render(v behaviorjs.DynamicValue) string {
	switch v.Kind() {
	case behaviorjs.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case behaviorjs.KindNumber:
		return fmt.Sprintf("%g", v.Float64())
	case behaviorjs.KindString:
		return v.String()
	case behaviorjs.KindArray:
		parts := make([]string, len(v.Items()))
		for i, it := range v.Items() {
			parts[i] = render(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case behaviorjs.KindObject:
		parts := make([]string, len(v.Fields()))
		for i, f := range v.Fields() {
			parts[i] = f.Key + ": " + render(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case behaviorjs.KindPointer:
		return fmt.Sprintf("[native %T]", v.Pointer())
	}
	return "undefined"
}
