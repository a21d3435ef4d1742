package config

import (
	"fmt"
	"strings"
)

// Action is what the command line asked the process to do.
type Action int

const (
	// ActionRun processes accounts normally.
	ActionRun Action = iota
	// ActionInitPrices bootstraps the price snapshot file and exits.
	ActionInitPrices
	// ActionExit exits immediately.
	ActionExit
)

// ParseArgs scans command-line arguments. "--key=value" pairs become config
// overrides (highest precedence); "-init-cbp" and "-exit" select an action.
func ParseArgs(args []string) (map[string]string, Action, error) {
	overrides := map[string]string{}
	action := ActionRun
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--"):
			key, value, ok := strings.Cut(arg[2:], "=")
			if !ok {
				return nil, action, fmt.Errorf("argument %q not valid", arg)
			}
			overrides[key] = value
		case strings.HasPrefix(arg, "-"):
			switch arg[1:] {
			case "init-cbp":
				action = ActionInitPrices
			case "exit":
				action = ActionExit
			}
		}
	}
	return overrides, action, nil
}
