package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Goodman667/NeuraSense/internal/rules"
)

// rulecheck validates a rule document the way the engine loads it, printing
// every rule that would be skipped at runtime and why. Exit code 1 when the
// document yields no usable rules.
func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <rules.yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rulecheck: %v\n", err)
		os.Exit(1)
	}

	doc, skipped, err := rules.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rulecheck: %v\n", err)
		os.Exit(1)
	}

	for _, r := range doc.Rules {
		enabled := "enabled"
		if !r.IsEnabled() {
			enabled = "disabled"
		}
		fmt.Printf("ok    %-30s tier=%-12s priority=%-4d %s\n", r.RuleID, r.Tier, r.Priority, enabled)
	}
	for _, s := range skipped {
		id := s.RuleID
		if id == "" {
			id = fmt.Sprintf("(rule #%d)", s.Index)
		}
		fmt.Printf("skip  %-30s %s\n", id, s.Reason)
	}

	fmt.Printf("\n%d loaded, %d skipped", len(doc.Rules), len(skipped))
	if len(doc.DefaultActions) > 0 {
		fmt.Printf(", %d default actions", len(doc.DefaultActions))
	}
	fmt.Println()

	if len(doc.Rules) == 0 && len(doc.DefaultActions) == 0 {
		fmt.Fprintln(os.Stderr, "rulecheck: document yields no usable rules or defaults")
		os.Exit(1)
	}
}
