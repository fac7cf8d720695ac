package main

import (
	"strings"
	"testing"
)

func TestVersionCommandRuns(t *testing.T) {
	versionCmd.Run(versionCmd, nil)
}

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "discover", "push", "version"} {
		if !names[want] {
			t.Errorf("rootCmd missing subcommand %q", want)
		}
	}
}

func TestRootCommandHasConfigFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("expected --config persistent flag")
	}
}

func TestPushCommandRequiresRepoAddressArg(t *testing.T) {
	if err := pushCmd.Args(pushCmd, nil); err == nil {
		t.Error("expected an error with zero args")
	}
	if err := pushCmd.Args(pushCmd, []string{"30617:abcd:widgets"}); err != nil {
		t.Errorf("unexpected error with one arg: %v", err)
	}
}

func TestDiscoverUsageMentionsRepoAddress(t *testing.T) {
	if !strings.Contains(discoverCmd.Use, "repo-address") {
		t.Errorf("unexpected Use string: %q", discoverCmd.Use)
	}
}
