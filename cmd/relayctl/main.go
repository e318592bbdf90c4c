package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/relaydeck/relaydeck/core/resources"
	"github.com/relaydeck/relaydeck/core/scopes"
	"github.com/relaydeck/relaydeck/core/teamctx"
)

const defaultGateway = "http://localhost:8090"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "source":
		runResourceCmd(scopes.KindSource, args)
	case "target":
		runResourceCmd(scopes.KindTarget, args)
	case "route":
		runRouteCmd(args)
	case "resolve":
		runResolveCmd(args)
	case "teams":
		runTeamsCmd(args)
	case "me":
		runMeCmd(args)
	case "deliveries":
		runDeliveriesCmd(args)
	default:
		usage()
		os.Exit(1)
	}
}

type flagSet struct {
	*flag.FlagSet
	gateway    *string
	apiKey     *string
	scope      *string
	activeTeam *int64
}

func newFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	gateway := fs.String("gateway", envOr("RELAYDECK_API_URL", defaultGateway), "console base url")
	apiKey := fs.String("api-key", envOr("RELAYDECK_API_KEY", ""), "api key")
	scope := fs.String("scope", "personal", "collection scope (personal or team/<id>)")
	activeTeam := fs.Int64("active-team", 0, "team the session is focused on; probed before other memberships")
	return &flagSet{FlagSet: fs, gateway: gateway, apiKey: apiKey, scope: scope, activeTeam: activeTeam}
}

func (fs *flagSet) ParseArgs(args []string) {
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}
}

func (fs *flagSet) parseScope() scopes.Scope {
	scope, err := scopes.ParseScope(*fs.scope)
	if err != nil {
		fail(err.Error())
	}
	return scope
}

func newClient(gateway, apiKey string) *resources.Client {
	return resources.New(strings.TrimRight(gateway, "/"), apiKey)
}

// newTeamContext binds the CLI's scope flags to the console's membership
// directory so resolution walks personal, then the active team, then the
// remaining memberships.
func (fs *flagSet) newTeamContext(client *resources.Client) scopes.TeamContext {
	selection := teamctx.NewSelection()
	selection.SetScope(fs.parseScope())
	if *fs.activeTeam > 0 {
		selection.SetActiveTeam(*fs.activeTeam)
	}
	return teamctx.NewContext(selection, client)
}

func printJSON(value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	check(err)
	fmt.Println(string(data))
}

func usage() {
	fmt.Print(`relayctl - relaydeck console CLI

Usage:
  relayctl source list [--scope personal|team/<id>]
  relayctl source create --name <name> [--kind <kind>] [--scope ...]
  relayctl source delete <id> [--active-team <id>]
  relayctl target list [--scope ...]
  relayctl target create --name <name> --url <url> [--scope ...]
  relayctl target delete <id> [--active-team <id>]
  relayctl route list [--scope ...]
  relayctl route create --source <id> --target <id> [--template <t>] [--active-team <id>]
  relayctl route update <id> --source <id> --target <id> [--template <t>] [--active-team <id>]
  relayctl route delete <id> [--active-team <id>]
  relayctl resolve <source|target|route> <id> [--active-team <id>]
  relayctl teams
  relayctl me
  relayctl deliveries list [--limit <n>]
  relayctl deliveries tail

Global flags:
  --gateway   Console base URL (default from RELAYDECK_API_URL)
  --api-key   API key (default from RELAYDECK_API_KEY)
`)
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func check(err error) {
	if err != nil {
		fail(err.Error())
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
