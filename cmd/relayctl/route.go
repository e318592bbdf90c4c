package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/relaydeck/relaydeck/core/scopes"
)

func runRouteCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		runResourceList(scopes.KindRoute, args[1:])
	case "create":
		runRouteCreate(args[1:])
	case "update":
		runRouteUpdate(args[1:])
	case "delete":
		runResourceDelete(scopes.KindRoute, args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func routeSpecFlags(fs *flagSet) (*int64, *int64, *string) {
	source := fs.Int64("source", 0, "source id")
	target := fs.Int64("target", 0, "target id")
	template := fs.String("template", "", "payload template")
	return source, target, template
}

func runRouteCreate(args []string) {
	fs := newFlagSet("route create")
	source, target, template := routeSpecFlags(fs)
	fs.ParseArgs(args)
	if *source <= 0 || *target <= 0 {
		fail("--source and --target required")
	}
	client := newClient(*fs.gateway, *fs.apiKey)
	coordinator := scopes.NewCoordinator(
		scopes.NewProber(client, fs.newTeamContext(client), nil),
		scopes.NewDispatcher(client),
	)
	created, err := coordinator.CreateRoute(context.Background(), scopes.RouteSpec{
		SourceID: *source,
		TargetID: *target,
		Template: *template,
	})
	check(err)
	fmt.Printf("route %d created in %s\n", created.ID, created.Scope)
}

func runRouteUpdate(args []string) {
	fs := newFlagSet("route update")
	source, target, template := routeSpecFlags(fs)
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("route id required")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fail("invalid route id")
	}
	if *source <= 0 || *target <= 0 {
		fail("--source and --target required")
	}
	client := newClient(*fs.gateway, *fs.apiKey)
	coordinator := scopes.NewCoordinator(
		scopes.NewProber(client, fs.newTeamContext(client), nil),
		scopes.NewDispatcher(client),
	)
	updated, err := coordinator.UpdateRoute(context.Background(), id, scopes.RouteSpec{
		SourceID: *source,
		TargetID: *target,
		Template: *template,
	})
	check(err)
	fmt.Printf("route %d updated in %s\n", updated.ID, updated.Scope)
}

// runResolveCmd answers "which scope does this resource live in" by walking
// personal, active team, then the remaining memberships.
func runResolveCmd(args []string) {
	fs := newFlagSet("resolve")
	fs.ParseArgs(args)
	if fs.NArg() < 2 {
		fail("usage: resolve <source|target|route> <id>")
	}
	var kind scopes.ResourceKind
	switch fs.Arg(0) {
	case "source":
		kind = scopes.KindSource
	case "target":
		kind = scopes.KindTarget
	case "route":
		kind = scopes.KindRoute
	default:
		fail("kind must be source, target or route")
	}
	id, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil || id <= 0 {
		fail("invalid resource id")
	}
	client := newClient(*fs.gateway, *fs.apiKey)
	prober := scopes.NewProber(client, fs.newTeamContext(client), nil)
	scope, err := prober.ResolveScope(context.Background(), kind, id)
	check(err)
	fmt.Println(scope)
}
