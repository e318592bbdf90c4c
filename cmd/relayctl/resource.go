package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/relaydeck/relaydeck/core/scopes"
)

func runResourceCmd(kind scopes.ResourceKind, args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		runResourceList(kind, args[1:])
	case "create":
		runResourceCreate(kind, args[1:])
	case "delete":
		runResourceDelete(kind, args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func runResourceList(kind scopes.ResourceKind, args []string) {
	fs := newFlagSet(string(kind) + " list")
	fs.ParseArgs(args)
	client := newClient(*fs.gateway, *fs.apiKey)
	items, err := client.List(context.Background(), kind, fs.parseScope())
	check(err)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.Data)
	}
	printJSON(out)
}

func runResourceCreate(kind scopes.ResourceKind, args []string) {
	fs := newFlagSet(string(kind) + " create")
	name := fs.String("name", "", "resource name")
	sourceKind := fs.String("kind", "", "source kind (github, stripe, ...)")
	url := fs.String("url", "", "target url")
	secret := fs.String("secret", "", "source signing secret")
	fs.ParseArgs(args)

	if strings.TrimSpace(*name) == "" {
		fail("--name required")
	}
	payload := map[string]any{"name": *name}
	switch kind {
	case scopes.KindSource:
		if *sourceKind != "" {
			payload["kind"] = *sourceKind
		}
		if *secret != "" {
			payload["secret"] = *secret
		}
	case scopes.KindTarget:
		if strings.TrimSpace(*url) == "" {
			fail("--url required")
		}
		payload["url"] = *url
	}

	client := newClient(*fs.gateway, *fs.apiKey)
	dispatcher := scopes.NewDispatcher(client)
	created, err := dispatcher.CreateInScope(context.Background(), kind, fs.parseScope(), payload)
	check(err)
	printJSON(created.Data)
}

// runResourceDelete resolves the resource's scope first, so the delete lands
// in whatever collection the resource actually lives in.
func runResourceDelete(kind scopes.ResourceKind, args []string) {
	fs := newFlagSet(string(kind) + " delete")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail(string(kind) + " id required")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fail("invalid " + string(kind) + " id")
	}
	client := newClient(*fs.gateway, *fs.apiKey)
	coordinator := scopes.NewCoordinator(
		scopes.NewProber(client, fs.newTeamContext(client), nil),
		scopes.NewDispatcher(client),
	)
	check(coordinator.DeleteResource(context.Background(), kind, id))
}
