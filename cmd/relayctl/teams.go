package main

import (
	"context"
)

func runTeamsCmd(args []string) {
	fs := newFlagSet("teams")
	fs.ParseArgs(args)
	client := newClient(*fs.gateway, *fs.apiKey)
	teams, err := client.UserTeams(context.Background())
	check(err)
	printJSON(teams)
}

func runMeCmd(args []string) {
	fs := newFlagSet("me")
	fs.ParseArgs(args)
	client := newClient(*fs.gateway, *fs.apiKey)
	me, err := client.Me(context.Background())
	check(err)
	printJSON(me)
}
