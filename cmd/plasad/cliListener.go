package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eiannone/keyboard"

	"plasa/consensus/conductor"
	"plasa/plasa"
)

// cliListener listens for keypresses and prints what the running daemon knows.
func cliListener(interrupt chan struct{}, c *conductor.Conductor) {
	fmt.Println("Press:\nq: to quit\na: to print the latest anchor\ns: to print composition stats\nv: to print the plasa view for nobody")
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			panic(err)
		}
		str := string(r)
		switch str {
		default:
			if k == 13 {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to anything. See main.cliListener for more details.")
		case "q":
			plasa.LogCLI("User requested to terminate", 4)
			close(interrupt)
			go func() {
				time.Sleep(time.Second * 10)
				println("Something didn't shutdown cleanly.")
				os.Exit(0)
			}()
			return
		case "a":
			a, ok := c.Coordinator().Anchors().Latest()
			fmt.Printf("\nLatest anchor: %s (seen: %t)\n", a, ok)
		case "s":
			fmt.Printf("\n%#v\nFrozen balances: %d\n", c.Coordinator().Stats(), c.Coordinator().Anchors().FrozenCount())
		case "v":
			v, err := c.GetPlasaView(context.Background(), plasa.Viewer{})
			if err != nil {
				plasa.LogCLI(err.Error(), 2)
				break
			}
			fmt.Printf("\n%#v\n", v)
		}
	}
}
