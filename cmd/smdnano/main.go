// smdnano derives per-site passwords from a master secret and a site
// policy, and brokers them into browser pages.
package main

import "github.com/ppiankov/smdnano/internal/cli"

func main() {
	cli.Execute()
}
