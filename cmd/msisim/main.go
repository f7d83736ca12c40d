// Command msisim runs the two-core cache hierarchy simulator.
package main

import "github.com/sarchlab/msisim/cmd"

func main() {
	cmd.Execute()
}
