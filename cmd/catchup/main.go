// Command catchup runs the recurring-obligation catch-up on demand.
package main

func main() {
	Execute()
}
