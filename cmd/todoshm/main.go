// Command todoshm runs or attaches to a to-do list held in shared memory.
package main

import "github.com/srediag/todo-shm/internal/cli"

func main() {
	cli.Execute()
}
