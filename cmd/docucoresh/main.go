// Command docucoresh is an interactive shell over pkg/client, the
// embedded engine's in-process Go API. It mirrors docdbsh's dot-command
// shape, swapping bufio line reading for github.com/peterh/liner so the
// session gets history and basic line editing for free.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterh/liner"
)

const prompt = "docucore> "

func main() {
	dsn := flag.String("dsn", "memory://docucoresh", "engine connection string")
	flag.Parse()

	fmt.Printf("docucore shell\n")
	fmt.Printf("connecting to %s...\n", *dsn)

	sh := newShell(*dsn)
	if err := sh.connect(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer sh.close()

	fmt.Printf("connected. type '.help' for commands.\n\n")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		sh.close()
		os.Exit(0)
	}()

	for {
		text, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				return
			}
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			continue
		}

		if text == "" {
			continue
		}
		line.AppendHistory(text)
		sh.history = append(sh.history, text)

		cmd, err := parseLine(text)
		if err != nil {
			fmt.Println("ERROR")
			fmt.Println(err.Error())
			fmt.Println()
			continue
		}

		res := sh.execute(cmd)
		if res.isExit {
			return
		}
		res.print(os.Stdout)
		fmt.Println()
	}
}
