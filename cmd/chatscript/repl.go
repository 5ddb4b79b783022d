package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/peterh/liner"

	"github.com/tokenring-ai/chatscript/pkg/chatscript"
)

func printBanner() {
	fmt.Println("chatscript REPL (Ctrl+D to exit)")
	fmt.Println()
	fmt.Println("Commands start with a slash, e.g.:")
	fmt.Println(`  /var $name = "world"`)
	fmt.Println(`  /echo "hello $name"`)
	fmt.Println()
	fmt.Println("Meta commands: .scripts  .save <name>  .run <name> [input]  .quit")
	fmt.Println()
}

func runREPL(ctx context.Context, runtime *chatscript.Runtime) {
	printBanner()

	cli := liner.NewLiner()
	defer cli.Close()
	cli.SetCtrlCAborts(true)

	var multiline strings.Builder
	inMultiline := false
	var lastSource string

	for {
		prompt := ">>> "
		if inMultiline {
			prompt = "... "
		}

		line, err := cli.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				multiline.Reset()
				inMultiline = false
				continue
			}
			fmt.Println()
			return
		}

		// A trailing backslash or an open block continues on the next line.
		if strings.HasSuffix(line, "\\") {
			multiline.WriteString(strings.TrimSuffix(line, "\\"))
			multiline.WriteString("\n")
			inMultiline = true
			continue
		}
		if inMultiline || openBraces(line) > 0 {
			multiline.WriteString(line)
			multiline.WriteString("\n")
			if openBraces(multiline.String()) > 0 {
				inMultiline = true
				continue
			}
			line = multiline.String()
			multiline.Reset()
			inMultiline = false
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		cli.AppendHistory(strings.ReplaceAll(line, "\n", " "))

		if strings.HasPrefix(input, ".") {
			if quit := metaCommand(ctx, runtime, input, lastSource); quit {
				return
			}
			continue
		}

		result, err := runtime.Eval(ctx, line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		lastSource = line
		if result != "" {
			fmt.Println(result)
		}
	}
}

// metaCommand handles REPL dot-commands. Returns true when the REPL
// should exit.
func metaCommand(ctx context.Context, runtime *chatscript.Runtime, input, lastSource string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case ".quit", ".exit":
		return true

	case ".scripts":
		for _, name := range runtime.Scripts() {
			fmt.Println(name)
		}

	case ".save":
		if len(fields) < 2 {
			fmt.Println("usage: .save <name>  (saves the last evaluated source)")
			break
		}
		if lastSource == "" {
			fmt.Println("nothing to save yet")
			break
		}
		if err := runtime.SaveScript(fields[1], lastSource); err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Printf("saved %s\n", fields[1])

	case ".run":
		if len(fields) < 2 {
			fmt.Println("usage: .run <name> [input]")
			break
		}
		scriptInput := strings.Join(fields[2:], " ")
		result, err := runtime.Run(ctx, fields[1], scriptInput)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		if result != "" {
			fmt.Println(result)
		}

	default:
		fmt.Printf("unknown meta command %s\n", fields[0])
	}
	return false
}

// openBraces counts unbalanced braces outside string literals so the
// REPL can continue block statements across lines.
func openBraces(s string) int {
	depth := 0
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}
