package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Verify(ctx context.Context) error
	Resend(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	Whoami(ctx context.Context) error
	ForgotPassword(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	ChangePassword(ctx context.Context) error
}

// runREPL reads commands from in until EOF, "exit" or "quit". Command
// errors are printed and the loop goes on.
//
//	Not logged in: register, verify, resend, login, forgot, reset, exit
//	Logged in:     whoami, passwd, logout, logout-all, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("st %s> ", statusFn()))
		line, err := in.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}

		var cmdErr error
		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, passwd, logout, logout-all, exit")
			} else {
				printlnFn("Available commands: register, verify, resend, login, forgot, reset, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "verify":
			cmdErr = a.Verify(ctx)
		case "resend":
			cmdErr = a.Resend(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "forgot":
			cmdErr = a.ForgotPassword(ctx)
		case "reset":
			cmdErr = a.ResetPassword(ctx)
		case "whoami", "me":
			cmdErr = a.Whoami(ctx)
		case "passwd":
			cmdErr = a.ChangePassword(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "logout-all":
			cmdErr = a.LogoutAll(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
